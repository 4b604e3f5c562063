package mathgame

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/CodeAndHammer/learngames/internal/logger"
	"github.com/CodeAndHammer/learngames/internal/store"
)

const (
	// WindowSize is how many recent outcomes are kept.
	WindowSize = 10
	// MinWindow is how many outcomes are needed before difficulty moves.
	MinWindow = 5

	PromoteAbove = 0.8
	DemoteBelow  = 0.4
)

// Key is the store key of the math progress record for profile.
func Key(profile string) string {
	return "progress:" + profile + ":math"
}

type Outcome struct {
	Problem string `json:"problem"`
	Correct bool   `json:"correct"`
}

// Progress is the persisted tracker record.
type Progress struct {
	CorrectAnswers int        `json:"correctAnswers"`
	TotalAttempts  int        `json:"totalAttempts"`
	CurrentStreak  int        `json:"currentStreak"`
	BestStreak     int        `json:"bestStreak"`
	Difficulty     Difficulty `json:"difficulty"`
	LastProblems   []Outcome  `json:"lastProblems"`
}

func defaultProgress() Progress {
	return Progress{Difficulty: Easy, LastProblems: []Outcome{}}
}

func (p Progress) valid() bool {
	return p.Difficulty.Valid() &&
		p.CorrectAnswers >= 0 && p.TotalAttempts >= 0 &&
		p.CorrectAnswers <= p.TotalAttempts &&
		p.CurrentStreak >= 0 && p.BestStreak >= p.CurrentStreak
}

// WindowAccuracy is the share of correct outcomes in LastProblems.
func (p Progress) WindowAccuracy() float64 {
	if len(p.LastProblems) == 0 {
		return 0
	}
	correct := lo.CountBy(p.LastProblems, func(o Outcome) bool { return o.Correct })
	return float64(correct) / float64(len(p.LastProblems))
}

type Stats struct {
	Accuracy       float64    `json:"accuracy"`
	Streak         int        `json:"streak"`
	BestStreak     int        `json:"bestStreak"`
	CorrectAnswers int        `json:"correctAnswers"`
	TotalAttempts  int        `json:"totalAttempts"`
	Difficulty     Difficulty `json:"difficulty"`
}

func (p Progress) Stats() Stats {
	accuracy := 0.0
	if p.TotalAttempts > 0 {
		accuracy = float64(p.CorrectAnswers) / float64(p.TotalAttempts)
	}
	return Stats{
		Accuracy:       accuracy,
		Streak:         p.CurrentStreak,
		BestStreak:     p.BestStreak,
		CorrectAnswers: p.CorrectAnswers,
		TotalAttempts:  p.TotalAttempts,
		Difficulty:     p.Difficulty,
	}
}

// Tracker adapts problem difficulty to a profile's recent accuracy.
type Tracker struct {
	mu    sync.Mutex
	key   string
	store store.Store
	gen   *Generator
	log   *logger.Logger
}

func NewTracker(key string, st store.Store, gen *Generator, log *logger.Logger) *Tracker {
	if gen == nil {
		gen = NewGenerator(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{key: key, store: st, gen: gen, log: log.With("tracker", key)}
}

func (t *Tracker) load(ctx context.Context) Progress {
	var p Progress
	found, err := store.LoadJSON(ctx, t.store, t.key, &p)
	if err != nil {
		t.log.Warn("Progress record unreadable, using defaults", "error", err)
		return defaultProgress()
	}
	if !found {
		return defaultProgress()
	}
	if !p.valid() {
		t.log.Warn("Progress record inconsistent, using defaults", "difficulty", p.Difficulty)
		return defaultProgress()
	}
	if len(p.LastProblems) > WindowSize {
		p.LastProblems = p.LastProblems[len(p.LastProblems)-WindowSize:]
	}
	if p.LastProblems == nil {
		p.LastProblems = []Outcome{}
	}
	return p
}

func (t *Tracker) save(ctx context.Context, p Progress) error {
	if err := store.SaveJSON(ctx, t.store, t.key, p); err != nil {
		return fmt.Errorf("save progress %s: %w", t.key, err)
	}
	return nil
}

// GenerateProblem returns a problem at the persisted difficulty.
func (t *Tracker) GenerateProblem(ctx context.Context) Problem {
	p, _ := t.gen.Generate(t.Difficulty(ctx))
	return p
}

// GenerateProblemAt returns a problem at d, ignoring the persisted difficulty.
func (t *Tracker) GenerateProblemAt(d Difficulty) (Problem, error) {
	return t.gen.Generate(d)
}

// GenerateProgressiveProblem maps a challenge attempt number to difficulty.
func (t *Tracker) GenerateProgressiveProblem(attempt int) Problem {
	return t.gen.Progressive(attempt)
}

// RecordAnswer updates counters and the window, then moves difficulty at
// most one level. It returns the updated record.
func (t *Tracker) RecordAnswer(ctx context.Context, description string, correct bool) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.load(ctx)
	p.TotalAttempts++
	if correct {
		p.CorrectAnswers++
		p.CurrentStreak++
		p.BestStreak = max(p.BestStreak, p.CurrentStreak)
	} else {
		p.CurrentStreak = 0
	}

	p.LastProblems = append(p.LastProblems, Outcome{Problem: description, Correct: correct})
	if len(p.LastProblems) > WindowSize {
		p.LastProblems = p.LastProblems[len(p.LastProblems)-WindowSize:]
	}

	before := p.Difficulty
	p.Difficulty = nextDifficulty(p)
	if p.Difficulty != before {
		t.log.Info("Difficulty changed", "from", before, "to", p.Difficulty, "windowAccuracy", p.WindowAccuracy())
	}

	if err := t.save(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

func nextDifficulty(p Progress) Difficulty {
	if len(p.LastProblems) < MinWindow {
		return p.Difficulty
	}
	acc := p.WindowAccuracy()
	switch {
	case acc > PromoteAbove:
		return p.Difficulty.Harder()
	case acc < DemoteBelow:
		return p.Difficulty.Easier()
	default:
		return p.Difficulty
	}
}

func (t *Tracker) Difficulty(ctx context.Context) Difficulty {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx).Difficulty
}

func (t *Tracker) Stats(ctx context.Context) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx).Stats()
}

// Progress returns the full record.
func (t *Tracker) Progress(ctx context.Context) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// Reset writes the default record.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.save(ctx, defaultProgress())
}
