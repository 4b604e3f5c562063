package cucumber

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/CodeAndHammer/learngames/internal/mathgame"
	"github.com/CodeAndHammer/learngames/internal/store"
	"github.com/CodeAndHammer/learngames/internal/testutil"
	"github.com/CodeAndHammer/learngames/internal/throttle"
)

const profile = "kid"

// scenarioState holds the collaborators of one scenario.
type scenarioState struct {
	ctx      context.Context
	store    *store.Memory
	clock    *testutil.FakeClock
	registry *throttle.Registry
	throttle *throttle.Throttle
	tracker  *mathgame.Tracker
	gen      *mathgame.Generator

	lastLocked bool
	problems   []mathgame.Problem
	challenge  mathgame.Difficulty
}

func (s *scenarioState) reset() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.clock = testutil.NewFakeClock(time.UnixMilli(0))
	s.gen = mathgame.NewGenerator(rand.NewPCG(7, 11))
	s.registry = nil
	s.throttle = nil
	s.tracker = nil
	s.lastLocked = false
	s.problems = nil
	s.challenge = ""
}

func (s *scenarioState) clockReads(ms int64) error {
	s.clock.Set(time.UnixMilli(ms))
	return nil
}

func (s *scenarioState) minutesPass(n int) error {
	s.clock.Advance(time.Duration(n) * time.Minute)
	return nil
}

func (s *scenarioState) givenThrottle(action string, limit, minutes int) error {
	policy := throttle.Policy{ActionLimit: limit, Cooldown: time.Duration(minutes) * time.Minute}
	s.registry = throttle.NewRegistry(s.store, s.clock, nil, throttle.DefaultPolicy(), map[string]throttle.Policy{action: policy})
	s.throttle = s.registry.Get(s.ctx, profile, action)
	if got := s.throttle.Policy(); got != policy {
		return fmt.Errorf("policy = %+v, want %+v", got, policy)
	}
	return nil
}

func (s *scenarioState) recordAction() error {
	locked, err := s.throttle.RecordAction(s.ctx)
	if err != nil {
		return err
	}
	s.lastLocked = locked
	return nil
}

func (s *scenarioState) recordActionTimes(n int) error {
	for i := 0; i < n; i++ {
		if err := s.recordAction(); err != nil {
			return err
		}
	}
	return nil
}

func expectLocked(what string, got bool, want string) error {
	if got != (want == "locked") {
		return fmt.Errorf("%s locked = %v, want %s", what, got, want)
	}
	return nil
}

func (s *scenarioState) resultIs(want string) error {
	return expectLocked("recordAction result", s.lastLocked, want)
}

func (s *scenarioState) throttleIs(want string) error {
	return expectLocked("isLocked", s.throttle.IsLocked(s.ctx), want)
}

func (s *scenarioState) lockEndTimeIs(want int64) error {
	if got := s.throttle.LockEndTime(s.ctx); got != want {
		return fmt.Errorf("lock end time = %d, want %d", got, want)
	}
	return nil
}

func (s *scenarioState) storedCountIs(want int) error {
	var st throttle.State
	found, err := store.LoadJSON(s.ctx, s.store, s.throttle.Key(), &st)
	if err != nil {
		return err
	}
	if !found && want != 0 {
		return fmt.Errorf("no record stored, want count %d", want)
	}
	if st.Count != want {
		return fmt.Errorf("stored count = %d, want %d", st.Count, want)
	}
	return nil
}

func (s *scenarioState) reconcile() error {
	if n := s.registry.ReconcileAll(s.ctx); n != 1 {
		return fmt.Errorf("reconciled %d throttles, want 1", n)
	}
	return nil
}

func (s *scenarioState) resetThrottle() error {
	return s.throttle.Reset(s.ctx)
}

func (s *scenarioState) freshTracker() error {
	s.tracker = mathgame.NewTracker(mathgame.Key(profile), s.store, s.gen, nil)
	return nil
}

func (s *scenarioState) trackerAt(level string) error {
	d, err := mathgame.ParseDifficulty(level)
	if err != nil {
		return err
	}
	if err := store.SaveJSON(s.ctx, s.store, mathgame.Key(profile), mathgame.Progress{Difficulty: d}); err != nil {
		return err
	}
	return s.freshTracker()
}

func (s *scenarioState) recordAnswers(n int, kind string) error {
	for i := 0; i < n; i++ {
		if _, err := s.tracker.RecordAnswer(s.ctx, "2 + 2", kind == "correct"); err != nil {
			return err
		}
	}
	return nil
}

func (s *scenarioState) difficultyIs(level string) error {
	if got := s.tracker.Difficulty(s.ctx); string(got) != level {
		return fmt.Errorf("difficulty = %s, want %s", got, level)
	}
	return nil
}

func (s *scenarioState) bestStreakIs(want int) error {
	if got := s.tracker.Stats(s.ctx).BestStreak; got != want {
		return fmt.Errorf("best streak = %d, want %d", got, want)
	}
	return nil
}

func (s *scenarioState) generateProblems(n int, level string) error {
	d, err := mathgame.ParseDifficulty(level)
	if err != nil {
		return err
	}
	s.problems = s.problems[:0]
	for i := 0; i < n; i++ {
		p, err := s.gen.Generate(d)
		if err != nil {
			return err
		}
		s.problems = append(s.problems, p)
	}
	return nil
}

func (s *scenarioState) everyAdditionBetween(lo, hi int) error {
	for _, p := range s.problems {
		if p.Operation != mathgame.Add {
			return fmt.Errorf("%s is not an addition", p)
		}
		if p.Num1 < lo || p.Num1 > hi || p.Num2 < lo || p.Num2 > hi {
			return fmt.Errorf("%s has operands outside [%d,%d]", p, lo, hi)
		}
	}
	return nil
}

func (s *scenarioState) everyAdditionBounded(lo, hi, maxSum int) error {
	seen := 0
	for _, p := range s.problems {
		if p.Operation != mathgame.Add {
			continue
		}
		seen++
		if p.Num1 < lo || p.Num1 > hi {
			return fmt.Errorf("%s: num1 outside [%d,%d]", p, lo, hi)
		}
		if p.Answer != p.Num1+p.Num2 || p.Answer > maxSum {
			return fmt.Errorf("%s = %d exceeds %d", p, p.Answer, maxSum)
		}
	}
	if seen == 0 {
		return fmt.Errorf("no additions generated")
	}
	return nil
}

func (s *scenarioState) everySubtractionBounded(lo1, hi1, lo2, hi2 int) error {
	seen := 0
	for _, p := range s.problems {
		if p.Operation != mathgame.Subtract {
			continue
		}
		seen++
		if p.Num1 < lo1 || p.Num1 > hi1 || p.Num2 < lo2 || p.Num2 > hi2 {
			return fmt.Errorf("%s outside bounds", p)
		}
		if p.Answer != p.Num1-p.Num2 || p.Answer < 1 {
			return fmt.Errorf("%s = %d", p, p.Answer)
		}
	}
	if seen == 0 {
		return fmt.Errorf("no subtractions generated")
	}
	return nil
}

func (s *scenarioState) challengeForAttempt(attempt int) error {
	s.challenge = mathgame.DifficultyForAttempt(attempt)
	p := s.gen.Progressive(attempt)
	if p.Num1 == 0 || p.Num2 == 0 {
		return fmt.Errorf("empty problem %+v", p)
	}
	return nil
}

func (s *scenarioState) challengeDifficultyIs(level string) error {
	if string(s.challenge) != level {
		return fmt.Errorf("challenge difficulty = %s, want %s", s.challenge, level)
	}
	return nil
}
