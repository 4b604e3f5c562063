package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/CodeAndHammer/learngames/internal/clock"
	"github.com/CodeAndHammer/learngames/internal/logger"
	"github.com/CodeAndHammer/learngames/internal/mathgame"
	"github.com/CodeAndHammer/learngames/internal/store"
)

var (
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidGame       = errors.New("game name required")
)

// Key is the store key of the rewards record for profile.
func Key(profile string) string {
	return "progress:" + profile + ":rewards"
}

// Record holds the coin balance and per-game completion counts.
type Record struct {
	Coins          int            `json:"coins"`
	TotalEarned    int            `json:"totalEarned"`
	GamesCompleted map[string]int `json:"gamesCompleted"`
	UpdatedAt      int64          `json:"updatedAt"`
}

func emptyRecord() Record {
	return Record{GamesCompleted: map[string]int{}}
}

// CoinsFor is the reward for a correct answer at d.
func CoinsFor(d mathgame.Difficulty) int {
	switch d {
	case mathgame.Medium:
		return 2
	case mathgame.Hard:
		return 3
	default:
		return 1
	}
}

// Service keeps the rewards record of one profile.
type Service struct {
	mu      sync.Mutex
	key     string
	store   store.Store
	clock   clock.Clock
	tracker *mathgame.Tracker
	log     *logger.Logger
}

// New builds the service. tracker is the math tracker cleared alongside the
// rewards by ResetProgress.
func New(key string, st store.Store, clk clock.Clock, tracker *mathgame.Tracker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{key: key, store: st, clock: clock.Or(clk), tracker: tracker, log: log.With("rewards", key)}
}

func (s *Service) load(ctx context.Context) Record {
	r := emptyRecord()
	found, err := store.LoadJSON(ctx, s.store, s.key, &r)
	if err != nil {
		s.log.Warn("Rewards record unreadable, starting from zero", "error", err)
		return emptyRecord()
	}
	if !found || r.Coins < 0 || r.TotalEarned < 0 {
		return emptyRecord()
	}
	if r.GamesCompleted == nil {
		r.GamesCompleted = map[string]int{}
	}
	return r
}

func (s *Service) save(ctx context.Context, r Record) error {
	r.UpdatedAt = s.clock.Now().UnixMilli()
	if err := store.SaveJSON(ctx, s.store, s.key, r); err != nil {
		return fmt.Errorf("save rewards %s: %w", s.key, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Earn adds amount coins and returns the new balance.
func (s *Service) Earn(ctx context.Context, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.load(ctx)
	r.Coins += amount
	r.TotalEarned += amount
	if err := s.save(ctx, r); err != nil {
		return r.Coins, err
	}
	s.log.Debug("Coins earned", "amount", amount, "reason", reason, "balance", r.Coins)
	return r.Coins, nil
}

// Spend removes amount coins and returns the new balance.
func (s *Service) Spend(ctx context.Context, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.load(ctx)
	if r.Coins < amount {
		return r.Coins, fmt.Errorf("%w: have %d, need %d", ErrInsufficientCoins, r.Coins, amount)
	}
	r.Coins -= amount
	if err := s.save(ctx, r); err != nil {
		return r.Coins, err
	}
	return r.Coins, nil
}

// CompleteGame counts one finished round of game.
func (s *Service) CompleteGame(ctx context.Context, game string) (int, error) {
	game = strings.ToLower(strings.TrimSpace(game))
	if game == "" {
		return 0, ErrInvalidGame
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.load(ctx)
	r.GamesCompleted[game]++
	if err := s.save(ctx, r); err != nil {
		return r.GamesCompleted[game], err
	}
	return r.GamesCompleted[game], nil
}

// ResetProgress clears the rewards record and the math tracker record.
func (s *Service) ResetProgress(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, emptyRecord()); err != nil {
		return err
	}
	if s.tracker != nil {
		if err := s.tracker.Reset(ctx); err != nil {
			return err
		}
	}
	s.log.Info("Progress reset")
	return nil
}
