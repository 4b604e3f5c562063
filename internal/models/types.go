package models

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/CodeAndHammer/learngames/internal/clock"
	"github.com/CodeAndHammer/learngames/internal/config"
	"github.com/CodeAndHammer/learngames/internal/logger"
	"github.com/CodeAndHammer/learngames/internal/mathgame"
	"github.com/CodeAndHammer/learngames/internal/progress"
	"github.com/CodeAndHammer/learngames/internal/store"
	"github.com/CodeAndHammer/learngames/internal/throttle"
)

// PendingProblem is a problem issued to a session and not yet answered.
type PendingProblem struct {
	Problem    mathgame.Problem
	Difficulty mathgame.Difficulty
	Action     string // non-empty for lock challenges
	IssuedAt   time.Time
}

// Profile groups the trackers of one learner. Sessions bound to the same
// profile share it.
type Profile struct {
	ID      string
	Tracker *mathgame.Tracker
	Rewards *progress.Service
}

type Session struct {
	ID                string
	ProfileID         string
	Pending           map[string]*PendingProblem
	PendingOrder      []string
	ChallengeAttempts map[string]int
	LastAccessTime    time.Time
}

// RateLimiterEntry represents a rate limiter entry for a client IP
type RateLimiterEntry struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

type App struct {
	Config    config.Config
	Log       *logger.Logger
	Store     store.Store
	Clock     clock.Clock
	Generator *mathgame.Generator
	Throttles *throttle.Registry

	Sessions     map[string]*Session
	Profiles     map[string]*Profile
	SessionMutex sync.RWMutex
	LimiterMap   map[string]*RateLimiterEntry
	LimiterMutex sync.RWMutex
	StartTime    time.Time
}

// NewApp wires the shared services for the server and the CLI.
func NewApp(cfg config.Config, log *logger.Logger, st store.Store, clk clock.Clock) *App {
	if log == nil {
		log = logger.Nop()
	}
	clk = clock.Or(clk)
	return &App{
		Config:     cfg,
		Log:        log,
		Store:      st,
		Clock:      clk,
		Generator:  mathgame.NewGenerator(nil),
		Throttles:  throttle.NewRegistry(st, clk, log, cfg.DefaultPolicy, cfg.ActionPolicies),
		Sessions:   make(map[string]*Session),
		Profiles:   make(map[string]*Profile),
		LimiterMap: make(map[string]*RateLimiterEntry),
		StartTime:  clk.Now(),
	}
}

// NewProfile builds the trackers of profile id over the app store. Callers
// cache the result in Profiles.
func (app *App) NewProfile(id string) *Profile {
	tracker := mathgame.NewTracker(mathgame.Key(id), app.Store, app.Generator, app.Log)
	return &Profile{
		ID:      id,
		Tracker: tracker,
		Rewards: progress.New(progress.Key(id), app.Store, app.Clock, tracker, app.Log),
	}
}
