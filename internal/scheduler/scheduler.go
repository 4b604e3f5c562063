package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/CodeAndHammer/learngames/internal/middleware"
	models "github.com/CodeAndHammer/learngames/internal/models"
	session "github.com/CodeAndHammer/learngames/internal/session"
)

const (
	SessionSweepInterval = 10 * time.Minute
	LimiterSweepInterval = 30 * time.Minute
)

// Scheduler runs the background jobs of the server
type Scheduler struct {
	scheduler *gocron.Scheduler
	app       *models.App
}

// New creates a new scheduler instance
func New(app *models.App) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		app:       app,
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	jobs := []struct {
		tag      string
		interval time.Duration
		fn       func()
	}{
		{"reconcile-locks", s.app.Config.LockPollInterval, s.ReconcileLocks},
		{"sweep-sessions", SessionSweepInterval, s.SweepSessions},
		{"sweep-limiters", LimiterSweepInterval, s.SweepLimiters},
	}
	for _, j := range jobs {
		if _, err := s.scheduler.Every(j.interval).Tag(j.tag).SingletonMode().Do(j.fn); err != nil {
			return fmt.Errorf("schedule %s: %w", j.tag, err)
		}
	}

	s.scheduler.StartAsync()
	s.app.Log.Info("Scheduler started", "jobs", s.scheduler.Len(), "lockPollInterval", s.app.Config.LockPollInterval)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ReconcileLocks clears every elapsed lock held by the registry.
func (s *Scheduler) ReconcileLocks() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if n := s.app.Throttles.ReconcileAll(ctx); n > 0 {
		s.app.Log.Info("Expired locks reset", "count", n)
	}
}

func (s *Scheduler) SweepSessions() {
	session.CleanupExpiredSessions(s.app)
}

func (s *Scheduler) SweepLimiters() {
	middleware.CleanupStaleRateLimiters(s.app)
}
