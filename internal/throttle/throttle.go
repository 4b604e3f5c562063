package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CodeAndHammer/learngames/internal/clock"
	"github.com/CodeAndHammer/learngames/internal/logger"
	"github.com/CodeAndHammer/learngames/internal/store"
)

const (
	DefaultActionLimit = 3
	DefaultCooldown    = 20 * time.Minute
)

// Policy configures how many actions are allowed before the cooldown starts.
type Policy struct {
	ActionLimit int           `yaml:"action_limit" json:"actionLimit"`
	Cooldown    time.Duration `yaml:"cooldown" json:"cooldown"`
}

// DefaultPolicy is 3 actions then a 20 minute cooldown.
func DefaultPolicy() Policy {
	return Policy{ActionLimit: DefaultActionLimit, Cooldown: DefaultCooldown}
}

// Normalize replaces non-positive fields with the defaults and rounds a
// sub-millisecond cooldown up to one millisecond, so lockedUntil always lands
// strictly after the time the lock was set.
func (p Policy) Normalize() Policy {
	if p.ActionLimit < 1 {
		p.ActionLimit = DefaultActionLimit
	}
	switch {
	case p.Cooldown <= 0:
		p.Cooldown = DefaultCooldown
	case p.Cooldown < time.Millisecond:
		p.Cooldown = time.Millisecond
	}
	return p
}

// State is the persisted throttle record. Timestamps are Unix milliseconds.
type State struct {
	Count          int   `json:"count"`
	LastActionTime int64 `json:"lastActionTime"`
	LockedUntil    int64 `json:"lockedUntil"`
}

func freshState(now int64) State {
	return State{Count: 0, LastActionTime: now, LockedUntil: 0}
}

// Throttle counts a restricted action and blocks it for a cooldown once the
// limit is reached. All read-modify-write sequences hold mu.
type Throttle struct {
	mu     sync.Mutex
	key    string
	policy Policy
	store  store.Store
	clock  clock.Clock
	log    *logger.Logger
}

func New(key string, policy Policy, st store.Store, clk clock.Clock, log *logger.Logger) *Throttle {
	if log == nil {
		log = logger.Nop()
	}
	return &Throttle{
		key:    key,
		policy: policy.Normalize(),
		store:  st,
		clock:  clock.Or(clk),
		log:    log.With("throttle", key),
	}
}

func (t *Throttle) Key() string {
	return t.key
}

func (t *Throttle) Policy() Policy {
	return t.policy
}

func (t *Throttle) now() int64 {
	return t.clock.Now().UnixMilli()
}

// load reads the record; any failure is treated as "no record" so the
// throttle fails open.
func (t *Throttle) load(ctx context.Context, now int64) State {
	var s State
	found, err := store.LoadJSON(ctx, t.store, t.key, &s)
	if err != nil {
		t.log.Warn("Throttle record unreadable, treating as unlocked", "error", err)
		return freshState(now)
	}
	if !found {
		return freshState(now)
	}
	if s.Count < 0 || s.LockedUntil < 0 {
		t.log.Warn("Throttle record out of range, treating as unlocked", "count", s.Count, "lockedUntil", s.LockedUntil)
		return freshState(now)
	}
	return s
}

func (t *Throttle) save(ctx context.Context, s State) error {
	if err := store.SaveJSON(ctx, t.store, t.key, s); err != nil {
		return fmt.Errorf("save throttle %s: %w", t.key, err)
	}
	return nil
}

// IsLocked reports whether the action is currently blocked. It never writes;
// expired locks are cleared by ReconcileExpiry.
func (t *Throttle) IsLocked(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	return t.load(ctx, now).LockedUntil > now
}

// ReconcileExpiry resets the throttle when its lock has elapsed and reports
// whether it did so.
func (t *Throttle) ReconcileExpiry(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	s := t.load(ctx, now)
	if s.LockedUntil == 0 || s.LockedUntil > now {
		return false, nil
	}
	if err := t.save(ctx, freshState(now)); err != nil {
		return false, err
	}
	t.log.Info("Lock expired, throttle reset", "lockedUntil", s.LockedUntil)
	return true, nil
}

// RecordAction counts one occurrence of the action and reports whether the
// throttle is locked afterwards. A locked throttle is left untouched.
func (t *Throttle) RecordAction(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	s := t.load(ctx, now)

	if s.LockedUntil > now {
		return true, nil
	}
	if s.LockedUntil != 0 {
		// expired but not yet reconciled
		s = freshState(now)
	}

	s.Count++
	s.LastActionTime = now
	locked := s.Count >= t.policy.ActionLimit
	if locked {
		s.LockedUntil = now + t.policy.Cooldown.Milliseconds()
	} else {
		s.LockedUntil = 0
	}

	if err := t.save(ctx, s); err != nil {
		return locked, err
	}
	if locked {
		t.log.Info("Action limit reached, lock engaged", "count", s.Count, "lockedUntil", s.LockedUntil)
	}
	return locked, nil
}

// Reset clears the count and any lock.
func (t *Throttle) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.save(ctx, freshState(t.now())); err != nil {
		return err
	}
	t.log.Info("Throttle reset")
	return nil
}

// LockEndTime returns lockedUntil in Unix milliseconds, or 0 when there is no
// lock or it has already elapsed.
func (t *Throttle) LockEndTime(ctx context.Context) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	s := t.load(ctx, now)
	if s.LockedUntil <= now {
		return 0
	}
	return s.LockedUntil
}

// Snapshot returns the record as persisted, or the default record.
func (t *Throttle) Snapshot(ctx context.Context) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx, t.now())
}

// Remaining is the time left on the lock, zero when unlocked.
func (t *Throttle) Remaining(ctx context.Context) time.Duration {
	end := t.LockEndTime(ctx)
	if end == 0 {
		return 0
	}
	return time.UnixMilli(end).Sub(t.clock.Now())
}
