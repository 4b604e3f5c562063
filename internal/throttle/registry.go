package throttle

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/CodeAndHammer/learngames/internal/clock"
	"github.com/CodeAndHammer/learngames/internal/logger"
	"github.com/CodeAndHammer/learngames/internal/store"
)

const keyPrefix = "lock:"

var namePattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// ValidName reports whether name can be used as a profile or action in a
// key. Valid names contain no ':' so one profile prefix never covers another.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// NormalizeName trims and lowercases name and reports whether the result is
// valid.
func NormalizeName(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	return name, ValidName(name)
}

// Key is the store key of the throttle for action on profile.
func Key(profile, action string) string {
	return keyPrefix + profile + ":" + action
}

// ProfilePrefix is the common key prefix of every throttle of profile.
func ProfilePrefix(profile string) string {
	return keyPrefix + profile + ":"
}

// Registry hands out one Throttle per key so concurrent callers share its
// lock, and resolves the policy for each action.
type Registry struct {
	mu        sync.Mutex
	throttles map[string]*Throttle
	policies  map[string]Policy
	fallback  Policy
	store     store.Store
	clock     clock.Clock
	log       *logger.Logger
}

func NewRegistry(st store.Store, clk clock.Clock, log *logger.Logger, fallback Policy, policies map[string]Policy) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	normalized := lo.MapValues(policies, func(p Policy, _ string) Policy {
		return p.Normalize()
	})
	return &Registry{
		throttles: make(map[string]*Throttle),
		policies:  normalized,
		fallback:  fallback.Normalize(),
		store:     st,
		clock:     clock.Or(clk),
		log:       log,
	}
}

// PolicyFor returns the configured policy for action, or the fallback.
func (r *Registry) PolicyFor(action string) Policy {
	if p, ok := r.policies[action]; ok {
		return p
	}
	return r.fallback
}

// Get returns the throttle for action on profile, creating it on first use.
// A newly created throttle reconciles its persisted record at once, since a
// lock written before a restart or before Forget is not seen by ReconcileAll.
func (r *Registry) Get(ctx context.Context, profile, action string) *Throttle {
	key := Key(profile, action)
	r.mu.Lock()
	t, ok := r.throttles[key]
	if !ok {
		t = New(key, r.PolicyFor(action), r.store, r.clock, r.log)
		r.throttles[key] = t
	}
	r.mu.Unlock()

	if !ok {
		if _, err := t.ReconcileExpiry(ctx); err != nil {
			r.log.Warn("Failed to reconcile lock expiry", "throttle", key, "error", err)
		}
	}
	return t
}

// Each calls fn for every throttle handed out so far.
func (r *Registry) Each(fn func(*Throttle)) {
	r.mu.Lock()
	all := lo.Values(r.throttles)
	r.mu.Unlock()
	for _, t := range all {
		fn(t)
	}
}

// ReconcileAll clears elapsed locks and returns how many were reset.
func (r *Registry) ReconcileAll(ctx context.Context) int {
	reset := 0
	r.Each(func(t *Throttle) {
		ok, err := t.ReconcileExpiry(ctx)
		if err != nil {
			r.log.Warn("Failed to reconcile lock expiry", "throttle", t.Key(), "error", err)
			return
		}
		if ok {
			reset++
		}
	})
	return reset
}

// Forget drops every throttle whose key starts with prefix. Persisted state
// is kept.
func (r *Registry) Forget(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key := range r.throttles {
		if strings.HasPrefix(key, prefix) {
			delete(r.throttles, key)
			removed++
		}
	}
	return removed
}

// Len reports how many throttles are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.throttles)
}
