package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type ActionClass string

const (
	ActionGame     ActionClass = "game"
	ActionChat     ActionClass = "chat"
	ActionPrivate  ActionClass = "private"
	ActionReaction ActionClass = "reaction"
	ActionPresence ActionClass = "presence"
)

// RatePolicy allows Limit actions within any sliding Window.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

var DefaultRatePolicies = map[ActionClass]RatePolicy{
	ActionGame:     {Limit: 5, Window: time.Second},
	ActionChat:     {Limit: 10, Window: 5 * time.Second},
	ActionPrivate:  {Limit: 10, Window: 5 * time.Second},
	ActionReaction: {Limit: 20, Window: 10 * time.Second},
	ActionPresence: {Limit: 5, Window: 10 * time.Second},
}

const (
	limiterSweepInterval = time.Minute
	limiterIdleTTL       = 30 * time.Minute
)

// RateLimiter is a sliding-window limiter keyed by identity and action class.
// Each identity has its own bucket and lock, so callers for different
// identities never contend.
type RateLimiter struct {
	policies map[ActionClass]RatePolicy
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	mu       sync.Mutex
	hits     map[ActionClass][]time.Time
	lastSeen time.Time
	evicted  bool
}

func NewRateLimiter(logger *slog.Logger, policies map[ActionClass]RatePolicy) *RateLimiter {
	if policies == nil {
		policies = DefaultRatePolicies
	}
	return &RateLimiter{
		policies: policies,
		now:      time.Now,
		logger:   logger,
		buckets:  make(map[string]*rateBucket),
	}
}

// WithClock replaces the time source. Intended for tests.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

func (l *RateLimiter) policy(class ActionClass) RatePolicy {
	if p, ok := l.policies[class]; ok {
		return p
	}
	return l.policies[ActionChat]
}

func (l *RateLimiter) bucket(identityID string) *rateBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[identityID]
	if !ok {
		b = &rateBucket{hits: make(map[ActionClass][]time.Time)}
		l.buckets[identityID] = b
	}
	return b
}

// Allow records an action and reports whether it fits the class policy.
// A denied action is not recorded.
func (l *RateLimiter) Allow(identityID string, class ActionClass) bool {
	p := l.policy(class)
	for {
		b := l.bucket(identityID)
		b.mu.Lock()
		if b.evicted {
			// swept between lookup and lock
			b.mu.Unlock()
			continue
		}
		now := l.now()
		b.lastSeen = now
		cutoff := now.Add(-p.Window)
		hits := b.hits[class]
		i := 0
		for i < len(hits) && !hits[i].After(cutoff) {
			i++
		}
		hits = hits[i:]
		if len(hits) >= p.Limit {
			b.hits[class] = hits
			b.mu.Unlock()
			return false
		}
		b.hits[class] = append(hits, now)
		b.mu.Unlock()
		return true
	}
}

// Sweep drops buckets that have been idle longer than the idle TTL and
// returns how many were removed.
func (l *RateLimiter) Sweep() int {
	cutoff := l.now().Add(-limiterIdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, b := range l.buckets {
		b.mu.Lock()
		if b.lastSeen.Before(cutoff) {
			b.evicted = true
			delete(l.buckets, id)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// Run sweeps idle buckets until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("rate limiter swept idle identities", "removed", n)
			}
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
