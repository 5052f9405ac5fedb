package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether an authenticated request may proceed. A
// non-nil error (usually ErrTooManyRequests) rejects it.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig is the per-tier limit. Zero or negative means unlimited.
type TierConfig struct {
	RequestsPerMinute int
}

// InProcessLimiter counts requests per subject and tier in fixed one
// minute windows, entirely in memory. Counts reset when a window expires;
// nothing is shared across processes.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int

	mu      sync.Mutex
	windows map[string]*countWindow
}

type countWindow struct {
	count     int
	startedAt time.Time
}

// NewInProcessLimiter creates a limiter. Tiers without an entry fall back
// to defaultRPM.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		windows:    make(map[string]*countWindow),
	}
}

// Allow counts the request against its subject's window and returns
// ErrTooManyRequests when the tier's per-minute budget is exceeded.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}
	budget := l.budgetFor(tier)
	if budget <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := identity.Subject + ":" + tier
	now := time.Now()

	w := l.windows[key]
	if w == nil || now.Sub(w.startedAt) >= time.Minute {
		l.windows[key] = &countWindow{count: 1, startedAt: now}
		return nil
	}

	w.count++
	if w.count > budget {
		return ErrTooManyRequests
	}
	return nil
}

func (l *InProcessLimiter) budgetFor(tier string) int {
	if tc, ok := l.tiers[tier]; ok {
		return tc.RequestsPerMinute
	}
	return l.defaultRPM
}
