// Package retry implements the RetryLimiter variants: a plain
// fixed-rate token bucket (mutex-guarded) and the gRPC adaptive
// scaled-integer bucket (atomic counter). Neither ever waits for a
// permit: a limiter here is consulted on every retry decision and
// answers at once.
package retry

import (
	"sync"
	"time"

	"github.com/thushan/olla/internal/core/domain"
)

// FixedRateLimiter is a token bucket refilled at RatePerSecond; ShouldRetry
// succeeds iff a token is available right now, never blocking.
type FixedRateLimiter struct {
	mu            sync.Mutex
	ratePerSecond float64
	burst         float64
	tokens        float64
	lastRefill    time.Time
	now           func() time.Time
}

// NewFixedRateLimiter builds a limiter permitting ratePerSecond retries
// per second on average, with a burst capacity equal to the rate itself
// (one second's worth of permits banked).
func NewFixedRateLimiter(ratePerSecond float64) *FixedRateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &FixedRateLimiter{
		ratePerSecond: ratePerSecond,
		burst:         ratePerSecond,
		tokens:        ratePerSecond,
		lastRefill:    time.Now(),
		now:           time.Now,
	}
}

func (l *FixedRateLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.ratePerSecond
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now
}

// ShouldRetry implements ports.RetryLimiter; it never blocks.
func (l *FixedRateLimiter) ShouldRetry(_ *domain.RequestContext, _ int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// OnAttemptComplete is a no-op: the fixed-rate limiter's budget depends
// only on elapsed time, not on attempt outcomes.
func (l *FixedRateLimiter) OnAttemptComplete(_ *domain.RequestContext, _ domain.HttpObject, _ error) {}
