package decorator

import (
	"math/rand"
	"time"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// FixedBackoff always waits the same delay.
type FixedBackoff struct {
	Delay time.Duration
}

func (b FixedBackoff) DelayFor(int) time.Duration { return b.Delay }

// ExponentialBackoff computes initial*factor^(attempt-1), capped at Max,
// with optional jitter uniformly sampled from [-Jitter, +Jitter] via Rand
// (defaults to math/rand's package-level source).
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  time.Duration
	Rand    *rand.Rand
}

func (b ExponentialBackoff) DelayFor(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		d *= b.Factor
	}
	delay := time.Duration(d)
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	if b.Jitter > 0 {
		j := b.Jitter
		r := b.Rand
		if r == nil {
			r = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // timing jitter, not security-sensitive
		}
		offset := time.Duration(r.Int63n(int64(2*j+1))) - j
		delay += offset
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

// WithMaxAttempts wraps a Backoff, reporting the same delay regardless of
// max; max_attempts is enforced by RetryConfig.MaxAttempts, not the
// Backoff itself - this wrapper exists so call sites can read the cap
// off the Backoff value directly.
type WithMaxAttempts struct {
	ports.Backoff
	MaxAttempts int
}

// RetryConfig parameterises the retry decorator.
type RetryConfig struct {
	MaxAttempts int
	Backoff     ports.Backoff
	Limiter     ports.RetryLimiter
	// Retryable decides whether err warrants another attempt; defaults to
	// domain.Unprocessed.
	Retryable func(resp domain.HttpObject, err error) bool
	Sleep     func(time.Duration) // injected for tests; defaults to time.Sleep
}

// Retry wraps a Client with retry semantics: up to MaxAttempts
// invocations, a fresh child context per attempt bounded
// above by the parent's deadline, a RetryLimiter consulted before each
// subsequent attempt, and a parent log that only completes after every
// child log has.
func Retry(cfg RetryConfig) ports.ClientDecorator {
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(_ domain.HttpObject, err error) bool { return domain.Unprocessed(err) }
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return func(inner ports.Client) ports.Client {
		return ports.ClientFunc(func(rc *domain.RequestContext, endpoint *domain.Endpoint, req domain.HttpObject) (domain.HttpObject, error) {
			var lastResp domain.HttpObject
			var lastErr error

			for attempt := 1; attempt <= maxAttempts; attempt++ {
				if rc.IsCancelled() {
					return domain.HttpObject{}, rc.CancelCause()
				}

				childDeadline := rc.Deadline()
				child := rc.Child(endpoint, childDeadline)

				lastResp, lastErr = inner.Call(child, endpoint, req)
				child.LogBuilder().Complete(lastErr)
				if cfg.Limiter != nil {
					cfg.Limiter.OnAttemptComplete(rc, lastResp, lastErr)
				}

				if lastErr == nil || !retryable(lastResp, lastErr) {
					return lastResp, lastErr
				}
				if attempt == maxAttempts {
					break
				}
				if cfg.Limiter != nil && !cfg.Limiter.ShouldRetry(rc, attempt) {
					break
				}
				if cfg.Backoff != nil {
					sleep(cfg.Backoff.DelayFor(attempt))
				}
			}
			return lastResp, lastErr
		})
	}
}
