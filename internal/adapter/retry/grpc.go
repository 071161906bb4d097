package retry

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/thushan/olla/internal/core/domain"
)

// grpcScale preserves three decimal digits of precision in the
// otherwise-integer token count.
const grpcScale = 1000

// GrpcAdaptiveLimiterConfig validates and constructs a GrpcAdaptiveLimiter.
type GrpcAdaptiveLimiterConfig struct {
	// MaxTokens is the bucket ceiling (unscaled, e.g. 100).
	MaxTokens int
	// Threshold is the unscaled count at or below which retries are denied;
	// must be in (0, MaxTokens].
	Threshold int
	// TokenRatio is the unscaled increment applied per non-retryable
	// outcome with an observed status.
	TokenRatio int
	// RetryableStatuses is the set of grpc-status values that count
	// against the budget. Empty entries are stripped by NewGrpcAdaptiveLimiter.
	RetryableStatuses []string
}

// GrpcAdaptiveLimiter implements the gRPC "adaptive throttling" retry
// budget: a scaled-integer token bucket that drains on retryable
// failures and slowly refills on success, so a backend in genuine
// trouble sees retry volume taper off instead of amplifying load. Its
// atomic-counter style generalises a boolean trip state into a bounded
// integer budget.
type GrpcAdaptiveLimiter struct {
	maxTokens  int64
	threshold  int64
	tokenRatio int64
	retryable  map[string]struct{}
	count      atomic.Int64
}

// NewGrpcAdaptiveLimiter validates cfg and returns a limiter seeded at
// max_tokens. An invalid config returns an error
// rather than a limiter that would silently always-allow or
// always-deny.
func NewGrpcAdaptiveLimiter(cfg GrpcAdaptiveLimiterConfig) (*GrpcAdaptiveLimiter, error) {
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("retry: max_tokens must be > 0")
	}
	if cfg.TokenRatio <= 0 {
		return nil, fmt.Errorf("retry: token_ratio must be > 0")
	}
	if cfg.Threshold <= 0 || cfg.Threshold > cfg.MaxTokens {
		return nil, fmt.Errorf("retry: threshold must be in (0, max_tokens]")
	}

	retryable := make(map[string]struct{}, len(cfg.RetryableStatuses))
	for _, s := range cfg.RetryableStatuses {
		if s == "" {
			continue
		}
		retryable[s] = struct{}{}
	}
	if len(retryable) == 0 {
		return nil, fmt.Errorf("retry: retryable_statuses must contain at least one non-null entry")
	}

	l := &GrpcAdaptiveLimiter{
		maxTokens:  int64(cfg.MaxTokens) * grpcScale,
		threshold:  int64(cfg.Threshold) * grpcScale,
		tokenRatio: int64(cfg.TokenRatio) * grpcScale,
		retryable:  retryable,
	}
	l.count.Store(l.maxTokens)
	return l, nil
}

// ShouldRetry allows another attempt iff the current (scaled) count
// exceeds the (scaled) threshold.
func (l *GrpcAdaptiveLimiter) ShouldRetry(_ *domain.RequestContext, _ int) bool {
	return l.count.Load() > l.threshold
}

// OnAttemptComplete consults resp's trailers first, then headers, for
// grpc-status, and adjusts the budget: a retryable status drains
// grpc_scale tokens, a non-retryable observed status
// refills token_ratio tokens, and no observed status (resp carries
// neither - a local/transport-level failure) leaves the count
// unchanged.
func (l *GrpcAdaptiveLimiter) OnAttemptComplete(_ *domain.RequestContext, resp domain.HttpObject, _ error) {
	status, observed := l.grpcStatus(resp)
	if !observed {
		return
	}

	if _, retryable := l.retryable[status]; retryable {
		l.drain(grpcScale)
	} else {
		l.refill(l.tokenRatio)
	}
}

func (l *GrpcAdaptiveLimiter) grpcStatus(resp domain.HttpObject) (string, bool) {
	if resp.Kind == domain.ObjectTrailers && resp.Trailers != nil {
		if v := resp.Trailers.Get("grpc-status"); v != "" {
			return v, true
		}
	}
	if resp.Kind == domain.ObjectHeaders && resp.Headers != nil {
		if v := resp.Headers.Get("grpc-status"); v != "" {
			return v, true
		}
	}
	return "", false
}

func (l *GrpcAdaptiveLimiter) drain(amount int64) {
	for {
		cur := l.count.Load()
		next := cur - amount
		if next < 0 {
			next = 0
		}
		if l.count.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (l *GrpcAdaptiveLimiter) refill(amount int64) {
	for {
		cur := l.count.Load()
		next := cur + amount
		if next > l.maxTokens {
			next = l.maxTokens
		}
		if l.count.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Count returns the current unscaled token count, for diagnostics and
// tests.
func (l *GrpcAdaptiveLimiter) Count() float64 {
	return float64(l.count.Load()) / grpcScale
}
