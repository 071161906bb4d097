package ports

import (
	"time"

	"github.com/thushan/olla/internal/core/domain"
)

// Backoff computes the delay before retry attempt n (1-indexed: n=1 is
// the delay before the second overall attempt).
type Backoff interface {
	DelayFor(attempt int) time.Duration
}

// RetryLimiter is consulted before scheduling another attempt; if it
// denies, the retry decorator gives up regardless of what Backoff would
// otherwise allow. Implementations must be safe for concurrent use -
// many in-flight exchanges share one limiter.
type RetryLimiter interface {
	// ShouldRetry reports whether another attempt may be scheduled. It
	// must not block.
	ShouldRetry(rc *domain.RequestContext, attempt int) bool

	// OnAttemptComplete informs the limiter of an attempt's outcome so
	// adaptive limiters (the gRPC token bucket) can adjust their budget.
	// err is nil on success.
	OnAttemptComplete(rc *domain.RequestContext, resp domain.HttpObject, err error)
}
