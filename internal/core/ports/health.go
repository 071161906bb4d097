package ports

import (
	"context"

	"github.com/thushan/olla/internal/core/domain"
)

// HealthChecker runs HealthProbe against a set of endpoints on an
// interval, using a bounded worker pool so a slow/hanging backend can't
// starve checks of its siblings. Results are posted back to whatever
// owns the endpoint set (typically a HealthChecked EndpointGroup)
// rather than mutated directly by probe goroutines.
type HealthChecker interface {
	// Start begins periodic probing; Stop (or ctx cancellation) ends it.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// OnStatusChange registers fn to be called whenever an endpoint's
	// computed EndpointStatus changes.
	OnStatusChange(fn func(endpoint *domain.Endpoint, status domain.EndpointStatus))
}
