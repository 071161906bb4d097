package ports

import (
	"time"

	"github.com/thushan/olla/internal/core/domain"
)

// EndpointGroup resolves a request to one Endpoint.
// Select blocks up to min(SelectionTimeout(), the context's remaining
// deadline); it returns (nil, nil) - not an error - when the selection
// timeout elapses with no endpoint available, matching the "Future<Endpoint?>"
// contract's null-on-timeout rather than an exceptional outcome.
// Context cancellation during Select returns (nil, ctx.Err()) and
// records EndpointSelectionTimeout on the log when the cause was a
// timeout rather than an explicit cancel.
type EndpointGroup interface {
	Select(rc *domain.RequestContext) (*domain.Endpoint, error)

	// SelectionTimeout is this group's own timeout, before composing with
	// a parent's remaining response deadline. Static groups return 0
	// (immediate, pure selection); Dynamic/Composite/OrElse/HealthChecked
	// each compute their own.
	SelectionTimeout() time.Duration

	// Endpoints returns the group's current endpoint snapshot, for
	// diagnostics and for strategies that need the full set rather than a
	// single selection.
	Endpoints() []*domain.Endpoint
}

// DynamicEndpointGroup is satisfied by groups whose endpoint set changes
// at runtime (Dynamic, and anything wrapping it) - the selection
// strategies and the HealthChecked wrapper need to subscribe to updates
// rather than only read a fixed Endpoints() snapshot.
type DynamicEndpointGroup interface {
	EndpointGroup

	// Subscribe registers fn to be called with the new snapshot every
	// time the endpoint set changes. The returned func unregisters it.
	Subscribe(fn func([]*domain.Endpoint)) (unsubscribe func())

	// Ready returns a channel that closes the first time the endpoint
	// set becomes non-empty.
	Ready() <-chan struct{}
}

// SelectionStrategy picks one Endpoint from a non-empty snapshot, given
// per-exchange selection state (e.g. a sticky key). Strategies must be
// deterministic given the same snapshot and state.
type SelectionStrategy interface {
	Select(endpoints []*domain.Endpoint, rc *domain.RequestContext) *domain.Endpoint
}

// HealthProbe checks a single Endpoint's health for the HealthChecked
// group. The default implementation issues an HTTP GET of
// a configured health path and reports healthy on any 2xx; a pluggable
// probe can replace this (e.g. a TCP dial, a gRPC health-check call).
type HealthProbe interface {
	Probe(endpoint *domain.Endpoint) (healthy bool, err error)
}
