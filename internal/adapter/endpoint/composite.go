package endpoint

import (
	"time"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// Composite is the union of several child groups; its selection timeout
// is the maximum of its children's.
type Composite struct {
	children []ports.EndpointGroup
	strategy ports.SelectionStrategy
}

func NewComposite(strategy ports.SelectionStrategy, children ...ports.EndpointGroup) *Composite {
	return &Composite{children: children, strategy: strategy}
}

func (c *Composite) SelectionTimeout() time.Duration {
	var longest time.Duration
	for _, child := range c.children {
		if t := child.SelectionTimeout(); t > longest {
			longest = t
		}
	}
	return longest
}

func (c *Composite) Endpoints() []*domain.Endpoint {
	var all []*domain.Endpoint
	for _, child := range c.children {
		all = append(all, child.Endpoints()...)
	}
	return all
}

// Select picks from the union's current snapshot if it is already
// non-empty. Otherwise it runs a single wait bounded by
// min(c.SelectionTimeout(), the context's remaining deadline), racing
// every child's readiness concurrently rather than delegating a
// blocking Select call to each child in turn - the latter would sum
// the children's individual waits instead of taking their max.
func (c *Composite) Select(rc *domain.RequestContext) (*domain.Endpoint, error) {
	if snapshot := c.Endpoints(); len(snapshot) > 0 {
		return c.strategy.Select(snapshot, rc), nil
	}

	timeout := c.SelectionTimeout()
	if timeout > 0 {
		if remaining := rc.Remaining(); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, nil
	}
	deadline := time.Now().Add(timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Children that report updates (Dynamic, and anything wrapping it)
	// push onto ready the moment they go non-empty, so the common case
	// needs no polling at all. A child that exposes neither Ready nor
	// Subscribe (e.g. a nested Composite/OrElse whose own children
	// change later) is covered by the poll ticker below instead.
	ready := make(chan struct{}, len(c.children))
	for _, child := range c.children {
		if dyn, ok := child.(ports.DynamicEndpointGroup); ok {
			unsubscribe := dyn.Subscribe(func(endpoints []*domain.Endpoint) {
				if len(endpoints) > 0 {
					select {
					case ready <- struct{}{}:
					default:
					}
				}
			})
			defer unsubscribe()
		}
	}

	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ready:
		case <-poll.C:
		case <-timer.C:
			rc.LogBuilder().Set(domain.LogCause, domain.ErrEndpointSelectionTimeout)
			return nil, nil
		case <-rc.Context().Done():
			return nil, rc.CancelCause()
		}
		if snapshot := c.Endpoints(); len(snapshot) > 0 {
			return c.strategy.Select(snapshot, rc), nil
		}
		if time.Now().After(deadline) {
			rc.LogBuilder().Set(domain.LogCause, domain.ErrEndpointSelectionTimeout)
			return nil, nil
		}
	}
}
