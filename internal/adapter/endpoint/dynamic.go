package endpoint

import (
	"sync"
	"time"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// Dynamic maintains a mutable endpoint list plus a readiness signal that
// completes the first time the list becomes non-empty. Select waits up
// to SelectionTimeoutMs for a non-empty list (0 means unlimited), then
// returns (nil, nil).
type Dynamic struct {
	mu               sync.Mutex
	endpoints        []*domain.Endpoint
	subscribers      []func([]*domain.Endpoint)
	ready            chan struct{}
	readyOnce        sync.Once
	selectionTimeout time.Duration
	strategy         ports.SelectionStrategy
}

func NewDynamic(strategy ports.SelectionStrategy, selectionTimeout time.Duration) *Dynamic {
	return &Dynamic{
		ready:            make(chan struct{}),
		selectionTimeout: selectionTimeout,
		strategy:         strategy,
	}
}

// Update replaces the endpoint list and notifies subscribers; the first
// call with a non-empty list resolves Ready().
func (d *Dynamic) Update(endpoints []*domain.Endpoint) {
	d.mu.Lock()
	d.endpoints = endpoints
	subs := append([]func([]*domain.Endpoint){}, d.subscribers...)
	nonEmpty := len(endpoints) > 0
	d.mu.Unlock()

	if nonEmpty {
		d.readyOnce.Do(func() { close(d.ready) })
	}
	for _, fn := range subs {
		if fn != nil {
			fn(endpoints)
		}
	}
}

func (d *Dynamic) Ready() <-chan struct{} {
	return d.ready
}

func (d *Dynamic) Subscribe(fn func([]*domain.Endpoint)) func() {
	d.mu.Lock()
	d.subscribers = append(d.subscribers, fn)
	idx := len(d.subscribers) - 1
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if idx < len(d.subscribers) {
			d.subscribers[idx] = nil
		}
	}
}

func (d *Dynamic) Endpoints() []*domain.Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*domain.Endpoint, len(d.endpoints))
	copy(out, d.endpoints)
	return out
}

func (d *Dynamic) SelectionTimeout() time.Duration {
	return d.selectionTimeout
}

// Select makes an immediate choice if the set is already non-empty,
// otherwise it waits up to
// min(selection_timeout, remaining deadline) for readiness, returning
// (nil, nil) on timeout and (nil, ctx error) on cancellation.
func (d *Dynamic) Select(rc *domain.RequestContext) (*domain.Endpoint, error) {
	snapshot := d.Endpoints()
	if len(snapshot) > 0 {
		return d.strategy.Select(snapshot, rc), nil
	}

	timeout := d.selectionTimeout
	if timeout > 0 {
		remaining := rc.Remaining()
		if remaining < timeout {
			timeout = remaining
		}
	}

	var timer *time.Timer
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-d.Ready():
		return d.strategy.Select(d.Endpoints(), rc), nil
	case <-timeoutC:
		rc.LogBuilder().Set(domain.LogCause, domain.ErrEndpointSelectionTimeout)
		return nil, nil
	case <-rc.Context().Done():
		return nil, rc.CancelCause()
	}
}
