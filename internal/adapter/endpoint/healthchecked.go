package endpoint

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thushan/olla/internal/core/constants"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
	"github.com/thushan/olla/internal/util"
)

// HealthChecked wraps a delegate EndpointGroup and probes each of its
// endpoints on an interval, marking an endpoint routable only once its
// probe reports healthy (2xx by default). Each scan fans its due
// endpoints out across at most workers concurrent probes via an
// errgroup.Group, so a hanging backend can't starve the others within
// the same scan.
//
// The default selection timeout is the delegate's own selection timeout
// plus the configured response timeout; callers that need distinct
// cold-start and steady-state behaviour can instead supply an (initial,
// steady) pair via NewHealthCheckedTimeouts.
type HealthChecked struct {
	delegate   ports.EndpointGroup
	strategy   ports.SelectionStrategy
	probe      ports.HealthProbe
	interval   time.Duration
	workers    int
	initialTO  time.Duration
	steadyTO   time.Duration
	hasStarted bool
	mu         sync.RWMutex
	healthy    map[string]bool
	latency    map[string]time.Duration
	// nextCheck defers re-enqueuing a consistently-failing endpoint past
	// the next regular tick, backed off per domain.Endpoint.BackoffMultiplier.
	nextCheck map[string]time.Time
	onChange  []func(*domain.Endpoint, domain.EndpointStatus)
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewHealthChecked builds a HealthChecked group whose selection timeout
// is delegate.SelectionTimeout() + responseTimeout for the lifetime of
// the group (no separate cold-start window).
func NewHealthChecked(delegate ports.EndpointGroup, strategy ports.SelectionStrategy, probe ports.HealthProbe, interval, responseTimeout time.Duration, workers int) *HealthChecked {
	return NewHealthCheckedTimeouts(delegate, strategy, probe, interval, responseTimeout, responseTimeout, workers)
}

// NewHealthCheckedTimeouts builds a HealthChecked group with distinct
// selection-timeout budgets before and after the first probe result is
// recorded, so a cold start (no endpoint probed yet) can afford to wait
// longer than steady state.
func NewHealthCheckedTimeouts(delegate ports.EndpointGroup, strategy ports.SelectionStrategy, probe ports.HealthProbe, interval, initialResponseTimeout, steadyResponseTimeout time.Duration, workers int) *HealthChecked {
	if workers <= 0 {
		workers = 4
	}
	return &HealthChecked{
		delegate:  delegate,
		strategy:  strategy,
		probe:     probe,
		interval:  interval,
		workers:   workers,
		initialTO: delegate.SelectionTimeout() + initialResponseTimeout,
		steadyTO:  delegate.SelectionTimeout() + steadyResponseTimeout,
		healthy:   make(map[string]bool),
		latency:   make(map[string]time.Duration),
		nextCheck: make(map[string]time.Time),
		stop:      make(chan struct{}),
	}
}

// OnStatusChange registers fn to be invoked whenever a probe flips an
// endpoint's computed routability.
func (h *HealthChecked) OnStatusChange(fn func(endpoint *domain.Endpoint, status domain.EndpointStatus)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Start spawns the periodic scan loop. Stop (or ctx cancellation) ends
// it.
func (h *HealthChecked) Start(ctx context.Context) error {
	h.wg.Add(1)
	go h.scheduleLoop(ctx)
	return nil
}

func (h *HealthChecked) Stop(_ context.Context) error {
	close(h.stop)
	h.wg.Wait()
	return nil
}

func (h *HealthChecked) scheduleLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			h.scanOnce(ctx)
		}
	}
}

// scanOnce probes every endpoint currently due a check, fanned out over
// at most h.workers concurrent probes - the same errgroup.WithContext +
// SetLimit shape the model discovery service uses for its own bounded
// concurrent endpoint scans. A probe failure is recorded via
// recordResult rather than returned, so one unhealthy endpoint never
// cancels its siblings' probes still in flight.
func (h *HealthChecked) scanOnce(ctx context.Context) {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(h.workers)

	now := time.Now()
	for _, e := range h.delegate.Endpoints() {
		if egCtx.Err() != nil {
			break
		}
		h.mu.RLock()
		until, backedOff := h.nextCheck[e.Key()]
		h.mu.RUnlock()
		if backedOff && now.Before(until) {
			continue
		}

		endpoint := e
		eg.Go(func() error {
			start := time.Now()
			healthy, _ := h.probe.Probe(endpoint)
			elapsed := time.Since(start)

			h.mu.Lock()
			h.latency[endpoint.Key()] = elapsed
			h.mu.Unlock()

			h.recordResult(endpoint, healthy)
			return nil
		})
	}
	_ = eg.Wait()
}

// LastLatencyFor reports the duration of e's most recent probe, for
// status reporting alongside HealthSummary.
func (h *HealthChecked) LastLatencyFor(e *domain.Endpoint) (time.Duration, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d, ok := h.latency[e.Key()]
	return d, ok
}

func (h *HealthChecked) recordResult(e *domain.Endpoint, healthy bool) {
	h.mu.Lock()
	prev, known := h.healthy[e.Key()]
	h.healthy[e.Key()] = healthy
	changed := !known || prev != healthy
	if !h.hasStarted {
		h.hasStarted = true
	}

	if healthy {
		e.ConsecutiveFailures = 0
		e.BackoffMultiplier = 0
		delete(h.nextCheck, e.Key())
	} else {
		e.ConsecutiveFailures++
		if e.BackoffMultiplier <= 0 {
			e.BackoffMultiplier = 1
		} else if e.BackoffMultiplier < constants.DefaultMaxBackoffMultiplier {
			e.BackoffMultiplier *= 2
		}
		h.nextCheck[e.Key()] = time.Now().Add(util.CalculateEndpointBackoff(h.interval, e.BackoffMultiplier))
	}

	callbacks := append([]func(*domain.Endpoint, domain.EndpointStatus){}, h.onChange...)
	h.mu.Unlock()

	if !changed {
		return
	}
	status := domain.StatusUnhealthy
	if healthy {
		status = domain.StatusHealthy
	}
	for _, fn := range callbacks {
		fn(e, status)
	}
}

// isHealthy reports whether e's last probe succeeded; an endpoint never
// probed is treated as unhealthy so it isn't routed before its first
// check completes.
func (h *HealthChecked) isHealthy(e *domain.Endpoint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy[e.Key()]
}

func (h *HealthChecked) routableSnapshot() []*domain.Endpoint {
	all := h.delegate.Endpoints()
	out := make([]*domain.Endpoint, 0, len(all))
	for _, e := range all {
		if e.Status.IsRoutable() && h.isHealthy(e) {
			out = append(out, e)
		}
	}
	return out
}

func (h *HealthChecked) Endpoints() []*domain.Endpoint {
	return h.routableSnapshot()
}

// NextCheckFor reports when e is next due a probe if it is currently
// backed off, for status reporting alongside HealthSummary.
func (h *HealthChecked) NextCheckFor(e *domain.Endpoint) (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.nextCheck[e.Key()]
	return t, ok
}

// HealthSummary reports how many of the delegate's configured endpoints
// are currently healthy, unhealthy, or not yet probed, for status
// logging and reporting.
func (h *HealthChecked) HealthSummary() (healthy, unhealthy, unknown int) {
	all := h.delegate.Endpoints()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range all {
		state, probed := h.healthy[e.Key()]
		switch {
		case !probed:
			unknown++
		case state:
			healthy++
		default:
			unhealthy++
		}
	}
	return healthy, unhealthy, unknown
}

func (h *HealthChecked) SelectionTimeout() time.Duration {
	h.mu.RLock()
	started := h.hasStarted
	h.mu.RUnlock()
	if started {
		return h.steadyTO
	}
	return h.initialTO
}

func (h *HealthChecked) Select(rc *domain.RequestContext) (*domain.Endpoint, error) {
	timeout := h.SelectionTimeout()
	if timeout > 0 {
		remaining := rc.Remaining()
		if remaining < timeout {
			timeout = remaining
		}
	}

	deadline := time.Now().Add(timeout)
	var timer *time.Timer
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	for {
		if snapshot := h.routableSnapshot(); len(snapshot) > 0 {
			return h.strategy.Select(snapshot, rc), nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			rc.LogBuilder().Set(domain.LogCause, domain.ErrEndpointSelectionTimeout)
			return nil, nil
		}
		select {
		case <-timeoutC:
			rc.LogBuilder().Set(domain.LogCause, domain.ErrEndpointSelectionTimeout)
			return nil, nil
		case <-rc.Context().Done():
			return nil, rc.CancelCause()
		case <-time.After(25 * time.Millisecond):
			// re-poll; the delegate's own readiness signal (if any) isn't
			// visible here since HealthChecked composes over EndpointGroup,
			// not DynamicEndpointGroup specifically.
		}
	}
}
