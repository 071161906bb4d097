package endpoint

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/olla/internal/core/domain"
)

type fakeProbe struct {
	mu      sync.Mutex
	healthy map[string]bool
	calls   map[string]int
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{healthy: make(map[string]bool), calls: make(map[string]int)}
}

func (p *fakeProbe) setHealthy(key string, healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy[key] = healthy
}

func (p *fakeProbe) callCount(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[key]
}

func (p *fakeProbe) Probe(e *domain.Endpoint) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[e.Key()]++
	return p.healthy[e.Key()], nil
}

func TestHealthChecked_RoutesOnlyProbedHealthyEndpoints(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	b := healthyEndpoint("b", 2, 1)
	delegate := NewStatic([]*domain.Endpoint{a, b}, &RoundRobinStrategy{})

	probe := newFakeProbe()
	probe.setHealthy(a.Key(), true)
	probe.setHealthy(b.Key(), false)

	hc := NewHealthChecked(delegate, &RoundRobinStrategy{}, probe, 10*time.Millisecond, 50*time.Millisecond, 2)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hc.Start(ctx))
	defer func() {
		cancel()
		_ = hc.Stop(context.Background())
	}()

	require.Eventually(t, func() bool {
		eps := hc.Endpoints()
		return len(eps) == 1 && eps[0].Equal(a)
	}, time.Second, 5*time.Millisecond)
}

func TestHealthChecked_OnStatusChangeFiresOnTransition(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	delegate := NewStatic([]*domain.Endpoint{a}, &RoundRobinStrategy{})

	probe := newFakeProbe()
	probe.setHealthy(a.Key(), false)

	hc := NewHealthChecked(delegate, &RoundRobinStrategy{}, probe, 10*time.Millisecond, 50*time.Millisecond, 2)

	var mu sync.Mutex
	var statuses []domain.EndpointStatus
	hc.OnStatusChange(func(_ *domain.Endpoint, status domain.EndpointStatus) {
		mu.Lock()
		statuses = append(statuses, status)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hc.Start(ctx))
	defer func() {
		cancel()
		_ = hc.Stop(context.Background())
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 1 && statuses[0] == domain.StatusUnhealthy
	}, time.Second, 5*time.Millisecond)

	probe.setHealthy(a.Key(), true)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range statuses {
			if s == domain.StatusHealthy {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestHealthChecked_SelectTimesOutWhenNothingHealthy(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	delegate := NewStatic([]*domain.Endpoint{a}, &RoundRobinStrategy{})
	probe := newFakeProbe()
	probe.setHealthy(a.Key(), false)

	hc := NewHealthChecked(delegate, &RoundRobinStrategy{}, probe, 10*time.Millisecond, 30*time.Millisecond, 2)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hc.Start(ctx))
	defer func() {
		cancel()
		_ = hc.Stop(context.Background())
	}()

	rc := newTestRC(t, time.Now().Add(time.Second))
	picked, err := hc.Select(rc)
	assert.NoError(t, err)
	assert.Nil(t, picked)
}

func TestHealthChecked_SelectionTimeoutSwitchesAfterFirstProbe(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	delegate := NewStatic([]*domain.Endpoint{a}, &RoundRobinStrategy{})
	probe := newFakeProbe()
	probe.setHealthy(a.Key(), true)

	hc := NewHealthCheckedTimeouts(delegate, &RoundRobinStrategy{}, probe, 10*time.Millisecond, 200*time.Millisecond, 50*time.Millisecond, 2)
	assert.Equal(t, 200*time.Millisecond, hc.SelectionTimeout(), "before first probe, initial timeout applies")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hc.Start(ctx))
	defer func() {
		cancel()
		_ = hc.Stop(context.Background())
	}()

	require.Eventually(t, func() bool {
		return hc.SelectionTimeout() == 50*time.Millisecond
	}, time.Second, 5*time.Millisecond, "after first probe pass, steady timeout applies")
}

func TestHealthChecked_ConsistentFailuresBackOffReprobing(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	delegate := NewStatic([]*domain.Endpoint{a}, &RoundRobinStrategy{})
	probe := newFakeProbe()
	probe.setHealthy(a.Key(), false)

	const interval = 5 * time.Millisecond
	hc := NewHealthChecked(delegate, &RoundRobinStrategy{}, probe, interval, 20*time.Millisecond, 2)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hc.Start(ctx))
	defer func() {
		cancel()
		_ = hc.Stop(context.Background())
	}()

	// Let several backoff-eligible ticks pass. Without deferral this would
	// probe roughly once per interval (~200ms / 5ms = 40 calls); with
	// exponential deferral the endpoint should be probed far less often.
	require.Eventually(t, func() bool {
		return probe.callCount(a.Key()) >= 3
	}, time.Second, 5*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	calls := probe.callCount(a.Key())
	assert.Less(t, calls, 15, "consistently failing endpoint should be probed less often than every tick")

	probe.setHealthy(a.Key(), true)
	require.Eventually(t, func() bool {
		eps := hc.Endpoints()
		return len(eps) == 1 && eps[0].Equal(a)
	}, 2*time.Second, 10*time.Millisecond, "endpoint recovers once its deferred check lands and succeeds")
}

func TestHealthChecked_HealthSummaryReflectsProbeOutcomes(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	b := healthyEndpoint("b", 2, 1)
	c := healthyEndpoint("c", 3, 1)
	delegate := NewStatic([]*domain.Endpoint{a, b, c}, &RoundRobinStrategy{})

	probe := newFakeProbe()
	probe.setHealthy(a.Key(), true)
	probe.setHealthy(b.Key(), false)
	// c has no entry in probe.healthy, so fakeProbe reports it unhealthy.

	hc := NewHealthChecked(delegate, &RoundRobinStrategy{}, probe, 5*time.Millisecond, 50*time.Millisecond, 2)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hc.Start(ctx))
	defer func() {
		cancel()
		_ = hc.Stop(context.Background())
	}()

	require.Eventually(t, func() bool {
		return probe.callCount(a.Key()) > 0 && probe.callCount(b.Key()) > 0 && probe.callCount(c.Key()) > 0
	}, time.Second, 5*time.Millisecond)

	healthy, unhealthy, unknown := hc.HealthSummary()
	assert.Equal(t, 1, healthy)
	assert.Equal(t, 2, unhealthy)
	assert.Equal(t, 0, unknown)
}

func TestHealthChecked_NextCheckForAndLastLatencyFor(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	delegate := NewStatic([]*domain.Endpoint{a}, &RoundRobinStrategy{})
	probe := newFakeProbe()
	probe.setHealthy(a.Key(), false)

	hc := NewHealthChecked(delegate, &RoundRobinStrategy{}, probe, 5*time.Millisecond, 50*time.Millisecond, 1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hc.Start(ctx))
	defer func() {
		cancel()
		_ = hc.Stop(context.Background())
	}()

	require.Eventually(t, func() bool {
		_, ok := hc.NextCheckFor(a)
		return ok
	}, time.Second, 5*time.Millisecond)

	next, ok := hc.NextCheckFor(a)
	require.True(t, ok)
	assert.True(t, next.After(time.Now().Add(-time.Second)))

	_, ok = hc.LastLatencyFor(a)
	assert.True(t, ok)
}
