// Package endpoint implements the endpoint group variants and selection
// strategies, built around a round-robin/priority balancer shape and a
// health-checked worker pool.
package endpoint

import (
	"hash/fnv"
	"sync/atomic"

	"github.com/thushan/olla/internal/core/domain"
)

func routable(endpoints []*domain.Endpoint) []*domain.Endpoint {
	out := make([]*domain.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if e.Status.IsRoutable() {
			out = append(out, e)
		}
	}
	return out
}

// RoundRobinStrategy cycles through the routable endpoint set.
type RoundRobinStrategy struct {
	counter atomic.Uint64
}

func (s *RoundRobinStrategy) Select(endpoints []*domain.Endpoint, _ *domain.RequestContext) *domain.Endpoint {
	r := routable(endpoints)
	if len(r) == 0 {
		return nil
	}
	idx := s.counter.Add(1) - 1
	return r[idx%uint64(len(r))]
}

// WeightedRoundRobinStrategy cycles deterministically through routable
// endpoints, picking each one Weight times per cycle (non-positive
// weights count as 1).
type WeightedRoundRobinStrategy struct {
	counter atomic.Uint64
}

func (s *WeightedRoundRobinStrategy) Select(endpoints []*domain.Endpoint, _ *domain.RequestContext) *domain.Endpoint {
	r := routable(endpoints)
	if len(r) == 0 {
		return nil
	}
	total := 0
	for _, e := range r {
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		total += w
	}
	if total == 0 {
		return r[0]
	}
	pos := int(s.counter.Add(1)-1) % total
	for _, e := range r {
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		if pos < w {
			return e
		}
		pos -= w
	}
	return r[len(r)-1]
}

// StickyKeyFunc extracts the key a StickyStrategy hashes to choose an
// endpoint, e.g. a client IP or session cookie pulled off the request
// context's attributes.
type StickyKeyFunc func(rc *domain.RequestContext) string

// StickyStrategy routes the same key to the same endpoint for as long as
// the routable set doesn't change size, via FNV-1a hashing - simple,
// stdlib, and deterministic given (snapshot, key).
type StickyStrategy struct {
	Key StickyKeyFunc
}

func (s *StickyStrategy) Select(endpoints []*domain.Endpoint, rc *domain.RequestContext) *domain.Endpoint {
	r := routable(endpoints)
	if len(r) == 0 {
		return nil
	}
	key := ""
	if s.Key != nil {
		key = s.Key(rc)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	idx := h.Sum32() % uint32(len(r))
	return r[idx]
}

// RampUpStrategy gives newly observed endpoints a linearly increasing
// share of traffic rather than full weight immediately, so a freshly
// started backend isn't hit at full load before it's warmed up. seenAt
// records the attempt counter at which an endpoint was first observed;
// its effective weight scales linearly up to its configured Weight over
// RampUpRequests selections, never below 1% of that Weight.
type RampUpStrategy struct {
	RampUpRequests int

	counter atomic.Uint64
	seenAt  map[string]uint64
}

func NewRampUpStrategy(rampUpRequests int) *RampUpStrategy {
	if rampUpRequests <= 0 {
		rampUpRequests = 100
	}
	return &RampUpStrategy{RampUpRequests: rampUpRequests, seenAt: make(map[string]uint64)}
}

func (s *RampUpStrategy) Select(endpoints []*domain.Endpoint, _ *domain.RequestContext) *domain.Endpoint {
	r := routable(endpoints)
	if len(r) == 0 {
		return nil
	}
	now := s.counter.Add(1)

	type weighted struct {
		e *domain.Endpoint
		w float64
	}
	weights := make([]weighted, 0, len(r))
	total := 0.0
	for _, e := range r {
		first, ok := s.seenAt[e.Key()]
		if !ok {
			first = now
			s.seenAt[e.Key()] = now
		}
		base := float64(e.Weight)
		if base <= 0 {
			base = 1
		}
		age := now - first
		ramp := base
		if int(age) < s.RampUpRequests {
			ramp = base * float64(age) / float64(s.RampUpRequests)
			if ramp <= 0 {
				ramp = base * 0.01
			}
		}
		weights = append(weights, weighted{e: e, w: ramp})
		total += ramp
	}
	if total <= 0 {
		return r[0]
	}
	pos := float64(now%1000) / 1000 * total
	for _, w := range weights {
		if pos < w.w {
			return w.e
		}
		pos -= w.w
	}
	return weights[len(weights)-1].e
}
