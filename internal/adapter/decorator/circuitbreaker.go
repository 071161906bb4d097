package decorator

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// CircuitState is one of the three states of the breaker's state
// machine.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// OutcomeRule classifies a Service call's result as success or failure.
// The default provided by DefaultOutcomeRule treats any non-nil error
// as a failure.
type OutcomeRule func(resp domain.HttpObject, err error) bool

// DefaultOutcomeRule reports success iff err is nil.
func DefaultOutcomeRule(_ domain.HttpObject, err error) bool {
	return err == nil
}

// Fallback produces a response (or error) while the breaker is Open,
// standing in for the delegate call that was rejected.
type Fallback func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error)

// CircuitBreakerConfig parameterises a single breaker instance.
type CircuitBreakerConfig struct {
	// FailureThreshold is the failure ratio (0,1] that trips Closed -> Open
	// once WindowSize calls have been observed.
	FailureThreshold float64
	// WindowSize is the number of most recent outcomes the ratio is
	// computed over.
	WindowSize int
	// OpenDuration is how long the breaker stays Open before allowing a
	// single HalfOpen probe call through.
	OpenDuration time.Duration
	Outcome      OutcomeRule
	Fallback     Fallback
	// Now is injected for tests; defaults to time.Now.
	Now func() time.Time
}

// CircuitBreaker implements the Closed/Open/HalfOpen state machine over
// a fixed-size ring buffer of recent outcomes, generalised from a
// threshold-of-consecutive-failures counter to a rolling failure-ratio
// window with an explicit HalfOpen probe.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu      sync.Mutex
	outcome []bool // true = success
	idx     int
	filled  int

	state        atomic.Int32
	openedAt     atomic.Int64 // UnixNano
	halfOpenBusy atomic.Bool
}

// NewCircuitBreaker validates cfg and returns a ready breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 0.5
	}
	if cfg.Outcome == nil {
		cfg.Outcome = DefaultOutcomeRule
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		cfg:     cfg,
		outcome: make([]bool, cfg.WindowSize),
	}
}

// State returns the breaker's current state, resolving an expired Open
// window into HalfOpen as a side effect (the transition is driven by
// wall-clock time, not a background timer).
func (cb *CircuitBreaker) State() CircuitState {
	s := CircuitState(cb.state.Load())
	if s != CircuitOpen {
		return s
	}
	openedAt := time.Unix(0, cb.openedAt.Load())
	if cb.cfg.Now().Sub(openedAt) >= cb.cfg.OpenDuration {
		if cb.state.CompareAndSwap(int32(CircuitOpen), int32(CircuitHalfOpen)) {
			cb.halfOpenBusy.Store(false)
		}
		return CircuitHalfOpen
	}
	return CircuitOpen
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	cb.outcome[cb.idx] = success
	cb.idx = (cb.idx + 1) % len(cb.outcome)
	if cb.filled < len(cb.outcome) {
		cb.filled++
	}
	failures := 0
	for i := 0; i < cb.filled; i++ {
		if !cb.outcome[i] {
			failures++
		}
	}
	ratio := float64(failures) / float64(cb.filled)
	trip := cb.filled == len(cb.outcome) && ratio >= cb.cfg.FailureThreshold
	cb.mu.Unlock()

	switch cb.State() {
	case CircuitHalfOpen:
		if success {
			cb.state.Store(int32(CircuitClosed))
			cb.resetWindow()
		} else {
			cb.trip()
		}
	default:
		if trip {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state.Store(int32(CircuitOpen))
	cb.openedAt.Store(cb.cfg.Now().UnixNano())
}

func (cb *CircuitBreaker) resetWindow() {
	cb.mu.Lock()
	for i := range cb.outcome {
		cb.outcome[i] = false
	}
	cb.idx, cb.filled = 0, 0
	cb.mu.Unlock()
}

// Decorate wraps inner with this breaker: while Open, calls are
// rejected via Fallback; a single HalfOpen probe is let through and
// decides the next transition.
func (cb *CircuitBreaker) Decorate(inner ports.Service) ports.Service {
	return ports.ServiceFunc(func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
		switch cb.State() {
		case CircuitOpen:
			if cb.cfg.Fallback != nil {
				return cb.cfg.Fallback(rc, req)
			}
			return domain.HttpObject{}, domain.NewPipelineError(domain.KindRejected, "circuit-breaker", "", 0, nil)
		case CircuitHalfOpen:
			if !cb.halfOpenBusy.CompareAndSwap(false, true) {
				if cb.cfg.Fallback != nil {
					return cb.cfg.Fallback(rc, req)
				}
				return domain.HttpObject{}, domain.NewPipelineError(domain.KindRejected, "circuit-breaker", "", 0, nil)
			}
			defer cb.halfOpenBusy.Store(false)
		}

		resp, err := inner.Serve(rc, req)
		cb.record(cb.cfg.Outcome(resp, err))
		return resp, err
	})
}
