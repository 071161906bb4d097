// Package http1 implements the HTTP/1.x codec: the 100-continue
// request-side state machine and a per-(protocol, authority,
// tls-context) connection pool, generalised from a single
// *http.Transport-per-endpoint model to the protocol's own
// ports.ConnectionPool.
package http1

import (
	"fmt"

	"github.com/thushan/olla/internal/core/domain"
)

// ContinueState is one state of the 100-continue request-side machine.
type ContinueState int

const (
	StateIdle ContinueState = iota
	StateExpectSent
	StateContinueReceived
	StateExpectationFailed
	StateFinalResponseWithoutContinue
	StateBodySent
)

func (s ContinueState) String() string {
	switch s {
	case StateExpectSent:
		return "expect-sent"
	case StateContinueReceived:
		return "continue-received"
	case StateExpectationFailed:
		return "expectation-failed"
	case StateFinalResponseWithoutContinue:
		return "final-response-without-continue"
	case StateBodySent:
		return "body-sent"
	default:
		return "idle"
	}
}

// ContinueMachine drives the request side of the Expect: 100-continue
// protocol: the request body must not be written until either a 100
// Continue interim response is observed or any non-1xx final response
// arrives (in which case the request stream is cancelled rather than
// completed normally).
type ContinueMachine struct {
	state ContinueState
}

// NewContinueMachine validates req against the two fast-failure rules
// (Expect without a body; Expect alongside a WebSocket upgrade) and
// returns a machine in StateExpectSent when the request carries
// Expect: 100-continue and in StateIdle otherwise, or an error if the
// request is already invalid before any I/O happens.
func NewContinueMachine(req *domain.HttpHeaders, hasBody bool) (*ContinueMachine, error) {
	expects := hasExpectContinue(req)
	if !expects {
		return &ContinueMachine{state: StateIdle}, nil
	}
	if !hasBody {
		return nil, fmt.Errorf("100-continue: %w: Expect: 100-continue set on a request with no body", domain.ErrIllegalArgument)
	}
	if isWebSocketUpgrade(req) {
		return nil, fmt.Errorf("100-continue: %w: Expect: 100-continue is incompatible with a WebSocket upgrade", domain.ErrIllegalArgument)
	}
	return &ContinueMachine{state: StateExpectSent}, nil
}

func hasExpectContinue(h *domain.HttpHeaders) bool {
	return h != nil && h.Get("expect") == "100-continue"
}

func isWebSocketUpgrade(h *domain.HttpHeaders) bool {
	return h != nil && h.Get("upgrade") == "websocket"
}

// State returns the machine's current state.
func (m *ContinueMachine) State() ContinueState {
	return m.state
}

// MayWriteBody reports whether the caller may start writing the request
// body right now.
func (m *ContinueMachine) MayWriteBody() bool {
	switch m.state {
	case StateIdle, StateContinueReceived, StateFinalResponseWithoutContinue:
		return true
	default:
		return false
	}
}

// OnInterimResponse transitions on a 1xx response. Only 100 advances the
// machine to ContinueReceived; any other 1xx is ignored by this
// machine (it is not a final response and carries no body
// implications).
func (m *ContinueMachine) OnInterimResponse(status int) {
	if m.state != StateExpectSent {
		return
	}
	if status == 100 {
		m.state = StateContinueReceived
	}
}

// OnFinalResponse transitions on a non-1xx response arriving before the
// body was ever written. The request stream must be cancelled - it
// cannot complete normally - so the caller must check State() after
// calling this and cancel rather than proceed.
func (m *ContinueMachine) OnFinalResponse() {
	if m.state == StateExpectSent {
		m.state = StateFinalResponseWithoutContinue
	}
}

// OnExpectationFailed transitions on a 417 Expectation Failed response.
func (m *ContinueMachine) OnExpectationFailed() {
	if m.state == StateExpectSent {
		m.state = StateExpectationFailed
	}
}

// MarkBodySent records that the body has been written, for callers that
// want an explicit terminal marker rather than re-deriving it from
// MayWriteBody.
func (m *ContinueMachine) MarkBodySent() {
	m.state = StateBodySent
}

// Failed reports whether the exchange must be aborted rather than
// proceed to a normal body write.
func (m *ContinueMachine) Failed() bool {
	return m.state == StateExpectationFailed
}
