package domain

import (
	"fmt"
	"time"
)

// Kind is the closed error taxonomy every error raised by the pipeline
// carries exactly one of, so that decorators (retry, circuit breaker,
// server status mapping) can dispatch on it without inspecting error
// strings.
type Kind string

const (
	KindProtocol       Kind = "protocol"
	KindTimeout        Kind = "timeout"
	KindCancelled      Kind = "cancelled"
	KindUnauthorized   Kind = "unauthorized"
	KindRejected       Kind = "rejected"
	KindUnprocessed    Kind = "unprocessed"
	KindPeerError      Kind = "peer_error"
	KindInvalidArgument Kind = "invalid_argument"
)

// PipelineError is the error type carried on a RequestLog's terminal
// future and on a response stream's error signal.
//
// Retry rules (Unprocessed, KindOf) find the PipelineError anywhere in a
// wrapped chain and dispatch on its Kind; the PipelineError itself -
// Kind, Operation, Endpoint - is preserved in full in the log.
type PipelineError struct {
	Cause     error
	Kind      Kind
	Operation string
	Endpoint  string
	Latency   time.Duration
}

func (e *PipelineError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("%s: %s failed for %s after %v: %v", e.Kind, e.Operation, e.Endpoint, e.Latency, e.Cause)
	}
	return fmt.Sprintf("%s: %s failed after %v: %v", e.Kind, e.Operation, e.Latency, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError constructs a PipelineError. Operation names the
// decorator or codec stage that observed the failure (e.g. "retry",
// "100-continue", "endpoint-selection").
func NewPipelineError(kind Kind, operation, endpoint string, latency time.Duration, cause error) *PipelineError {
	return &PipelineError{
		Kind:      kind,
		Operation: operation,
		Endpoint:  endpoint,
		Latency:   latency,
		Cause:     cause,
	}
}

// Unprocessed reports whether err is (or wraps) a PipelineError of
// KindUnprocessed - the default-retryable class.
func Unprocessed(err error) bool {
	var pe *PipelineError
	return asPipelineError(err, &pe) && pe.Kind == KindUnprocessed
}

// KindOf extracts the Kind of err if it is (or wraps) a PipelineError,
// returning ok=false for plain errors that never touched the pipeline.
func KindOf(err error) (Kind, bool) {
	var pe *PipelineError
	if !asPipelineError(err, &pe) {
		return "", false
	}
	return pe.Kind, true
}

func asPipelineError(err error, target **PipelineError) bool {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ConfigValidationError reports a misconfigured field. It is not a
// PipelineError and carries no Kind, so the server's error-to-status
// translation (which goes through KindOf) answers it with a 500.
type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s=%v: %s", e.Field, e.Value, e.Reason)
}

func NewConfigValidationError(field string, value interface{}, reason string) *ConfigValidationError {
	return &ConfigValidationError{Field: field, Value: value, Reason: reason}
}
