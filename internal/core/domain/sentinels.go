package domain

import "errors"

// Named failure conditions referenced by name throughout the pipeline.
// They are plain errors and carry no Kind themselves; where one is
// wrapped as the Cause of a PipelineError (as the decoding decorator does
// with ErrUnsupportedEncoding), errors.Is still finds it through Unwrap,
// without the caller caring which layer raised it.
var (
	ErrAlreadySubscribed        = errors.New("stream: already subscribed")
	ErrUnsupportedEncoding      = errors.New("decoding: unsupported content-encoding")
	ErrIllegalArgument          = errors.New("illegal argument")
	ErrProtocolNegotiation      = errors.New("http: protocol negotiation mismatch")
	ErrEndpointSelectionTimeout = errors.New("endpoint: selection timed out")
	ErrResponseTimeout          = errors.New("response timed out")
	ErrExpectationFailed        = errors.New("http: 100-continue expectation failed")
	ErrNoEndpointAvailable      = errors.New("endpoint: no endpoint available")
)
