package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_ErrorFormatting(t *testing.T) {
	withEndpoint := NewPipelineError(KindTimeout, "exchange", "10.0.0.1:80", time.Second, errors.New("dial timeout"))
	assert.Contains(t, withEndpoint.Error(), "10.0.0.1:80")
	assert.Contains(t, withEndpoint.Error(), "timeout")

	withoutEndpoint := NewPipelineError(KindRejected, "selection", "", 0, errors.New("no endpoint"))
	assert.NotContains(t, withoutEndpoint.Error(), "failed for")
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	pe := NewPipelineError(KindPeerError, "op", "", 0, cause)
	assert.ErrorIs(t, pe, cause)
	assert.Same(t, cause, errors.Unwrap(pe))
}

func TestKindOf_UnwrapsWrappedPipelineError(t *testing.T) {
	pe := NewPipelineError(KindUnprocessed, "op", "", 0, errors.New("x"))
	wrapped := fmt.Errorf("decorator: %w", pe)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindUnprocessed, kind)

	_, ok = KindOf(errors.New("plain error"))
	assert.False(t, ok)
}

func TestUnprocessed(t *testing.T) {
	assert.True(t, Unprocessed(NewPipelineError(KindUnprocessed, "op", "", 0, nil)))
	assert.False(t, Unprocessed(NewPipelineError(KindTimeout, "op", "", 0, nil)))
	assert.False(t, Unprocessed(errors.New("not a pipeline error")))
}

func TestConfigValidationError(t *testing.T) {
	err := NewConfigValidationError("retry.max_attempts", -1, "must be positive")
	assert.Contains(t, err.Error(), "retry.max_attempts")
	assert.Contains(t, err.Error(), "must be positive")
}
