package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLog_SetAndGet(t *testing.T) {
	l := NewRequestLog(nil)
	_, ok := l.Get(LogRequestHeaders)
	assert.False(t, ok)

	l.Set(LogRequestHeaders, "GET /")
	v, ok := l.Get(LogRequestHeaders)
	require.True(t, ok)
	assert.Equal(t, "GET /", v)
}

func TestRequestLog_WhenAvailable(t *testing.T) {
	l := NewRequestLog(nil)
	ch := l.WhenAvailable(LogResponseHeaders)

	select {
	case <-ch:
		t.Fatal("should not be available yet")
	default:
	}

	l.Set(LogResponseHeaders, "200")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for property")
	}
}

func TestRequestLog_CompleteResolvesDeferredProperties(t *testing.T) {
	l := NewRequestLog(nil)
	l.Complete(nil)

	v, ok := l.Get(LogRequestContentPreview)
	require.True(t, ok)
	assert.Equal(t, ContentUnavailable, v)

	v, ok = l.Get(LogResponseContentPreview)
	require.True(t, ok)
	assert.Equal(t, ContentUnavailable, v)

	select {
	case <-l.WhenComplete():
	default:
		t.Fatal("WhenComplete should be closed")
	}
}

func TestRequestLog_CompleteIsIdempotent(t *testing.T) {
	l := NewRequestLog(nil)
	cause := errors.New("boom")
	l.Complete(cause)
	l.Complete(errors.New("second call ignored"))
	assert.True(t, l.IsComplete())
	assert.ErrorIs(t, l.Cause(), cause)
}

func TestRequestLog_ChildFoldsCauseIntoParent(t *testing.T) {
	parent := NewRequestLog(nil)
	child := parent.NewChild()

	cause := errors.New("attempt failed")
	child.Complete(cause)

	assert.ErrorIs(t, parent.Cause(), cause)
	require.Len(t, parent.Children(), 1)
	assert.Same(t, child, parent.Children()[0])
}

func TestRequestLog_RecordCancelBeforeComplete(t *testing.T) {
	l := NewRequestLog(nil)
	cause := errors.New("cancelled")
	l.recordCancel(cause)
	assert.ErrorIs(t, l.Cause(), cause)
	assert.False(t, l.IsComplete())
}
