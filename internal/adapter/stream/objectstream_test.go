package stream

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

type recordingSubscriber struct {
	mu        sync.Mutex
	sub       ports.Subscription
	received  []domain.HttpObject
	completed bool
	err       error
	notify    chan struct{}
}

func newRecordingSubscriber() *recordingSubscriber {
	return &recordingSubscriber{notify: make(chan struct{}, 64)}
}

func (r *recordingSubscriber) OnSubscribe(sub ports.Subscription) {
	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()
}

func (r *recordingSubscriber) OnNext(o domain.HttpObject) {
	r.mu.Lock()
	r.received = append(r.received, o)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recordingSubscriber) OnComplete() {
	r.mu.Lock()
	r.completed = true
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recordingSubscriber) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recordingSubscriber) waitForEvent(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber event")
	}
}

func TestObjectStream_SecondSubscribeFails(t *testing.T) {
	s := NewObjectStream()
	first := newRecordingSubscriber()
	s.Subscribe(first, true)

	second := newRecordingSubscriber()
	s.Subscribe(second, true)

	require.Eventually(t, func() bool {
		second.mu.Lock()
		defer second.mu.Unlock()
		return second.err != nil
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, second.err, domain.ErrAlreadySubscribed)
}

func TestObjectStream_EmitDeliveredOnDemand(t *testing.T) {
	s := NewObjectStream()
	sub := newRecordingSubscriber()
	s.Subscribe(sub, true)

	s.Emit(domain.NewDataObject(domain.NewUnpooledData([]byte("a"), false)))
	// no demand requested yet; should not deliver
	select {
	case <-sub.notify:
		t.Fatal("delivered without demand")
	case <-time.After(50 * time.Millisecond):
	}

	sub.mu.Lock()
	requester := sub.sub
	sub.mu.Unlock()
	requester.Request(1)
	sub.waitForEvent(t)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.received, 1)
	assert.Equal(t, "a", string(sub.received[0].Data.Bytes()))
}

func TestObjectStream_CompleteAfterDrain(t *testing.T) {
	s := NewObjectStream()
	sub := newRecordingSubscriber()
	s.Subscribe(sub, true)

	sub.mu.Lock()
	requester := sub.sub
	sub.mu.Unlock()
	requester.Request(10)

	s.Emit(domain.NewDataObject(domain.NewUnpooledData([]byte("x"), true)))
	sub.waitForEvent(t)
	s.Complete()
	sub.waitForEvent(t)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.True(t, sub.completed)
}

func TestObjectStream_FailDeliversError(t *testing.T) {
	s := NewObjectStream()
	sub := newRecordingSubscriber()
	s.Subscribe(sub, true)

	sub.mu.Lock()
	requester := sub.sub
	sub.mu.Unlock()
	requester.Request(1)

	cause := errors.New("upstream broke")
	s.Fail(cause)
	sub.waitForEvent(t)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.ErrorIs(t, sub.err, cause)
}

func TestObjectStream_AbortReleasesPendingAndNotifiesError(t *testing.T) {
	s := NewObjectStream()
	sub := newRecordingSubscriber()
	s.Subscribe(sub, true)

	d := domain.NewPooledData([]byte("queued"), false)
	s.Emit(domain.NewDataObject(d))

	cause := errors.New("cancelled")
	s.Abort(cause)

	require.Eventually(t, func() bool {
		return d.RefCount() == 0
	}, time.Second, time.Millisecond, "pending buffer must be released on abort")

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.ErrorIs(t, sub.err, cause)
}

func TestObjectStream_EmitConvertsPooledWhenSubscriberDeclinesPooled(t *testing.T) {
	s := NewObjectStream()
	sub := newRecordingSubscriber()
	s.Subscribe(sub, false)

	d := domain.NewPooledData([]byte("payload"), true)
	s.Emit(domain.NewDataObject(d))
	assert.Equal(t, int32(0), d.RefCount(), "original pooled buffer released immediately")

	sub.mu.Lock()
	requester := sub.sub
	sub.mu.Unlock()
	requester.Request(1)
	sub.waitForEvent(t)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.received, 1)
	assert.False(t, sub.received[0].Data.Pooled())
	assert.Equal(t, "payload", string(sub.received[0].Data.Bytes()))
}

func TestObjectStream_EmitAfterDoneReleasesImmediately(t *testing.T) {
	s := NewObjectStream()
	sub := newRecordingSubscriber()
	s.Subscribe(sub, true)
	s.Complete()

	d := domain.NewPooledData([]byte("late"), false)
	s.Emit(domain.NewDataObject(d))
	assert.Equal(t, int32(0), d.RefCount())
}

func TestObjectSubscription_CancelAbortsStream(t *testing.T) {
	s := NewObjectStream()
	sub := newRecordingSubscriber()
	s.Subscribe(sub, true)

	sub.mu.Lock()
	requester := sub.sub
	sub.mu.Unlock()
	requester.Cancel()

	s.mu.Lock()
	cancelled := s.cancelled
	s.mu.Unlock()
	assert.True(t, cancelled)
}
