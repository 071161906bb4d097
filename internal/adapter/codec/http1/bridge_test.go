package http1

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

type capturingSubscriber struct {
	mu        sync.Mutex
	received  []domain.HttpObject
	completed bool
	err       error
	notify    chan struct{}
}

func newCapturingSubscriber() *capturingSubscriber {
	return &capturingSubscriber{notify: make(chan struct{}, 64)}
}

func (c *capturingSubscriber) OnSubscribe(sub ports.Subscription) { sub.Request(1 << 30) }

func (c *capturingSubscriber) OnNext(o domain.HttpObject) {
	c.mu.Lock()
	c.received = append(c.received, o)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *capturingSubscriber) OnComplete() {
	c.mu.Lock()
	c.completed = true
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *capturingSubscriber) OnError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *capturingSubscriber) isDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed || c.err != nil
}

func (c *capturingSubscriber) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []byte
	for _, o := range c.received {
		if o.Kind == domain.ObjectData && o.Data != nil {
			out = append(out, o.Data.Bytes()...)
		}
	}
	return out
}

func TestNewObjectStreamReader_DeliversEmittedDataAsBytes(t *testing.T) {
	s := stream.NewObjectStream()
	r := newObjectStreamReader(s)

	go func() {
		s.Emit(domain.NewDataObject(domain.NewUnpooledData([]byte("hello "), false)))
		s.Emit(domain.NewDataObject(domain.NewUnpooledData([]byte("world"), true)))
		s.Complete()
	}()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestNewObjectStreamReader_FailPropagatesAsReadError(t *testing.T) {
	s := stream.NewObjectStream()
	r := newObjectStreamReader(s)

	go s.Fail(assert.AnError)

	_, err := io.ReadAll(r)
	require.Error(t, err)
}

func TestReaderToObjectStream_PumpsBodyThenCompletes(t *testing.T) {
	body := io.NopCloser(strings.NewReader("chunked body"))
	out := readerToObjectStream(body)

	sub := newCapturingSubscriber()
	out.Subscribe(sub, false)

	deadline := time.After(2 * time.Second)
	for !sub.isDone() {
		select {
		case <-sub.notify:
		case <-deadline:
			t.Fatal("timed out waiting for stream completion")
		}
	}
	assert.Equal(t, "chunked body", string(sub.bytes()))
}
