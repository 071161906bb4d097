// Package stream implements the reactive substrate: a single-producer,
// single-subscriber pull stream of domain.HttpObject with demand-based
// backpressure, over which the codec, decorators and decoders all
// communicate. It generalises a plain io.Writer-sink streaming loop -
// "read from upstream, write to an http.ResponseWriter" - into a
// pull-based object stream decorators can wrap and multiplex.
package stream

import (
	"sync"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// ObjectStream is a ports.Stream producer. A caller builds one, emits
// HttpObjects into it from a producer goroutine via Emit, and calls
// Complete or Fail exactly once to signal the terminal state. A consumer
// attaches via Subscribe and pulls with Subscription.Request.
type ObjectStream struct {
	mu            sync.Mutex
	cond          *sync.Cond
	sub           ports.Subscriber
	subscribed    bool
	acceptsPooled bool
	demand        int64
	pending       []domain.HttpObject
	cancelled     bool
	done          bool
	terminalErr   error
	subscription  *objectSubscription
}

// NewObjectStream returns a ready-to-produce, not-yet-subscribed stream.
func NewObjectStream() *ObjectStream {
	s := &ObjectStream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Subscribe attaches sub as the stream's sole subscriber. A second call
// fails sub immediately with domain.ErrAlreadySubscribed: only one
// subscriber per stream is ever permitted.
func (s *ObjectStream) Subscribe(sub ports.Subscriber, acceptsPooled bool) {
	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		sub.OnError(domain.ErrAlreadySubscribed)
		return
	}
	s.subscribed = true
	s.sub = sub
	s.acceptsPooled = acceptsPooled
	s.subscription = &objectSubscription{stream: s}
	s.mu.Unlock()

	// Called without s.mu held: a subscriber may call Request from
	// OnSubscribe, and Request takes s.mu.
	sub.OnSubscribe(s.subscription)
	go s.drain()
}

// drain delivers buffered/incoming items to the subscriber as demand
// allows, running on its own goroutine so Emit's producer is never
// blocked on the subscriber's OnNext handler directly.
func (s *ObjectStream) drain() {
	for {
		s.mu.Lock()
		for len(s.pending) == 0 || s.demand == 0 {
			if s.cancelled {
				s.mu.Unlock()
				return
			}
			if s.done && len(s.pending) == 0 {
				err := s.terminalErr
				sub := s.sub
				s.mu.Unlock()
				if err != nil {
					sub.OnError(err)
				} else {
					sub.OnComplete()
				}
				return
			}
			s.cond.Wait()
		}
		item := s.pending[0]
		s.pending = s.pending[1:]
		s.demand--
		sub := s.sub
		s.mu.Unlock()
		sub.OnNext(item)
	}
}

// Emit hands one object to the stream for eventual delivery. It never
// blocks the producer and never drops an item: items queue until the
// subscriber's demand catches up, and the rule that a producer emits at
// most the demanded count between request calls is honoured by drain,
// not by refusing Emit - a producer that emits faster than demand simply
// grows a backlog rather than violating the contract.
//
// If the attached subscriber declared it cannot accept pooled buffers, a
// pooled Data object is copied into an unpooled one here and the
// original is released immediately, so the pooled-buffer opt-out is
// enforced centrally rather than by every producer.
func (s *ObjectStream) Emit(o domain.HttpObject) {
	s.mu.Lock()
	if s.cancelled || s.done {
		s.mu.Unlock()
		o.Release()
		return
	}
	if !s.acceptsPooled && o.Kind == domain.ObjectData && o.Data != nil && o.Data.Pooled() {
		copied := domain.NewUnpooledData(append([]byte(nil), o.Data.Bytes()...), o.Data.EndOfStream())
		o.Data.Release()
		o = domain.NewDataObject(copied)
	}
	s.pending = append(s.pending, o)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Complete signals normal, error-free termination. Idempotent with Fail
// and Abort - only the first terminal call takes effect.
func (s *ObjectStream) Complete() {
	s.finish(nil)
}

// Fail signals termination with cause.
func (s *ObjectStream) Fail(cause error) {
	s.finish(cause)
}

func (s *ObjectStream) finish(cause error) {
	s.mu.Lock()
	if s.done || s.cancelled {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.terminalErr = cause
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Abort is cancel-and-fail: it stops delivery and fails the terminal
// signal with cause. Idempotent.
func (s *ObjectStream) Abort(cause error) {
	s.mu.Lock()
	if s.cancelled || s.done {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.terminalErr = cause
	pending := s.pending
	s.pending = nil
	sub := s.sub
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, o := range pending {
		o.Release()
	}
	if cause != nil && sub != nil {
		sub.OnError(cause)
	}
}

// objectSubscription is the Subscription handle returned to subscribers.
type objectSubscription struct {
	stream *ObjectStream
}

func (sub *objectSubscription) Request(n int64) {
	if n <= 0 {
		return
	}
	s := sub.stream
	s.mu.Lock()
	s.demand += n
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (sub *objectSubscription) Cancel() {
	sub.stream.Abort(nil)
}
