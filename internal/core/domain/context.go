package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AttrKey is a typed attribute key for RequestContext.Attr/SetAttr. Using a
// distinct type (rather than bare strings) keeps the attribute map from
// colliding with context.Context's own key space when a RequestContext is
// threaded through stdlib APIs that take a context.Context.
type AttrKey string

// EventLoop is the cooperative, single-goroutine scheduler a RequestContext
// is pinned to. Decorators and codec stages
// run by calling Post; Post guarantees program-order execution for tasks
// submitted from the loop's own goroutine, and safely hands off tasks
// submitted from elsewhere (e.g. a worker-pool completion callback) via a
// buffered channel drained by a single dispatcher goroutine - the same
// single-owner-dispatch discipline as pkg/eventbus's subscriber channels.
type EventLoop struct {
	tasks chan func()
	done  chan struct{}
	id    int64
	once  sync.Once
}

func NewEventLoop(id int64) *EventLoop {
	loop := &EventLoop{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
		id:    id,
	}
	go loop.run()
	return loop
}

func (l *EventLoop) run() {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			return
		}
	}
}

// Post schedules fn to run on the loop. It never blocks the caller beyond
// the channel send; if the loop has been shut down, fn is dropped.
func (l *EventLoop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Close stops the loop's dispatcher goroutine. Idempotent.
func (l *EventLoop) Close() {
	l.once.Do(func() { close(l.done) })
}

// ID identifies the loop for logging/diagnostics.
func (l *EventLoop) ID() int64 {
	return l.id
}

// RequestContext is the per-exchange state: request-id, deadline,
// event-loop binding, typed attributes, a LogBuilder, a cancellation
// handle, and an Endpoint once selected.
//
// Mutation of attrs/log is restricted to the owning EventLoop or a
// documented single-writer discipline; RequestContext itself does not
// enforce this (enforcing it would mean tracking goroutine identity,
// which Go makes awkward) - callers honour it the same way a worker pool
// posts results back rather than mutating shared state from worker
// goroutines directly.
type RequestContext struct {
	ctx        context.Context
	cancel     context.CancelCauseFunc
	id         string
	loop       *EventLoop
	log        *RequestLog
	parent     *RequestContext
	endpoint   *Endpoint
	mu         sync.RWMutex
	attrs      map[AttrKey]any
	deadline   time.Time
	finalized  bool
}

// NewRequestContext creates a root context for a freshly issued or
// accepted exchange, bound to loop, with the given absolute deadline.
func NewRequestContext(parent context.Context, loop *EventLoop, deadline time.Time) *RequestContext {
	cctx, cancel := context.WithCancelCause(parent)
	rc := &RequestContext{
		ctx:      cctx,
		cancel:   cancel,
		id:       uuid.NewString(),
		loop:     loop,
		log:      NewRequestLog(nil),
		attrs:    make(map[AttrKey]any),
		deadline: deadline,
	}
	go func() {
		<-rc.log.WhenComplete()
		rc.finalize()
	}()
	return rc
}

// Child creates a per-attempt sub-context for endpoint, used by the retry
// decorator: a fresh deadline that is bounded above by the parent's
// remaining deadline (a decorator may only loosen a deadline for a newly
// created child, never tighten-then-loosen the same attempt).
func (r *RequestContext) Child(endpoint *Endpoint, attemptDeadline time.Time) *RequestContext {
	r.mu.RLock()
	parentDeadline := r.deadline
	r.mu.RUnlock()

	if !parentDeadline.IsZero() && attemptDeadline.After(parentDeadline) {
		attemptDeadline = parentDeadline
	}

	child := NewRequestContext(r.ctx, r.loop, attemptDeadline)
	child.parent = r
	child.endpoint = endpoint
	child.log = r.log.NewChild()
	return child
}

// ID returns the request's UUID, generated once at issuance/acceptance.
func (r *RequestContext) ID() string {
	return r.id
}

// Context returns the underlying context.Context for passing to stdlib
// and third-party APIs that expect one (net/http, golang.org/x/net/http2).
func (r *RequestContext) Context() context.Context {
	return r.ctx
}

// EventLoop returns the bound event loop.
func (r *RequestContext) EventLoop() *EventLoop {
	return r.loop
}

// LogBuilder returns the per-exchange RequestLog.
func (r *RequestContext) LogBuilder() *RequestLog {
	return r.log
}

// Endpoint returns the selected Endpoint, or nil if selection hasn't
// happened (or this is a parent context that never attempts directly).
func (r *RequestContext) Endpoint() *Endpoint {
	return r.endpoint
}

// SetEndpoint records the Endpoint chosen for this attempt. Called once by
// the endpoint-group decorator after a successful select().
func (r *RequestContext) SetEndpoint(e *Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoint = e
}

// DeadlineIn sets the deadline to now+d. Deadline changes must be
// monotonically tightening within a single attempt.
func (r *RequestContext) DeadlineIn(d time.Duration) {
	r.SetDeadline(time.Now().Add(d))
}

// SetDeadline tightens the deadline; a request to loosen it (newDeadline
// after the current one) is silently ignored, since only a child context
// created via Child is allowed to have a later deadline than its parent.
func (r *RequestContext) SetDeadline(newDeadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	if r.deadline.IsZero() || newDeadline.Before(r.deadline) {
		r.deadline = newDeadline
	}
}

// Deadline returns the current absolute deadline. A zero Time means no
// deadline has been set.
func (r *RequestContext) Deadline() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deadline
}

// Remaining returns the time left until Deadline, or the largest
// representable duration if no deadline is set.
func (r *RequestContext) Remaining() time.Duration {
	d := r.Deadline()
	if d.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Until(d)
}

// Cancel propagates cause to the bound context.Context, to any subscribed
// stream observing it, and to any pending endpoint selection; it is
// recorded on the log with cause.
func (r *RequestContext) Cancel(cause error) {
	r.log.recordCancel(cause)
	r.cancel(cause)
}

// IsCancelled reports whether Cancel has been called (or the parent
// context was cancelled externally).
func (r *RequestContext) IsCancelled() bool {
	return r.ctx.Err() != nil
}

// CancelCause returns the error passed to Cancel, or context.Cause's
// value for externally-cancelled parents.
func (r *RequestContext) CancelCause() error {
	return context.Cause(r.ctx)
}

// Attr reads a typed attribute.
func (r *RequestContext) Attr(key AttrKey) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.attrs[key]
	return v, ok
}

// SetAttr writes a typed attribute. Once when_complete resolves on the
// log, attributes become immutable and further writes are silently
// dropped.
func (r *RequestContext) SetAttr(key AttrKey, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.attrs[key] = value
}

// finalize freezes attribute mutation. Invoked once the log's terminal
// future resolves.
func (r *RequestContext) finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true
}
