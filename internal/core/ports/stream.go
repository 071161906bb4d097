package ports

import "github.com/thushan/olla/internal/core/domain"

// Subscriber receives items pulled from a Stream by demand. OnNext
// delivers one HttpObject; OnComplete/OnError are terminal and mutually
// exclusive with each other and with further OnNext calls.
type Subscriber interface {
	OnSubscribe(sub Subscription)
	OnNext(o domain.HttpObject)
	OnComplete()
	OnError(err error)
}

// Subscription is the demand-control handle a Subscriber uses to pull
// from its Stream and to cancel early.
type Subscription interface {
	// Request signals willingness to accept up to n more items. A
	// producer must never emit more than the cumulative demand granted.
	Request(n int64)

	// Cancel stops delivery; in-flight items already handed to OnNext are
	// the subscriber's to release. Idempotent.
	Cancel()
}

// Stream is a producer of zero or more HttpObjects plus a terminal
// signal, with exactly one Subscriber permitted. A second Subscribe
// call fails with domain.ErrAlreadySubscribed.
type Stream interface {
	// Subscribe attaches sub as the stream's single subscriber. AcceptsPooled
	// tells the producer whether sub can handle pooled HttpData buffers;
	// when false, every Data object handed to OnNext must be unpooled.
	Subscribe(sub Subscriber, acceptsPooled bool)

	// Abort is cancel-and-fail: equivalent to Subscription.Cancel plus
	// failing the terminal signal with cause. Idempotent.
	Abort(cause error)
}
