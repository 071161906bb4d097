package domain

import (
	"sync"
	"sync/atomic"

	"github.com/thushan/olla/pkg/pool"
)

// bufferPool backs every pooled HttpData allocation, using the generic
// sync.Pool wrapper pkg/pool.Pool[T] retargeted at fixed-capacity byte
// buffers.
var bufferPool = pool.NewLitePool(func() *pooledBuffer {
	return &pooledBuffer{buf: make([]byte, 0, defaultBufferCapacity)}
})

const defaultBufferCapacity = 16 * 1024

type pooledBuffer struct {
	buf []byte
}

func (p *pooledBuffer) Reset() {
	p.buf = p.buf[:0]
}

// HttpData is a reference-counted byte buffer with an EndOfStream flag.
// A pooled buffer must be released exactly once by its final consumer;
// empty buffers are always unpooled (there's nothing to recycle and no
// sense paying the bookkeeping cost).
type HttpData struct {
	owner   *pooledBuffer
	bytes   []byte
	refs    int32
	pooled  bool
	eos     bool
	mu      sync.Mutex
	onFinal func()
}

// NewUnpooledData wraps an existing slice without pool backing. Used by
// producers that can't or don't want to participate in buffer reuse, and
// always used for empty buffers regardless of what the consumer
// requested.
func NewUnpooledData(b []byte, eos bool) *HttpData {
	return &HttpData{bytes: b, refs: 1, pooled: false, eos: eos}
}

// NewPooledData checks a buffer out of bufferPool, copies in, and returns
// an HttpData with refcount 1. Empty input always yields an unpooled
// HttpData.
func NewPooledData(src []byte, eos bool) *HttpData {
	if len(src) == 0 {
		return NewUnpooledData(nil, eos)
	}
	pb := bufferPool.Get()
	pb.buf = append(pb.buf[:0], src...)
	return &HttpData{owner: pb, bytes: pb.buf, refs: 1, pooled: true, eos: eos}
}

// Bytes returns the buffer's current contents. The returned slice is only
// valid until Release drops the refcount to zero.
func (d *HttpData) Bytes() []byte {
	return d.bytes
}

// EndOfStream reports whether this is the terminal data chunk.
func (d *HttpData) EndOfStream() bool {
	return d.eos
}

// Pooled reports whether this buffer came from bufferPool and therefore
// must eventually be released back into it.
func (d *HttpData) Pooled() bool {
	return d.pooled
}

// Retain increments the refcount. Each component that hands the buffer to
// more than one downstream consumer (e.g. a content-preview tap alongside
// the user stream) must Retain once per additional consumer.
func (d *HttpData) Retain() *HttpData {
	atomic.AddInt32(&d.refs, 1)
	return d
}

// Release decrements the refcount; at zero, a pooled buffer is returned to
// bufferPool. Every pooled buffer handed downstream must reach refcount
// zero before the stream's terminal signal delivers - callers must
// Release exactly once per Retain/initial handout.
func (d *HttpData) Release() {
	if atomic.AddInt32(&d.refs, -1) > 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pooled && d.owner != nil {
		bufferPool.Put(d.owner)
		d.owner = nil
		d.bytes = nil
		d.pooled = false
	}
	if d.onFinal != nil {
		d.onFinal()
		d.onFinal = nil
	}
}

// RefCount returns the current reference count, for tests asserting the
// "refcount reaches zero" invariant.
func (d *HttpData) RefCount() int32 {
	return atomic.LoadInt32(&d.refs)
}

// OnRelease installs a callback invoked exactly once, the moment the
// refcount reaches zero. A later call replaces a callback that has not
// fired yet.
func (d *HttpData) OnRelease(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFinal = fn
}
