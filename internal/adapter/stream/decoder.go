package stream

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"sync"

	"github.com/andybalholm/brotli"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// Encoding names the content-encodings the decoding decorator
// recognises.
type Encoding string

const (
	EncodingGzip    Encoding = "gzip"
	EncodingDeflate Encoding = "deflate"
	EncodingBrotli  Encoding = "br"
)

// NewDecoderReader returns an io.Reader that decodes enc, using the
// standard library's compress/gzip and compress/flate for the two
// IANA-registered encodings with stdlib support, and
// github.com/andybalholm/brotli, the standard maintained pure-Go brotli
// decoder, for br.
func NewDecoderReader(enc Encoding, r io.Reader) (io.ReadCloser, error) {
	switch enc {
	case EncodingGzip:
		return gzip.NewReader(r)
	case EncodingDeflate:
		return io.NopCloser(flate.NewReader(r)), nil
	case EncodingBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	default:
		return nil, domain.ErrUnsupportedEncoding
	}
}

// DecodingStream wraps an upstream Stream, decoding each Data chunk's
// content-encoding before re-emitting it downstream. It releases each
// input buffer immediately after feeding it to the decoder, and decoded
// bytes are emitted as soon as produced rather than batched. The
// decoder does not wait for downstream demand: it requests everything
// from upstream, and decoded output the consumer has not yet requested
// queues in Out() without a bound.
type DecodingStream struct {
	upstream *ObjectStream
	out      *ObjectStream
	enc      Encoding

	mu      sync.Mutex
	pr      *io.PipeReader
	pw      *io.PipeWriter
	decoder io.ReadCloser
	started bool
}

// NewDecodingStream builds a decoder tap between upstream and a new
// output ObjectStream the caller subscribes to instead of upstream
// directly.
func NewDecodingStream(upstream *ObjectStream, enc Encoding) *DecodingStream {
	d := &DecodingStream{
		upstream: upstream,
		out:      NewObjectStream(),
		enc:      enc,
	}
	return d
}

// Out returns the decoded stream a consumer should Subscribe to.
func (d *DecodingStream) Out() *ObjectStream {
	return d.out
}

// upstreamSubscriber adapts DecodingStream to ports.Subscriber so it can
// attach to the upstream ObjectStream.
type upstreamSubscriber struct {
	d *DecodingStream
}

// Start attaches the decoder as upstream's subscriber and begins
// pumping decoded output into Out(). Call once before any consumer
// subscribes to Out().
func (d *DecodingStream) Start() {
	d.upstream.Subscribe(&upstreamSubscriber{d: d}, true)
}

func (d *DecodingStream) startLocked() error {
	if d.started {
		return nil
	}
	d.pr, d.pw = io.Pipe()
	dec, err := NewDecoderReader(d.enc, d.pr)
	if err != nil {
		return err
	}
	d.decoder = dec
	d.started = true

	go d.pump()
	return nil
}

func (s *upstreamSubscriber) OnSubscribe(sub ports.Subscription) {
	sub.Request(1 << 30)
}

func (s *upstreamSubscriber) OnNext(o domain.HttpObject) {
	d := s.d
	switch o.Kind {
	case domain.ObjectData:
		d.mu.Lock()
		if err := d.startLocked(); err != nil {
			d.mu.Unlock()
			o.Release()
			d.out.Fail(err)
			return
		}
		pw := d.pw
		d.mu.Unlock()

		if o.Data != nil {
			_, werr := pw.Write(o.Data.Bytes())
			eos := o.Data.EndOfStream()
			o.Data.Release()
			if werr != nil {
				d.out.Fail(werr)
				return
			}
			if eos {
				_ = pw.Close()
			}
		}
	default:
		// Headers and Trailers pass through untouched - only the body is
		// content-encoded.
		d.out.Emit(o)
	}
}

func (s *upstreamSubscriber) OnComplete() {
	d := s.d
	d.mu.Lock()
	pw := d.pw
	started := d.started
	d.mu.Unlock()
	if started && pw != nil {
		_ = pw.Close()
	} else {
		d.out.Complete()
	}
}

func (s *upstreamSubscriber) OnError(err error) {
	s.d.out.Fail(err)
}

// pump reads decoded bytes and emits them downstream as they become
// available, always as unpooled buffers - a decoder output buffer was
// never checked out of the shared pool, so there is nothing to release
// back into it.
func (d *DecodingStream) pump() {
	buf := make([]byte, 32*1024)
	for {
		n, err := d.decoder.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			d.out.Emit(domain.NewDataObject(domain.NewUnpooledData(chunk, false)))
		}
		if err != nil {
			if err == io.EOF {
				d.out.Emit(domain.NewDataObject(domain.NewUnpooledData(nil, true)))
				d.out.Complete()
			} else {
				d.out.Fail(err)
			}
			_ = d.decoder.Close()
			return
		}
	}
}
