package http1

import (
	"io"

	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// pipeSubscriber adapts a *stream.ObjectStream to an io.Reader, the same
// subscribe-then-pump shape as the h2 codec's bridge and
// stream.DecodingStream's upstreamSubscriber.
type pipeSubscriber struct {
	pw *io.PipeWriter
}

func newObjectStreamReader(s *stream.ObjectStream) io.Reader {
	pr, pw := io.Pipe()
	s.Subscribe(&pipeSubscriber{pw: pw}, true)
	return pr
}

func (p *pipeSubscriber) OnSubscribe(sub ports.Subscription) { sub.Request(1 << 30) }

func (p *pipeSubscriber) OnNext(o domain.HttpObject) {
	if o.Kind != domain.ObjectData || o.Data == nil {
		return
	}
	_, err := p.pw.Write(o.Data.Bytes())
	eos := o.Data.EndOfStream()
	o.Data.Release()
	if err != nil {
		return
	}
	if eos {
		_ = p.pw.Close()
	}
}

func (p *pipeSubscriber) OnComplete() { _ = p.pw.Close() }
func (p *pipeSubscriber) OnError(err error) { _ = p.pw.CloseWithError(err) }

// readerToObjectStream pumps an io.ReadCloser (the response body read
// off the wire) into a fresh *stream.ObjectStream, mirroring the h2
// codec's readerToObjectStream and stream.DecodingStream.pump.
func readerToObjectStream(body io.ReadCloser) *stream.ObjectStream {
	out := stream.NewObjectStream()
	go func() {
		defer body.Close()
		buf := make([]byte, 32*1024)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				out.Emit(domain.NewDataObject(domain.NewUnpooledData(chunk, false)))
			}
			if err != nil {
				if err == io.EOF {
					out.Emit(domain.NewDataObject(domain.NewUnpooledData(nil, true)))
					out.Complete()
				} else {
					out.Fail(err)
				}
				return
			}
		}
	}()
	return out
}
