package app

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/config"
	"github.com/thushan/olla/internal/core/constants"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
	"github.com/thushan/olla/internal/logger"
)

// newHTTPServer builds the inbound listener: an h2c.NewHandler wrapper
// so a single listener serves both HTTP/1.1 and prior-knowledge h2c
// HTTP/2, in front of a handler that bridges net/http's request/response
// shape to the decorator chain's domain.HttpObject/ports.Service contract.
func newHTTPServer(addr string, cfg *config.Config, svc ports.Service, log *logger.StyledLogger) *http.Server {
	handler := &bridgeHandler{svc: svc, cfg: cfg, log: log}
	h2s := &http2.Server{}

	return &http.Server{
		Addr:         addr,
		Handler:      h2c.NewHandler(handler, h2s),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// bridgeHandler adapts net/http's ResponseWriter/Request contract to one
// Service.Serve call per request, the inbound counterpart of the
// outbound http1/h2 codec bridges: request headers and body become a
// domain.HttpObject plus a RequestBodyAttrKey stream, and the returned
// Headers object plus any ResponseBodyAttrKey stream are written back.
type bridgeHandler struct {
	svc ports.Service
	cfg *config.Config
	log *logger.StyledLogger
}

var loopCounter atomic.Int64

func (h *bridgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	loop := domain.NewEventLoop(loopCounter.Add(1))
	defer loop.Close()

	deadline := time.Now().Add(h.cfg.RequestOptions.ResponseTimeout())
	rc := domain.NewRequestContext(r.Context(), loop, deadline)
	rc.SetAttr(constants.ContextRequestIdKey, rc.ID())
	rc.SetAttr(constants.ContextRequestTimeKey, time.Now())
	w.Header().Set("X-Request-Id", rc.ID())

	headers := domain.NewHttpHeaders()
	headers.Set(":method", r.Method)
	headers.Set(":path", r.URL.RequestURI())
	headers.Set(":authority", r.Host)
	for name, values := range r.Header {
		for _, v := range values {
			headers.Add(name, v)
		}
	}
	req := domain.NewHeadersObject(headers)

	if r.Body != nil && r.Body != http.NoBody {
		rc.SetAttr(ports.RequestBodyAttrKey, inboundBodyStream(r.Body))
	}

	resp, err := h.svc.Serve(rc, req)
	if err != nil {
		writeError(w, rc, err)
		return
	}

	status := 200
	if resp.Kind == domain.ObjectHeaders && resp.Headers != nil {
		if s := resp.Headers.Status(); s > 0 {
			status = s
		}
		resp.Headers.Range(func(name, value string) {
			if name == "" || name[0] == ':' {
				return
			}
			w.Header().Add(name, value)
		})
	}
	w.WriteHeader(status)

	if v, ok := rc.Attr(ports.ResponseBodyAttrKey); ok {
		if body, ok := v.(*stream.ObjectStream); ok {
			rc.SetAttr(constants.ContextKeyStream, true)
			drainToWriter(body, w)
			return
		}
	}
	rc.SetAttr(constants.ContextKeyStream, false)
}

// errorBody is the JSON shape written for a failed exchange; request_id
// lets a caller correlate it back to the X-Request-Id response header.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, rc *domain.RequestContext, err error) {
	status := http.StatusInternalServerError
	if kind, ok := domain.KindOf(err); ok {
		switch kind {
		case domain.KindUnauthorized:
			status = http.StatusUnauthorized
		case domain.KindRejected:
			status = http.StatusServiceUnavailable
		case domain.KindTimeout:
			status = http.StatusGatewayTimeout
		case domain.KindInvalidArgument:
			status = http.StatusBadRequest
		case domain.KindCancelled:
			status = 499
		}
	}
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error(), RequestID: rc.ID()})
}

// inboundBodyStream pumps an inbound request body into a fresh
// *stream.ObjectStream, the same read-loop shape as the http1/h2 codec
// bridges' readerToObjectStream.
func inboundBodyStream(body io.ReadCloser) *stream.ObjectStream {
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

// drainToWriter subscribes to body and writes each Data chunk to w,
// flushing as each chunk arrives so a streaming response is not
// buffered in full before the first byte reaches the client.
func drainToWriter(body *stream.ObjectStream, w http.ResponseWriter) {
	flusher, _ := w.(http.Flusher)
	done := make(chan struct{})
	body.Subscribe(&writerSubscriber{w: w, flusher: flusher, done: done}, true)
	<-done
}

type writerSubscriber struct {
	w       http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
}

func (s *writerSubscriber) OnSubscribe(sub ports.Subscription) { sub.Request(1 << 30) }

func (s *writerSubscriber) OnNext(o domain.HttpObject) {
	if o.Kind != domain.ObjectData || o.Data == nil {
		return
	}
	_, _ = s.w.Write(o.Data.Bytes())
	eos := o.Data.EndOfStream()
	o.Data.Release()
	if s.flusher != nil {
		s.flusher.Flush()
	}
	if eos {
		close(s.done)
	}
}

func (s *writerSubscriber) OnComplete() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *writerSubscriber) OnError(_ error) {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
