package h2

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

type collectingSubscriber struct {
	buf  []byte
	done chan struct{}
}

func (c *collectingSubscriber) OnSubscribe(sub ports.Subscription) { sub.Request(1 << 30) }

func (c *collectingSubscriber) OnNext(o domain.HttpObject) {
	if o.Kind != domain.ObjectData || o.Data == nil {
		return
	}
	c.buf = append(c.buf, o.Data.Bytes()...)
	eos := o.Data.EndOfStream()
	o.Data.Release()
	if eos {
		close(c.done)
	}
}

func (c *collectingSubscriber) OnComplete() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *collectingSubscriber) OnError(_ error) {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func collectBody(t *testing.T, s *stream.ObjectStream) string {
	t.Helper()
	sub := &collectingSubscriber{done: make(chan struct{})}
	s.Subscribe(sub, true)
	<-sub.done
	return string(sub.buf)
}

// newH2CListener spins up a plaintext h2c server on an ephemeral port,
// mirroring internal/app/server.go's own h2c.NewHandler wiring.
func newH2CListener(t *testing.T, handler http.HandlerFunc) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h2s := &http2.Server{}
	srv := &http.Server{Handler: h2c.NewHandler(handler, h2s)}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return ln
}

func TestCodec_Exchange_SimpleGET(t *testing.T) {
	ln := newH2CListener(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-reply", "ok")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello h2"))
	})

	raw, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)

	transport := &http2.Transport{AllowHTTP: true}
	key := ports.ConnectionKey{Protocol: "h2c", Authority: ln.Addr().String()}
	conn, err := NewConn(key, raw, transport)
	require.NoError(t, err)
	defer conn.Close()

	codec := NewCodec(30 * time.Second)

	h := domain.NewHttpHeaders()
	h.Set(":method", "GET")
	h.Set(":path", "/")
	h.Set(":authority", ln.Addr().String())
	h.Set(":scheme", "http")

	loop := domain.NewEventLoop(1)
	defer loop.Close()
	rc := domain.NewRequestContext(context.Background(), loop, time.Now().Add(5*time.Second))

	resp, err := codec.Exchange(rc, conn, domain.NewHeadersObject(h))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Headers.Status())
	assert.Equal(t, "ok", resp.Headers.Get("x-reply"))

	v, ok := rc.Attr(ports.ResponseBodyAttrKey)
	require.True(t, ok)
	body, ok := v.(*stream.ObjectStream)
	require.True(t, ok)
	assert.Equal(t, "hello h2", collectBody(t, body))
}

func TestCodec_Exchange_WrongConnType(t *testing.T) {
	codec := NewCodec(time.Second)
	loop := domain.NewEventLoop(1)
	defer loop.Close()
	rc := domain.NewRequestContext(context.Background(), loop, time.Now().Add(time.Second))

	_, err := codec.Exchange(rc, fakeConn{}, domain.NewHeadersObject(domain.NewHttpHeaders()))
	assert.Error(t, err)
}

type fakeConn struct{}

func (fakeConn) Key() ports.ConnectionKey { return ports.ConnectionKey{} }
func (fakeConn) Closed() bool             { return false }
func (fakeConn) Close() error             { return nil }

func TestHeadersToRequest_Defaults(t *testing.T) {
	h := domain.NewHttpHeaders()
	h.Set(":authority", "example.com")

	req, err := headersToRequest(h)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/", req.URL.Path)
	assert.Equal(t, "https", req.URL.Scheme)
}

func TestResponseToHeaders(t *testing.T) {
	resp := &http.Response{
		StatusCode: 204,
		Header:     http.Header{"X-Foo": []string{"bar"}},
	}
	h := responseToHeaders(resp)
	assert.Equal(t, 204, h.Status())
	assert.Equal(t, "bar", h.Get("x-foo"))
}
