package http1

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// serveOnce accepts a single connection on ln, reads one request off it
// and writes back a canned HTTP/1.1 response with Connection: close.
func serveOnce(t *testing.T, ln net.Listener, status int, body string) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		_ = req.Body.Close()

		fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
			status, http.StatusText(status), len(body), body)
	}()
}

func collectBody(t *testing.T, s *stream.ObjectStream) string {
	t.Helper()
	sub := &collectingSubscriber{done: make(chan struct{})}
	s.Subscribe(sub, true)
	<-sub.done
	return string(sub.buf)
}

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

func TestCodec_Exchange_SimpleGET(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serveOnce(t, ln, 200, "hello world")

	raw, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)

	key := ports.ConnectionKey{Protocol: "h1", Authority: ln.Addr().String()}
	conn := NewConn(key, raw)
	defer conn.Close()

	codec := NewCodec(30 * time.Second)

	h := domain.NewHttpHeaders()
	h.Set(":method", "GET")
	h.Set(":path", "/")
	h.Set(":authority", ln.Addr().String())

	loop := domain.NewEventLoop(1)
	defer loop.Close()
	rc := domain.NewRequestContext(context.Background(), loop, time.Now().Add(5*time.Second))

	resp, err := codec.Exchange(rc, conn, domain.NewHeadersObject(h))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Headers.Status())

	v, ok := rc.Attr(ports.ResponseBodyAttrKey)
	require.True(t, ok)
	body, ok := v.(*stream.ObjectStream)
	require.True(t, ok)

	assert.Equal(t, "hello world", collectBody(t, body))
}

func TestParseStatusLine(t *testing.T) {
	status, text, ok := parseStatusLine("HTTP/1.1 404 Not Found")
	require.True(t, ok)
	assert.Equal(t, 404, status)
	assert.Equal(t, "Not Found", text)

	_, _, ok = parseStatusLine("garbage")
	assert.False(t, ok)
}

func TestHeadersToRequest_DefaultsMethodAndPath(t *testing.T) {
	h := domain.NewHttpHeaders()
	h.Set(":authority", "example.com:80")

	req, err := headersToRequest(h)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/", req.URL.Path)
	assert.Equal(t, "example.com:80", req.Host)
}
