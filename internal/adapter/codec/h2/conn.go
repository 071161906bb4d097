// Package h2 implements the HTTP/2 codec, built on golang.org/x/net/http2
// rather than a hand-rolled frame/HPACK layer - re-deriving
// SETTINGS/HEADERS/DATA/HPACK by hand when the ecosystem's own
// reference implementation is already a direct dependency would be
// reinventing, not learning.
package h2

import (
	"net"
	"sync/atomic"

	"golang.org/x/net/http2"

	"github.com/thushan/olla/internal/core/ports"
)

// Conn adapts an http2.ClientConn over a pre-established net.Conn to
// ports.PooledConnection: the connection is dialed once elsewhere and
// handed in already negotiated, never dialed by the codec itself.
type Conn struct {
	key    ports.ConnectionKey
	raw    net.Conn
	cc     *http2.ClientConn
	closed atomic.Bool
}

// NewConn wraps raw (already ALPN-negotiated to h2) as a pooled
// connection keyed by key.
func NewConn(key ports.ConnectionKey, raw net.Conn, transport *http2.Transport) (*Conn, error) {
	cc, err := transport.NewClientConn(raw)
	if err != nil {
		return nil, err
	}
	return &Conn{key: key, raw: raw, cc: cc}, nil
}

func (c *Conn) Key() ports.ConnectionKey { return c.key }

// Closed reports the connection unusable once either side has closed it
// or the http2 library itself refuses new streams (GOAWAY received,
// MAX_CONCURRENT_STREAMS exhausted with no room).
func (c *Conn) Closed() bool {
	return c.closed.Load() || !c.cc.CanTakeNewRequest()
}

func (c *Conn) Close() error {
	c.closed.Store(true)
	return c.raw.Close()
}
