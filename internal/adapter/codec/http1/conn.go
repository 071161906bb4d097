package http1

import (
	"bufio"
	"net"
	"sync/atomic"

	"github.com/thushan/olla/internal/core/ports"
)

// Conn adapts a dialed net.Conn to ports.PooledConnection, carrying the
// bufio.Reader Codec.Exchange needs across reuses of the same
// connection (http.ReadResponse requires a *bufio.Reader, and a fresh
// one per exchange would drop any bytes already buffered past the
// previous response).
type Conn struct {
	key    ports.ConnectionKey
	raw    net.Conn
	br     *bufio.Reader
	closed atomic.Bool
}

func NewConn(key ports.ConnectionKey, raw net.Conn) *Conn {
	return &Conn{key: key, raw: raw, br: bufio.NewReader(raw)}
}

func (c *Conn) Key() ports.ConnectionKey { return c.key }
func (c *Conn) Closed() bool             { return c.closed.Load() }

func (c *Conn) Close() error {
	c.closed.Store(true)
	return c.raw.Close()
}
