// Package dns implements the resolver: search-domain expansion,
// TTL/negative caching, and a UDP-with-TCP-fallback exchange, built on
// github.com/miekg/dns for wire-format message construction.
//
// Client keeps the exchange method free of dialing concerns: a
// connection is acquired up front and Exchange never dials mid-call. It
// dials through net.Dialer directly rather than a dedicated transport
// abstraction, since this module has no other DNS transport to share.
package dns

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Client performs a single DNS exchange over UDP, falling back to TCP
// when the response is truncated (TC bit set), per standard DNS
// resolver behaviour.
type Client struct {
	Server  string
	Dialer  net.Dialer
	Timeout time.Duration
}

func NewClient(server string, timeout time.Duration) *Client {
	return &Client{Server: server, Timeout: timeout}
}

// Exchange sends msg to the configured server and returns the response.
// Cancellation of ctx aborts the wait but the underlying connection is
// always closed before Exchange returns, so a late-arriving datagram on
// a cancelled read has nowhere to be delivered - it is dropped by the
// kernel once the socket is closed, not buffered by this client.
func (c *Client) Exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	resp, err := c.exchangeOn("udp", ctx, msg)
	if err != nil {
		return nil, err
	}
	if resp.Truncated {
		return c.exchangeOn("tcp", ctx, msg)
	}
	return resp, nil
}

func (c *Client) exchangeOn(network string, ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := c.Dialer.DialContext(ctx, network, c.Server)
	if err != nil {
		return nil, fmt.Errorf("dns: dial %s: %w", c.Server, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	dc := &dns.Conn{Conn: conn}
	if err := dc.WriteMsg(msg); err != nil {
		return nil, fmt.Errorf("dns: write: %w", err)
	}

	resp, err := dc.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("dns: read: %w", err)
	}
	return resp, nil
}
