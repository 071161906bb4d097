package http1

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// Dialer opens a fresh connection for key. Acquire calls it only when
// no idle connection is available to reuse.
type Dialer func(rc *domain.RequestContext, key ports.ConnectionKey) (ports.PooledConnection, error)

// bucket holds the idle connections for one ConnectionKey. A plain
// mutex-guarded slice is enough here - the map of buckets is the
// contended structure the pack reaches for a lock-free map; each
// bucket itself sees far lower concurrency (only exchanges against the
// same endpoint over the same protocol).
type bucket struct {
	mu   sync.Mutex
	idle []ports.PooledConnection
}

// Pool is a connection pool keyed by (protocol, authority,
// tls-context-id), generalised from a per-endpoint *http.Transport map
// to the full ConnectionKey tuple and from one shared transport to
// individually reusable PooledConnections.
type Pool struct {
	buckets   *xsync.Map[ports.ConnectionKey, *bucket]
	dial      Dialer
	listeners []ports.ConnectionPoolListener
	mu        sync.Mutex
}

func NewPool(dial Dialer) *Pool {
	return &Pool{
		buckets: xsync.NewMap[ports.ConnectionKey, *bucket](),
		dial:    dial,
	}
}

func (p *Pool) AddListener(l ports.ConnectionPoolListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *Pool) notifyOpen(key ports.ConnectionKey) {
	p.mu.Lock()
	ls := append([]ports.ConnectionPoolListener{}, p.listeners...)
	p.mu.Unlock()
	for _, l := range ls {
		l.OnOpen(key)
	}
}

func (p *Pool) notifyClose(key ports.ConnectionKey) {
	p.mu.Lock()
	ls := append([]ports.ConnectionPoolListener{}, p.listeners...)
	p.mu.Unlock()
	for _, l := range ls {
		l.OnClose(key)
	}
}

func (p *Pool) bucketFor(key ports.ConnectionKey) *bucket {
	b, _ := p.buckets.LoadOrCompute(key, func() (*bucket, bool) {
		return &bucket{}, false
	})
	return b
}

// Acquire returns an idle connection for key if one is available,
// otherwise dials a fresh one and reports the open to any listeners.
func (p *Pool) Acquire(rc *domain.RequestContext, key ports.ConnectionKey) (ports.PooledConnection, error) {
	b := p.bucketFor(key)

	b.mu.Lock()
	n := len(b.idle)
	var conn ports.PooledConnection
	if n > 0 {
		conn = b.idle[n-1]
		b.idle = b.idle[:n-1]
	}
	b.mu.Unlock()

	if conn != nil && !conn.Closed() {
		return conn, nil
	}

	conn, err := p.dial(rc, key)
	if err != nil {
		return nil, err
	}
	p.notifyOpen(key)
	return conn, nil
}

// Release returns conn to its bucket for reuse when keepAlive is true
// and the connection is still open; otherwise it is dropped from the
// pool and listeners are told it closed. A Connection: close response
// always pins the connection out of the pool.
func (p *Pool) Release(conn ports.PooledConnection, keepAlive bool) {
	key := conn.Key()
	if !keepAlive || conn.Closed() {
		p.notifyClose(key)
		return
	}

	b := p.bucketFor(key)
	b.mu.Lock()
	b.idle = append(b.idle, conn)
	b.mu.Unlock()
}
