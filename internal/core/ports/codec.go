package ports

import (
	"time"

	"github.com/thushan/olla/internal/core/domain"
)

// ConnectionKey identifies a pooled connection: the negotiated
// protocol, the target authority, and which TLS context (if any)
// secures it.
type ConnectionKey struct {
	Protocol     string // "h1", "h1c", "h2", "h2c"
	Authority    string // host:port
	TLSContextID string // "" for plaintext
}

// PooledConnection is a single reusable transport connection, checked
// out of a ConnectionPool for the duration of one exchange (or pipelined
// exchanges, for protocols that allow it).
type PooledConnection interface {
	Key() ConnectionKey
	Closed() bool
}

// ConnectionPoolListener observes open/close events on a ConnectionPool.
type ConnectionPoolListener interface {
	OnOpen(key ConnectionKey)
	OnClose(key ConnectionKey)
}

// ConnectionPool hands out PooledConnections keyed by (protocol,
// authority, tls-context-id), reusing an existing one when available and
// otherwise dialing a fresh one. A connection pinned by the server's
// response with Connection: close is removed from the pool on response
// completion rather than returned.
type ConnectionPool interface {
	Acquire(rc *domain.RequestContext, key ConnectionKey) (PooledConnection, error)
	Release(conn PooledConnection, keepAlive bool)

	AddListener(l ConnectionPoolListener)
}

// Codec drives one exchange over a PooledConnection: writes the request
// stream, including the 100-continue state machine where applicable,
// and produces the response stream. Exchange itself carries only the
// Headers object in both directions; a request or response body wider
// than one HttpObject is handed off via RequestBodyAttrKey/
// ResponseBodyAttrKey on rc (an *adapter/stream.ObjectStream, typed as
// any here to avoid an import cycle with the adapter layer), the same
// attribute-handoff idiom the decoding decorator uses for its resolved
// content-encoding.
type Codec interface {
	Exchange(rc *domain.RequestContext, conn PooledConnection, req domain.HttpObject) (domain.HttpObject, error)

	// IdleTimeout bounds how long an acquired-but-unused connection may
	// sit in the pool before it is proactively closed.
	IdleTimeout() time.Duration
}

// RequestBodyAttrKey, if set on a RequestContext before Codec.Exchange
// is called, names the *adapter/stream.ObjectStream a streaming codec
// should read the request body from.
const RequestBodyAttrKey domain.AttrKey = "codec.request-body"

// ResponseBodyAttrKey is where a streaming Codec.Exchange stores the
// *adapter/stream.ObjectStream carrying the response body, for the
// caller (or the decoding decorator's DecodeBody) to subscribe to
// after Exchange returns the response Headers object.
const ResponseBodyAttrKey domain.AttrKey = "codec.response-body"
