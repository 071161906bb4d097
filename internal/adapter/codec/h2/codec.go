package h2

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/http2"

	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// Codec implements ports.Codec over HTTP/2, translating between
// domain.HttpObject and http2.Transport's http.Request/http.Response
// shape. AllowHTTP permits exchanging over a plaintext (h2c) connection
// when the caller has already negotiated it; the codec itself performs
// no ALPN/upgrade negotiation - that belongs to whatever dials the
// connection this Codec is handed.
type Codec struct {
	Transport *http2.Transport
	Idle      time.Duration
}

func NewCodec(idle time.Duration) *Codec {
	return &Codec{
		Transport: &http2.Transport{AllowHTTP: true},
		Idle:      idle,
	}
}

func (c *Codec) IdleTimeout() time.Duration { return c.Idle }

// Exchange requires conn to be an *h2.Conn and req to be a Headers
// object; the request body (if any) is read from
// ports.RequestBodyAttrKey on rc, and the response body is written to
// ports.ResponseBodyAttrKey for the caller to subscribe to after
// Exchange returns the response Headers object.
func (c *Codec) Exchange(rc *domain.RequestContext, conn ports.PooledConnection, req domain.HttpObject) (domain.HttpObject, error) {
	h2conn, ok := conn.(*Conn)
	if !ok {
		return domain.HttpObject{}, fmt.Errorf("h2: %w: Exchange requires an h2 *Conn, got %T", domain.ErrProtocolNegotiation, conn)
	}
	if req.Kind != domain.ObjectHeaders || req.Headers == nil {
		return domain.HttpObject{}, fmt.Errorf("h2: %w: Exchange requires a Headers request object", domain.ErrIllegalArgument)
	}

	httpReq, err := headersToRequest(req.Headers)
	if err != nil {
		return domain.HttpObject{}, domain.NewPipelineError(domain.KindInvalidArgument, "h2-exchange", h2conn.Key().Authority, 0, err)
	}
	httpReq = httpReq.WithContext(rc.Context())

	if v, ok := rc.Attr(ports.RequestBodyAttrKey); ok {
		if body, ok := v.(*stream.ObjectStream); ok {
			httpReq.Body = io.NopCloser(newObjectStreamReader(body))
		}
	}

	started := time.Now()
	resp, err := h2conn.cc.RoundTrip(httpReq)
	if err != nil {
		return domain.HttpObject{}, domain.NewPipelineError(domain.KindPeerError, "h2-exchange", h2conn.Key().Authority, time.Since(started), err)
	}

	rc.SetAttr(ports.ResponseBodyAttrKey, readerToObjectStream(resp.Body))
	return domain.NewHeadersObject(responseToHeaders(resp)), nil
}

func headersToRequest(h *domain.HttpHeaders) (*http.Request, error) {
	method := h.Get(":method")
	if method == "" {
		method = http.MethodGet
	}
	scheme := h.Get(":scheme")
	if scheme == "" {
		scheme = "https"
	}
	path := h.Get(":path")
	if path == "" {
		path = "/"
	}
	authority := h.Get(":authority")

	u, err := url.Parse(scheme + "://" + authority + path)
	if err != nil {
		return nil, fmt.Errorf("h2: %w: %v", domain.ErrIllegalArgument, err)
	}

	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return nil, err
	}

	h.Range(func(name, value string) {
		if name == "" || name[0] == ':' {
			return
		}
		req.Header.Add(name, value)
	})
	return req, nil
}

func responseToHeaders(resp *http.Response) *domain.HttpHeaders {
	out := domain.NewHttpHeaders()
	out.Set(":status", strconv.Itoa(resp.StatusCode))
	for name, values := range resp.Header {
		for _, v := range values {
			out.Add(name, v)
		}
	}
	return out
}
