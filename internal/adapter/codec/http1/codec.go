package http1

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// Codec implements ports.Codec over HTTP/1.1, writing the request
// directly to the pooled net.Conn via http.Request.Write (reusing
// net/http's own request-line/header/chunked-encoding serialisation
// rather than hand-rolling RFC 7230 framing) and reading the response
// with http.ReadResponse off the connection's retained *bufio.Reader.
// The Expect: 100-continue path is the exception: it writes its request
// head by hand and frames the body with httputil.NewChunkedWriter.
type Codec struct {
	Idle time.Duration
}

func NewCodec(idle time.Duration) *Codec {
	return &Codec{Idle: idle}
}

func (c *Codec) IdleTimeout() time.Duration { return c.Idle }

func (c *Codec) Exchange(rc *domain.RequestContext, conn ports.PooledConnection, req domain.HttpObject) (domain.HttpObject, error) {
	h1conn, ok := conn.(*Conn)
	if !ok {
		return domain.HttpObject{}, fmt.Errorf("http1: %w: Exchange requires an http1 *Conn, got %T", domain.ErrProtocolNegotiation, conn)
	}
	if req.Kind != domain.ObjectHeaders || req.Headers == nil {
		return domain.HttpObject{}, fmt.Errorf("http1: %w: Exchange requires a Headers request object", domain.ErrIllegalArgument)
	}

	httpReq, err := headersToRequest(req.Headers)
	if err != nil {
		return domain.HttpObject{}, domain.NewPipelineError(domain.KindInvalidArgument, "http1-exchange", h1conn.Key().Authority, 0, err)
	}

	var bodyReader io.Reader
	hasBody := false
	if v, ok := rc.Attr(ports.RequestBodyAttrKey); ok {
		if body, ok := v.(*stream.ObjectStream); ok {
			bodyReader = newObjectStreamReader(body)
			hasBody = true
		}
	}

	cm, err := NewContinueMachine(req.Headers, hasBody)
	if err != nil {
		return domain.HttpObject{}, domain.NewPipelineError(domain.KindInvalidArgument, "http1-exchange", h1conn.Key().Authority, 0, err)
	}

	started := time.Now()
	var resp *http.Response

	if cm.State() == StateExpectSent {
		resp, err = c.exchangeWithContinue(h1conn, httpReq, bodyReader, cm)
	} else {
		if hasBody {
			httpReq.Body = io.NopCloser(bodyReader)
		}
		if werr := httpReq.Write(h1conn.raw); werr != nil {
			return domain.HttpObject{}, domain.NewPipelineError(domain.KindPeerError, "http1-exchange", h1conn.Key().Authority, time.Since(started), werr)
		}
		resp, err = http.ReadResponse(h1conn.br, httpReq)
	}
	if err != nil {
		return domain.HttpObject{}, domain.NewPipelineError(domain.KindPeerError, "http1-exchange", h1conn.Key().Authority, time.Since(started), err)
	}

	rc.SetAttr(ports.ResponseBodyAttrKey, readerToObjectStream(resp.Body))
	return domain.NewHeadersObject(responseToHeaders(resp)), nil
}

// exchangeWithContinue drives the Expect: 100-continue request side:
// headers are flushed without a body, the wire is read for either a 100
// Continue interim response (body follows) or an immediate final
// response (body is never sent).
func (c *Codec) exchangeWithContinue(conn *Conn, httpReq *http.Request, bodyReader io.Reader, cm *ContinueMachine) (*http.Response, error) {
	// Request.Write refuses a non-zero ContentLength with a nil Body, so the
	// head is written by hand; Transfer-Encoding: chunked carries the body
	// that follows.
	if _, err := fmt.Fprintf(conn.raw, "%s %s HTTP/1.1\r\nHost: %s\r\n", httpReq.Method, httpReq.URL.RequestURI(), httpReq.Host); err != nil {
		return nil, err
	}
	if err := httpReq.Header.Write(conn.raw); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(conn.raw, "Transfer-Encoding: chunked\r\n\r\n"); err != nil {
		return nil, err
	}

	tp := textproto.NewReader(conn.br)
	line, err := tp.ReadLine()
	if err != nil {
		return nil, err
	}
	status, statusText, ok := parseStatusLine(line)
	if !ok {
		return nil, fmt.Errorf("http1: malformed status line %q", line)
	}
	if _, err := tp.ReadMIMEHeader(); err != nil {
		return nil, err
	}

	if status == 100 {
		cm.OnInterimResponse(100)
		if bodyReader != nil {
			cw := httputil.NewChunkedWriter(conn.raw)
			if _, err := io.Copy(cw, bodyReader); err != nil {
				return nil, err
			}
			if err := cw.Close(); err != nil {
				return nil, err
			}
		}
		if _, err := io.WriteString(conn.raw, "\r\n"); err != nil {
			return nil, err
		}
		cm.MarkBodySent()
		return http.ReadResponse(conn.br, httpReq)
	}

	if status == 417 {
		cm.OnExpectationFailed()
	} else {
		cm.OnFinalResponse()
	}
	return synthesizeResponse(status, statusText, conn.br, httpReq)
}

func parseStatusLine(line string) (status int, text string, ok bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, "", false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", false
	}
	if len(parts) == 3 {
		text = parts[2]
	}
	return n, text, true
}

// synthesizeResponse builds an *http.Response for a final response whose
// status line was already consumed by textproto.Reader, re-reading the
// remaining header block and body from br via http.ReadResponse against
// a reconstructed status line.
func synthesizeResponse(status int, statusText string, br *bufio.Reader, req *http.Request) (*http.Response, error) {
	statusLine := fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, statusText)
	combined := bufio.NewReader(io.MultiReader(strings.NewReader(statusLine), br))
	return http.ReadResponse(combined, req)
}

func headersToRequest(h *domain.HttpHeaders) (*http.Request, error) {
	method := h.Get(":method")
	if method == "" {
		method = http.MethodGet
	}
	path := h.Get(":path")
	if path == "" {
		path = "/"
	}
	authority := h.Get(":authority")

	u, err := url.Parse("http://" + authority + path)
	if err != nil {
		return nil, fmt.Errorf("http1: %w: %v", domain.ErrIllegalArgument, err)
	}

	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Host = authority

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
