package decorator

import (
	"strings"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// Sanitizer masks sensitive values out of a captured preview before it
// is stored on the log.
type Sanitizer func(preview string) string

// PreviewConfig parameterises the content-preview decorator.
type PreviewConfig struct {
	MaxLength int
	Sanitizer Sanitizer
}

// previewableContentType reports whether a media type is eligible for
// preview capture: text/*, application/x-www-form-urlencoded, any
// charset-bearing media, and */+xml or */+json structured syntax
// suffixes.
func previewableContentType(contentType string) bool {
	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		if strings.Contains(mediaType[i:], "charset=") {
			return true
		}
		mediaType = mediaType[:i]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/x-www-form-urlencoded":
		return true
	case strings.HasSuffix(mediaType, "+xml"), mediaType == "application/xml":
		return true
	case strings.HasSuffix(mediaType, "+json"), mediaType == "application/json":
		return true
	default:
		return false
	}
}

// previewAccumulator accumulates up to maxLen bytes of Data chunks into
// a string. observe copies bytes out of the chunk it is given and never
// calls Release, so buffer ownership stays with the caller.
type previewAccumulator struct {
	maxLen int
	buf    []byte
	done   bool
}

func newPreviewAccumulator(maxLen int) *previewAccumulator {
	return &previewAccumulator{maxLen: maxLen}
}

func (p *previewAccumulator) observe(chunk []byte) {
	if p.done || len(p.buf) >= p.maxLen {
		p.done = true
		return
	}
	remaining := p.maxLen - len(p.buf)
	if remaining > len(chunk) {
		remaining = len(chunk)
	}
	p.buf = append(p.buf, chunk[:remaining]...)
}

func (p *previewAccumulator) result(sanitize Sanitizer) string {
	s := string(p.buf)
	if sanitize != nil {
		s = sanitize(s)
	}
	return s
}

// Preview returns a Decorator recording body previews on the log under
// LogRequestContentPreview/LogResponseContentPreview, restricted to
// content-types previewableContentType allows. The request preview is
// up to cfg.MaxLength bytes of req.Data; a request body carried as a
// stream under ports.RequestBodyAttrKey is not read. The response body
// is not observed at all: a previewable response gets an empty preview.
func Preview(cfg PreviewConfig) ports.Decorator {
	maxLen := cfg.MaxLength
	if maxLen <= 0 {
		maxLen = 2048
	}
	return func(inner ports.Service) ports.Service {
		return ports.ServiceFunc(func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
			log := rc.LogBuilder()

			if req.Kind == domain.ObjectHeaders && req.Headers != nil && previewableContentType(req.Headers.Get("content-type")) {
				acc := newPreviewAccumulator(maxLen)
				if req.Data != nil {
					acc.observe(req.Data.Bytes())
				}
				log.Set(domain.LogRequestContentPreview, acc.result(cfg.Sanitizer))
			}

			resp, err := inner.Serve(rc, req)
			if err != nil {
				return resp, err
			}

			if resp.Kind == domain.ObjectHeaders && resp.Headers != nil && previewableContentType(resp.Headers.Get("content-type")) {
				acc := newPreviewAccumulator(maxLen)
				log.Set(domain.LogResponseContentPreview, acc.result(cfg.Sanitizer))
			}
			return resp, err
		})
	}
}
