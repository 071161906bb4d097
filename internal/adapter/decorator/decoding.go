package decorator

import (
	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// DecodingConfig parameterises the client-side decoding decorator.
type DecodingConfig struct {
	// Strict fails the call with domain.ErrUnsupportedEncoding when
	// content-encoding names something other than gzip/deflate/br; when
	// false, an unrecognised encoding is passed through undecoded.
	Strict bool
}

// Decoding wraps a Client and inspects the response's content-encoding
// header. It does not decode the body itself: for gzip, deflate or br it
// records the encoding on rc, where DecodeBody picks it up, and for any
// other encoding it fails the call in Strict mode and passes the
// response through otherwise. Nothing in this package calls DecodeBody
// on the response body stream; a caller has to.
func Decoding(cfg DecodingConfig) ports.ClientDecorator {
	return func(inner ports.Client) ports.Client {
		return ports.ClientFunc(func(rc *domain.RequestContext, endpoint *domain.Endpoint, req domain.HttpObject) (domain.HttpObject, error) {
			resp, err := inner.Call(rc, endpoint, req)
			if err != nil || resp.Kind != domain.ObjectHeaders || resp.Headers == nil {
				return resp, err
			}

			enc := stream.Encoding(resp.Headers.Get("content-encoding"))
			if enc == "" {
				return resp, nil
			}
			switch enc {
			case stream.EncodingGzip, stream.EncodingDeflate, stream.EncodingBrotli:
				rc.SetAttr(decodingAttrKey, enc)
				return resp, nil
			default:
				if cfg.Strict {
					return domain.HttpObject{}, domain.NewPipelineError(domain.KindInvalidArgument, "decoding", endpoint.Key(), 0, domain.ErrUnsupportedEncoding)
				}
				return resp, nil
			}
		})
	}
}

const decodingAttrKey domain.AttrKey = "decoding.content-encoding"

// DecodeBody wires a stream.DecodingStream between upstream (carrying
// the response body exactly as received off the wire) and the object
// stream the caller ultimately subscribes to, honouring the
// content-encoding previously resolved by Decoding. Returns upstream
// unchanged if no decoding was selected for rc.
func DecodeBody(rc *domain.RequestContext, upstream *stream.ObjectStream) *stream.ObjectStream {
	v, ok := rc.Attr(decodingAttrKey)
	if !ok {
		return upstream
	}
	enc, ok := v.(stream.Encoding)
	if !ok {
		return upstream
	}
	d := stream.NewDecodingStream(upstream, enc)
	d.Start()
	return d.Out()
}
