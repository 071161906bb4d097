package decorator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/olla/internal/adapter/stream"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

func clientReturning(resp domain.HttpObject, err error) ports.Client {
	return ports.ClientFunc(func(rc *domain.RequestContext, endpoint *domain.Endpoint, req domain.HttpObject) (domain.HttpObject, error) {
		return resp, err
	})
}

func headersWithEncoding(enc string) domain.HttpObject {
	h := domain.NewHttpHeaders()
	h.Set(":status", "200")
	if enc != "" {
		h.Set("content-encoding", enc)
	}
	return domain.NewHeadersObject(h)
}

func TestDecoding_RecognisedEncodingTagsAttr(t *testing.T) {
	client := Decoding(DecodingConfig{})(clientReturning(headersWithEncoding("gzip"), nil))
	rc := newTestRC(t)
	ep := domain.NewEndpoint("localhost", 8080)

	_, err := client.Call(rc, ep, headersObject(0))
	require.NoError(t, err)

	v, ok := rc.Attr(decodingAttrKey)
	require.True(t, ok)
	assert.Equal(t, stream.EncodingGzip, v)
}

func TestDecoding_NoEncodingHeaderIsPassthrough(t *testing.T) {
	client := Decoding(DecodingConfig{})(clientReturning(headersWithEncoding(""), nil))
	rc := newTestRC(t)
	ep := domain.NewEndpoint("localhost", 8080)

	_, err := client.Call(rc, ep, headersObject(0))
	require.NoError(t, err)
	_, ok := rc.Attr(decodingAttrKey)
	assert.False(t, ok)
}

func TestDecoding_UnknownEncodingStrictFails(t *testing.T) {
	client := Decoding(DecodingConfig{Strict: true})(clientReturning(headersWithEncoding("identity-weird"), nil))
	rc := newTestRC(t)
	ep := domain.NewEndpoint("localhost", 8080)

	_, err := client.Call(rc, ep, headersObject(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedEncoding)
}

func TestDecoding_UnknownEncodingNonStrictPassesThrough(t *testing.T) {
	client := Decoding(DecodingConfig{Strict: false})(clientReturning(headersWithEncoding("identity-weird"), nil))
	rc := newTestRC(t)
	ep := domain.NewEndpoint("localhost", 8080)

	resp, err := client.Call(rc, ep, headersObject(0))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Headers.Status())
}

func TestDecoding_InnerErrorPassesThroughUntouched(t *testing.T) {
	boom := errors.New("upstream dead")
	client := Decoding(DecodingConfig{})(clientReturning(domain.HttpObject{}, boom))
	rc := newTestRC(t)
	ep := domain.NewEndpoint("localhost", 8080)

	_, err := client.Call(rc, ep, headersObject(0))
	assert.Equal(t, boom, err)
}

func TestDecodeBody_NoAttrReturnsUpstreamUnchanged(t *testing.T) {
	rc := newTestRC(t)
	upstream := stream.NewObjectStream()
	out := DecodeBody(rc, upstream)
	assert.Same(t, upstream, out)
}

func TestDecodeBody_WithAttrWrapsInDecodingStream(t *testing.T) {
	rc := newTestRC(t)
	rc.SetAttr(decodingAttrKey, stream.EncodingGzip)
	upstream := stream.NewObjectStream()
	out := DecodeBody(rc, upstream)
	assert.NotSame(t, upstream, out)
}
