package decorator

import (
	"fmt"
	"net/http"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// AuthScheme identifies the credential format an Authorizer extracts
// from the Authorization header.
type AuthScheme string

const (
	AuthSchemeBasic  AuthScheme = "Basic"
	AuthSchemeOAuth1 AuthScheme = "OAuth1a"
	AuthSchemeOAuth2 AuthScheme = "OAuth2"
)

// AuthVerdict is an Authorizer's opinion on one request: Allow lets the
// request proceed without consulting later authorizers; Deny stops the
// chain immediately; Abstain defers to the next authorizer (and, if
// every authorizer abstains, to the failure handler).
type AuthVerdict int

const (
	AuthAbstain AuthVerdict = iota
	AuthAllow
	AuthDeny
)

// Authorizer inspects a request and returns a verdict. Auth calls
// Authorize synchronously on the goroutine serving the request, so any
// blocking work it does (e.g. a token introspection call) holds that
// request until it returns.
type Authorizer interface {
	Authorize(rc *domain.RequestContext, req domain.HttpObject) (AuthVerdict, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(rc *domain.RequestContext, req domain.HttpObject) (AuthVerdict, error)

func (f AuthorizerFunc) Authorize(rc *domain.RequestContext, req domain.HttpObject) (AuthVerdict, error) {
	return f(rc, req)
}

// FailureHandler synthesizes a response when every authorizer abstains
// or the first decisive verdict is Deny. A handler that itself panics or
// returns an error is never retried; it surfaces as a 500, which
// AuthDecorator does by wrapping the handler's error in a KindProtocol
// PipelineError rather than letting it propagate raw.
type FailureHandler interface {
	HandleDenied(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error)
}

// FailureHandlerFunc adapts a function to FailureHandler.
type FailureHandlerFunc func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error)

func (f FailureHandlerFunc) HandleDenied(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
	return f(rc, req)
}

// DefaultFailureHandler returns a synthetic 401 Unauthorized response,
// used when Auth is given a nil handler. Auth takes one failure handler
// for all of its authorizers; an individual Authorizer cannot carry a
// handler of its own.
func DefaultFailureHandler() FailureHandler {
	return FailureHandlerFunc(func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
		h := domain.NewHttpHeaders()
		h.Set(":status", "401")
		return domain.NewHeadersObject(h), nil
	})
}

// Auth returns a Decorator enforcing the following order: the first
// authorizer to return AuthAllow lets the request through; the first to
// return AuthDeny, or universal abstention, invokes failure.
func Auth(authorizers []Authorizer, failure FailureHandler) ports.Decorator {
	if failure == nil {
		failure = DefaultFailureHandler()
	}
	return func(inner ports.Service) ports.Service {
		return ports.ServiceFunc(func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
			deny := func() (resp domain.HttpObject, err error) {
				defer func() {
					if p := recover(); p != nil {
						resp, err = domain.HttpObject{}, domain.NewPipelineError(domain.KindProtocol, "auth", "", 0, fmt.Errorf("failure handler panicked: %v", p))
					}
				}()
				resp, err = failure.HandleDenied(rc, req)
				if err != nil {
					return domain.HttpObject{}, domain.NewPipelineError(domain.KindProtocol, "auth", "", 0, err)
				}
				return resp, nil
			}
			for _, a := range authorizers {
				verdict, err := a.Authorize(rc, req)
				if err != nil {
					return domain.HttpObject{}, domain.NewPipelineError(domain.KindProtocol, "auth", "", 0, err)
				}
				switch verdict {
				case AuthAllow:
					return inner.Serve(rc, req)
				case AuthDeny:
					return deny()
				case AuthAbstain:
					continue
				}
			}
			return deny()
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header, the common case for AuthSchemeOAuth2-style authorizers. It
// returns ok=false if the header is absent or not Bearer-shaped.
func BearerToken(req domain.HttpObject) (token string, ok bool) {
	if req.Kind != domain.ObjectHeaders || req.Headers == nil {
		return "", false
	}
	v := req.Headers.Get("authorization")
	const prefix = "Bearer "
	if len(v) <= len(prefix) || v[:len(prefix)] != prefix {
		return "", false
	}
	return v[len(prefix):], true
}

// BasicCredentials extracts and decodes "Authorization: Basic <base64>"
// into user/pass, using the stdlib's own Basic-auth parser (the same one
// net/http.Request.BasicAuth uses) rather than reimplementing it.
func BasicCredentials(req domain.HttpObject) (user, pass string, ok bool) {
	if req.Kind != domain.ObjectHeaders || req.Headers == nil {
		return "", "", false
	}
	v := req.Headers.Get("authorization")
	r := &http.Request{Header: http.Header{"Authorization": {v}}}
	return r.BasicAuth()
}
