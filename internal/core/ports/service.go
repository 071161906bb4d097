package ports

import (
	"github.com/thushan/olla/internal/core/domain"
)

// Service is the uniform capability: serve a request, produce a
// response. Both the HTTP codec's innermost handler and every
// decorator share this exact shape, which is what makes decorator
// composition possible without an adapter layer in between.
type Service interface {
	Serve(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error)
}

// ServiceFunc adapts a plain function to Service, the same "func as
// interface implementation" idiom net/http.HandlerFunc uses.
type ServiceFunc func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error)

func (f ServiceFunc) Serve(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
	return f(rc, req)
}

// Decorator wraps an inner Service, producing a new Service with the
// same shape. Composition is function composition: Chain(d1, d2)(inner)
// == d1(d2(inner)); the innermost service executes last on the request
// path and first on the response path.
type Decorator func(inner Service) Service

// Chain composes decorators outer-to-inner: Chain(d1, d2, d3)(inner) is
// equivalent to d1(d2(d3(inner))).
func Chain(decorators ...Decorator) Decorator {
	return func(inner Service) Service {
		svc := inner
		for i := len(decorators) - 1; i >= 0; i-- {
			svc = decorators[i](svc)
		}
		return svc
	}
}

// Client is the outbound counterpart of Service: issue a request against
// a resolved endpoint and get a response. The HTTP codec layer
// implements Client against a pooled connection; decorators that operate
// client-side (retry, circuit breaker, decoding) wrap a Client the same
// way server-side decorators wrap a Service.
type Client interface {
	Call(rc *domain.RequestContext, endpoint *domain.Endpoint, req domain.HttpObject) (domain.HttpObject, error)
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(rc *domain.RequestContext, endpoint *domain.Endpoint, req domain.HttpObject) (domain.HttpObject, error)

func (f ClientFunc) Call(rc *domain.RequestContext, endpoint *domain.Endpoint, req domain.HttpObject) (domain.HttpObject, error) {
	return f(rc, endpoint, req)
}

// ClientDecorator is Decorator's Client-shaped counterpart.
type ClientDecorator func(inner Client) Client

// ChainClient composes ClientDecorators the same way Chain composes
// Decorators.
func ChainClient(decorators ...ClientDecorator) ClientDecorator {
	return func(inner Client) Client {
		c := inner
		for i := len(decorators) - 1; i >= 0; i-- {
			c = decorators[i](c)
		}
		return c
	}
}
