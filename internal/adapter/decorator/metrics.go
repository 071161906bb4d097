package decorator

import (
	"time"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// ResultPredicate classifies a completed exchange as success or failure
// for metrics tagging. The default is "status < 400".
type ResultPredicate func(resp domain.HttpObject, err error) bool

// DefaultResultPredicate reports success iff err is nil and, when a
// Headers response is present, its :status is below 400.
func DefaultResultPredicate(resp domain.HttpObject, err error) bool {
	if err != nil {
		return false
	}
	if resp.Kind == domain.ObjectHeaders && resp.Headers != nil {
		return resp.Headers.Status() < 400
	}
	return true
}

// MetricsConfig parameterises the metrics decorator.
type MetricsConfig struct {
	Sink   ports.MetricSink
	Result ResultPredicate
	Now    func() time.Time
}

// Metrics returns a Decorator emitting one ports.MetricTags observation
// per completed request.
func Metrics(cfg MetricsConfig) ports.Decorator {
	sink := cfg.Sink
	if sink == nil {
		sink = ports.NopMetricSink{}
	}
	result := cfg.Result
	if result == nil {
		result = DefaultResultPredicate
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(inner ports.Service) ports.Service {
		return ports.ServiceFunc(func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
			start := now()
			resp, err := inner.Serve(rc, req)
			elapsed := now().Sub(start)

			tags := ports.MetricTags{Result: "failure"}
			if req.Kind == domain.ObjectHeaders && req.Headers != nil {
				tags.Method = req.Headers.Get(":method")
				tags.Path = req.Headers.Get(":path")
				tags.Host = req.Headers.Get(":authority")
			}
			if resp.Kind == domain.ObjectHeaders && resp.Headers != nil {
				tags.Status = resp.Headers.Status()
			}
			if result(resp, err) {
				tags.Result = "success"
			}

			sink.ObserveRequest(tags, elapsed.Milliseconds())
			return resp, err
		})
	}
}
