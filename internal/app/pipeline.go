package app

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/http2"

	"github.com/thushan/olla/internal/adapter/codec/h2"
	"github.com/thushan/olla/internal/adapter/codec/http1"
	"github.com/thushan/olla/internal/adapter/decorator"
	"github.com/thushan/olla/internal/adapter/dns"
	"github.com/thushan/olla/internal/adapter/endpoint"
	"github.com/thushan/olla/internal/adapter/retry"
	"github.com/thushan/olla/internal/config"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
	"github.com/thushan/olla/internal/logger"
	"github.com/thushan/olla/pkg/eventbus"
	"github.com/thushan/olla/pkg/format"
)

// EndpointHealthEvent is published whenever a probed endpoint's
// routability flips, so a caller (an admin/status surface, a future
// webhook) can subscribe to transitions without polling the endpoint
// group itself.
type EndpointHealthEvent struct {
	Endpoint *domain.Endpoint
	Status   domain.EndpointStatus
	At       time.Time
}

// pipelineBundle holds every long-lived piece buildPipeline assembles,
// so Application.Start/Stop can drive the pieces with a lifecycle
// (health checker, discovery refresher) without reaching back into the
// decorator chain itself.
type pipelineBundle struct {
	service ports.Service

	group         ports.EndpointGroup
	healthChecker *endpoint.HealthChecked
	healthEvents  *eventbus.EventBus[EndpointHealthEvent]

	discoveryRefresh *dnsDiscoveryRefresher
}

// buildPipeline wires config into the full request/response pipeline: an
// endpoint group, a client chain over the pooled HTTP codecs, and the
// inbound decorator chain terminating in an endpoint-selecting Service.
func buildPipeline(cfg *config.Config, log *logger.StyledLogger) (*pipelineBundle, error) {
	group, healthChecker, healthEvents, refresher, err := buildEndpointGroup(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("endpoint group: %w", err)
	}

	client, err := buildClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("client chain: %w", err)
	}

	breaker := decorator.NewCircuitBreaker(decorator.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.ThresholdRatio,
		WindowSize:       cfg.CircuitBreaker.MinRequests,
		OpenDuration:     cfg.CircuitBreaker.OpenDuration(),
	})

	selecting := ports.ServiceFunc(func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
		ep, serr := group.Select(rc)
		if serr != nil {
			return domain.HttpObject{}, domain.NewPipelineError(domain.KindUnprocessed, "endpoint-selection", "", 0, serr)
		}
		if ep == nil {
			return domain.HttpObject{}, domain.NewPipelineError(domain.KindRejected, "endpoint-selection", "", 0, domain.ErrNoEndpointAvailable)
		}
		rc.SetEndpoint(ep)
		return client.Call(rc, ep, req)
	})

	inbound := ports.Chain(
		breaker.Decorate,
		decorator.Preview(decorator.PreviewConfig{MaxLength: cfg.Preview.MaxLength}),
		decorator.Metrics(decorator.MetricsConfig{}),
		decorator.ResponseTimeout(cfg.RequestOptions.ResponseTimeout()),
	)(selecting)

	return &pipelineBundle{
		service:          inbound,
		group:            group,
		healthChecker:    healthChecker,
		healthEvents:     healthEvents,
		discoveryRefresh: refresher,
	}, nil
}

// buildClient assembles the outbound Client chain: decoding then retry
// around a protocol-dispatching codec call.
func buildClient(cfg *config.Config) (ports.Client, error) {
	// h2's Conn satisfies ports.PooledConnection the same as http1's, so
	// http1.Pool (a plain ConnectionKey -> PooledConnection pool with no
	// protocol-specific logic of its own) is reused for both, keyed by
	// Dialer rather than duplicated per protocol.
	h1Pool := http1.NewPool(dialHTTP1)
	h2Pool := http1.NewPool(dialHTTP2(cfg))

	h1Codec := http1.NewCodec(cfg.ClientFactory.IdleTimeout())
	h2Codec := h2.NewCodec(cfg.ClientFactory.IdleTimeout())

	base := ports.ClientFunc(func(rc *domain.RequestContext, ep *domain.Endpoint, req domain.HttpObject) (domain.HttpObject, error) {
		key := ports.ConnectionKey{Protocol: protocolFor(cfg), Authority: ep.Key()}

		var (
			conn  ports.PooledConnection
			cerr  error
			codec ports.Codec
		)
		if key.Protocol == "h2" || key.Protocol == "h2c" {
			conn, cerr = h2Pool.Acquire(rc, key)
			codec = h2Codec
		} else {
			conn, cerr = h1Pool.Acquire(rc, key)
			codec = h1Codec
		}
		if cerr != nil {
			return domain.HttpObject{}, domain.NewPipelineError(domain.KindPeerError, "connection-acquire", ep.Key(), 0, cerr)
		}

		resp, err := codec.Exchange(rc, conn, req)
		keepAlive := err == nil && resp.Headers != nil && resp.Headers.Get("connection") != "close"
		if key.Protocol == "h2" || key.Protocol == "h2c" {
			h2Pool.Release(conn, keepAlive)
		} else {
			h1Pool.Release(conn, keepAlive)
		}
		return resp, err
	})

	limiter, err := buildRetryLimiter(cfg.Retry.Limiter)
	if err != nil {
		return nil, err
	}

	backoff := decorator.ExponentialBackoff{
		Initial: time.Duration(cfg.Retry.Backoff.InitialMs) * time.Millisecond,
		Max:     time.Duration(cfg.Retry.Backoff.MaxMs) * time.Millisecond,
		Factor:  cfg.Retry.Backoff.Multiplier,
		Jitter:  time.Duration(cfg.Retry.Backoff.Jitter * float64(time.Second)),
	}

	chain := ports.ChainClient(
		decorator.Decoding(decorator.DecodingConfig{Strict: false}),
		decorator.Retry(decorator.RetryConfig{
			MaxAttempts: cfg.Retry.MaxTotalAttempts,
			Backoff:     backoff,
			Limiter:     limiter,
		}),
	)
	return chain(base), nil
}

func protocolFor(cfg *config.Config) string {
	if cfg.ClientFactory.UseHTTP2Preface {
		return "h2c"
	}
	return "h1"
}

func buildRetryLimiter(cfg config.LimiterConfig) (ports.RetryLimiter, error) {
	switch cfg.Kind {
	case "", "fixed-rate":
		return retry.NewFixedRateLimiter(cfg.FixedRate.RatePerSecond), nil
	case "grpc-adaptive":
		return retry.NewGrpcAdaptiveLimiter(retry.GrpcAdaptiveLimiterConfig{
			MaxTokens:         int(cfg.GrpcAdapt.MaxTokens),
			Threshold:         int(cfg.GrpcAdapt.Threshold),
			TokenRatio:        int(cfg.GrpcAdapt.TokenRatio),
			RetryableStatuses: cfg.GrpcAdapt.RetryableGrpcStatuses,
		})
	default:
		return nil, fmt.Errorf("unknown retry limiter kind %q", cfg.Kind)
	}
}

// buildEndpointGroup constructs the endpoint group from the
// discovery config: a Static group for "static" discovery, or a Dynamic
// group fed by a background DNS refresher for "dns" discovery. Either
// is wrapped in HealthChecked when at least one endpoint carries a
// health-check URL.
func buildEndpointGroup(cfg *config.Config, log *logger.StyledLogger) (ports.EndpointGroup, *endpoint.HealthChecked, *eventbus.EventBus[EndpointHealthEvent], *dnsDiscoveryRefresher, error) {
	strategy, err := strategyFor(cfg.EndpointGroup.SelectionStrategy)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	endpoints, err := endpointsFromStatic(cfg.Discovery.Static)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var (
		group     ports.EndpointGroup
		refresher *dnsDiscoveryRefresher
	)

	switch cfg.Discovery.Type {
	case "", "static":
		group = endpoint.NewStatic(endpoints, strategy)
	case "dns":
		dyn := endpoint.NewDynamic(strategy, cfg.EndpointGroup.SelectionTimeout())
		dyn.Update(endpoints)
		refresher = newDNSDiscoveryRefresher(cfg, dyn, log)
		group = dyn
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown discovery type %q", cfg.Discovery.Type)
	}

	events := eventbus.New[EndpointHealthEvent]()

	hasProbe := false
	for _, ep := range cfg.Discovery.Static.Endpoints {
		if ep.HealthCheckURL != "" {
			hasProbe = true
			break
		}
	}
	if !hasProbe {
		return group, nil, events, refresher, nil
	}

	interval := cfg.Discovery.Static.Endpoints[0].CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := cfg.Discovery.Static.Endpoints[0].CheckTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc := endpoint.NewHealthChecked(group, strategy, newHTTPHealthProbe(timeout), interval, timeout, 4)
	hc.OnStatusChange(func(ep *domain.Endpoint, status domain.EndpointStatus) {
		latencyMs := int64(0)
		if d, ok := hc.LastLatencyFor(ep); ok {
			latencyMs = d.Milliseconds()
		}
		log.InfoHealthStatus("endpoint health changed", ep.Name, status, "latency", format.Latency(latencyMs))
		events.PublishAsync(EndpointHealthEvent{Endpoint: ep, Status: status, At: time.Now()})

		if next, backedOff := hc.NextCheckFor(ep); backedOff {
			log.WarnWithEndpoint("endpoint backed off, next probe "+format.TimeUntil(next), ep.Name)
		}

		healthy, unhealthy, unknown := hc.HealthSummary()
		total := healthy + unhealthy + unknown
		pct := 0.0
		if total > 0 {
			pct = float64(healthy) / float64(total) * 100
		}
		log.InfoWithHealthStats("endpoint group health",
			healthy, unhealthy, unknown,
			"up", format.EndpointsUp(healthy, total),
			"healthy_pct", format.Percentage(pct),
		)
	})
	return hc, hc, events, refresher, nil
}

func strategyFor(name string) (ports.SelectionStrategy, error) {
	switch name {
	case "", "round-robin":
		return &endpoint.RoundRobinStrategy{}, nil
	case "weighted-round-robin":
		return &endpoint.WeightedRoundRobinStrategy{}, nil
	case "ramp-up":
		return endpoint.NewRampUpStrategy(10), nil
	default:
		return nil, fmt.Errorf("unknown selection_strategy %q", name)
	}
}

func endpointsFromStatic(cfg config.StaticDiscoveryConfig) ([]*domain.Endpoint, error) {
	out := make([]*domain.Endpoint, 0, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		host, portStr, err := net.SplitHostPort(stripScheme(e.URL))
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", e.Name, err)
		}
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return nil, fmt.Errorf("endpoint %q: bad port %q", e.Name, portStr)
		}
		ep := domain.NewEndpoint(host, port)
		ep.Name = e.Name
		if e.Weight > 0 {
			ep.Weight = e.Weight
		}
		if e.HealthCheckURL != "" {
			ep.Attributes["health_check_url"] = e.HealthCheckURL
		}
		out = append(out, ep)
	}
	return out, nil
}

func stripScheme(url string) string {
	for _, prefix := range []string{"http://", "https://"} {
		if len(url) > len(prefix) && url[:len(prefix)] == prefix {
			return url[len(prefix):]
		}
	}
	return url
}

// dialHTTP1 opens a TCP connection and wraps it as an http1.Conn; a
// pooled dialer keyed purely by authority since the pool itself handles
// reuse.
func dialHTTP1(rc *domain.RequestContext, key ports.ConnectionKey) (ports.PooledConnection, error) {
	raw, err := net.Dial("tcp", key.Authority)
	if err != nil {
		return nil, err
	}
	return http1.NewConn(key, raw), nil
}

// dialHTTP2 returns a Dialer that opens a plaintext h2c connection and
// wraps it via h2.NewConn. TLS-negotiated h2 (tls_provider beyond
// "system") is left for a future ALPN-aware dialer.
func dialHTTP2(cfg *config.Config) http1.Dialer {
	transport := &http2.Transport{AllowHTTP: true}
	return func(rc *domain.RequestContext, key ports.ConnectionKey) (ports.PooledConnection, error) {
		raw, err := net.Dial("tcp", key.Authority)
		if err != nil {
			return nil, err
		}
		return h2.NewConn(key, raw, transport)
	}
}

// dnsResolverFor builds a resolver from cfg.DNS, used by the discovery
// refresher for periodic re-resolution of dynamic endpoints.
func dnsResolverFor(cfg *config.Config) *dns.Resolver {
	server := "127.0.0.53:53"
	if len(cfg.DNS.NameServers) > 0 {
		server = cfg.DNS.NameServers[0]
	}
	client := dns.NewClient(server, cfg.DNS.QueryTimeout())
	cache := dns.NewCache(30 * time.Second)
	return dns.NewResolver(client, cache, cfg.DNS.SearchDomains, cfg.DNS.Ndots)
}

