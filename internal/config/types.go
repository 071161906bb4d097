package config

import "time"

// Config holds all configuration for the pipeline runtime. Each block
// mirrors a section of the config surface: Server/Logging/Engineering are
// ambient concerns; RequestOptions through GrpcRetryLimiter are the
// pipeline-specific surface.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Engineering EngineeringConfig `yaml:"engineering"`
	Server      ServerConfig      `yaml:"server"`

	Discovery DiscoveryConfig `yaml:"discovery"`

	RequestOptions   RequestOptionsConfig   `yaml:"request_options"`
	ClientFactory    ClientFactoryConfig    `yaml:"client_factory"`
	Retry            RetryConfig           `yaml:"retry"`
	CircuitBreaker   CircuitBreakerConfig   `yaml:"circuit_breaker"`
	Auth             AuthConfig             `yaml:"auth"`
	Preview          PreviewConfig          `yaml:"preview"`
	DNS              DNSConfig              `yaml:"dns"`
	EndpointGroup    EndpointGroupConfig    `yaml:"endpoint_group"`
	GrpcRetryLimiter GrpcRetryLimiterConfig `yaml:"grpc_retry_limiter"`
}

// ServerConfig holds HTTP server listener configuration.
type ServerConfig struct {
	Host            string              `yaml:"host"`
	Port            int                 `yaml:"port"`
	ReadTimeout     time.Duration       `yaml:"read_timeout"`
	WriteTimeout    time.Duration       `yaml:"write_timeout"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout"`
	RequestLimits   ServerRequestLimits `yaml:"request_limits"`
	RateLimits      ServerRateLimits    `yaml:"rate_limits"`
}

// ServerRequestLimits defines request size limits enforced before a
// request reaches the decorator chain.
type ServerRequestLimits struct {
	MaxBodySize   int64 `yaml:"max_body_size"`
	MaxHeaderSize int64 `yaml:"max_header_size"`
}

// ServerRateLimits defines the server's own inbound rate limiting,
// independent of the pipeline's retry/circuit-breaker limiters.
type ServerRateLimits struct {
	GlobalRequestsPerMinute int           `yaml:"global_requests_per_minute"`
	PerIPRequestsPerMinute  int           `yaml:"per_ip_requests_per_minute"`
	BurstSize               int           `yaml:"burst_size"`
	HealthRequestsPerMinute int           `yaml:"health_requests_per_minute"`
	CleanupInterval         time.Duration `yaml:"cleanup_interval"`
	TrustProxyHeaders       bool          `yaml:"trust_proxy_headers"`
	TrustedProxyCIDRs       []string      `yaml:"trusted_proxy_cidrs"`
}

// LoggingConfig configures the slog + pterm + lumberjack fan-out.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EngineeringConfig holds development/debugging toggles.
type EngineeringConfig struct {
	ShowNerdStats bool `yaml:"show_nerdstats"`
}

// DiscoveryConfig configures how endpoints are discovered and fed into
// the endpoint-group layer.
type DiscoveryConfig struct {
	Type            string                `yaml:"type"` // "static" or "dns"
	RefreshInterval time.Duration         `yaml:"refresh_interval"`
	Static          StaticDiscoveryConfig `yaml:"static"`
}

// StaticDiscoveryConfig lists a fixed endpoint set, the backing data for
// a StaticEndpointGroup or the seed set of a DynamicEndpointGroup.
type StaticDiscoveryConfig struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig describes one upstream endpoint and its health-check
// wiring.
type EndpointConfig struct {
	Name           string        `yaml:"name"`
	URL            string        `yaml:"url"`
	Weight         int           `yaml:"weight"`
	HealthCheckURL string        `yaml:"health_check_url"`
	CheckInterval  time.Duration `yaml:"check_interval"`
	CheckTimeout   time.Duration `yaml:"check_timeout"`
}

// RequestOptionsConfig is the `request_options` configuration block.
// Fields are named _ms on the wire because that is the config surface's
// literal naming; ResponseTimeout()/WriteTimeout()/AttemptTimeout()
// convert to time.Duration for internal use.
type RequestOptionsConfig struct {
	ResponseTimeoutMs int64 `yaml:"response_timeout_ms"`
	MaxResponseLength int64 `yaml:"max_response_length"`
	WriteTimeoutMs    int64 `yaml:"write_timeout_ms"`
	AttemptTimeoutMs  int64 `yaml:"attempt_timeout_ms"`
}

func (r RequestOptionsConfig) ResponseTimeout() time.Duration {
	return time.Duration(r.ResponseTimeoutMs) * time.Millisecond
}
func (r RequestOptionsConfig) WriteTimeout() time.Duration {
	return time.Duration(r.WriteTimeoutMs) * time.Millisecond
}
func (r RequestOptionsConfig) AttemptTimeout() time.Duration {
	return time.Duration(r.AttemptTimeoutMs) * time.Millisecond
}

// ClientFactoryConfig is the `client_factory` configuration block.
type ClientFactoryConfig struct {
	ConnectTimeoutMs                int64  `yaml:"connect_timeout_ms"`
	IdleTimeoutMs                   int64  `yaml:"idle_timeout_ms"`
	HTTP2InitialWindowSize          int32  `yaml:"http2_initial_window_size"`
	HTTP2InitialConnectionWindow    int32  `yaml:"http2_initial_connection_window"`
	UseHTTP2Preface                 bool   `yaml:"use_http2_preface"`
	TLSProvider                     string `yaml:"tls_provider"`
	AddressResolver                 string `yaml:"address_resolver"`
	ConnectionPoolListener          string `yaml:"connection_pool_listener"`
}

func (c ClientFactoryConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}
func (c ClientFactoryConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// RetryConfig is the `retry` configuration block.
type RetryConfig struct {
	MaxTotalAttempts           int           `yaml:"max_total_attempts"`
	Backoff                    BackoffConfig `yaml:"backoff"`
	ResponseTimeoutPerAttempt  int64         `yaml:"response_timeout_per_attempt_ms"`
	Rule                       string        `yaml:"rule"`
	Limiter                    LimiterConfig `yaml:"limiter"`
}

func (r RetryConfig) ResponseTimeoutPerAttemptDuration() time.Duration {
	return time.Duration(r.ResponseTimeoutPerAttempt) * time.Millisecond
}

// BackoffConfig parameterizes exponential backoff with jitter.
type BackoffConfig struct {
	InitialMs  int64   `yaml:"initial_ms"`
	MaxMs      int64   `yaml:"max_ms"`
	Multiplier float64 `yaml:"multiplier"`
	Jitter     float64 `yaml:"jitter"`
}

// LimiterConfig selects and parameterizes one retry limiter
// implementation: either a fixed-rate token bucket or the gRPC adaptive
// limiter.
type LimiterConfig struct {
	Kind        string                 `yaml:"kind"` // "fixed-rate" or "grpc-adaptive"
	FixedRate   FixedRateLimiterConfig `yaml:"fixed_rate"`
	GrpcAdapt   GrpcRetryLimiterConfig `yaml:"grpc_adaptive"`
}

type FixedRateLimiterConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// CircuitBreakerConfig is the `circuit_breaker` configuration block.
type CircuitBreakerConfig struct {
	Rule           string        `yaml:"rule"`
	Ticker         time.Duration `yaml:"ticker"`
	Window         time.Duration `yaml:"window"`
	ThresholdRatio float64       `yaml:"threshold_ratio"`
	MinRequests    int           `yaml:"min_requests"`
	OpenDurationMs int64         `yaml:"open_duration_ms"`
}

func (c CircuitBreakerConfig) OpenDuration() time.Duration {
	return time.Duration(c.OpenDurationMs) * time.Millisecond
}

// AuthConfig is the `auth` configuration block.
type AuthConfig struct {
	Authorizers []string `yaml:"authorizers"`
	OnSuccess   string   `yaml:"on_success"`
	OnFailure   string   `yaml:"on_failure"`
}

// PreviewConfig is the `preview` configuration block.
type PreviewConfig struct {
	MaxLength      int    `yaml:"max_length"`
	DefaultCharset string `yaml:"default_charset"`
	MediaPredicate string `yaml:"media_predicate"`
	Sanitizer      string `yaml:"sanitizer"`
}

// DNSConfig is the `dns` configuration block.
type DNSConfig struct {
	SearchDomains  []string `yaml:"search_domains"`
	Ndots          int      `yaml:"ndots"`
	QueryTimeoutMs int64    `yaml:"query_timeout_ms"`
	NameServers    []string `yaml:"name_servers"`
}

func (d DNSConfig) QueryTimeout() time.Duration {
	return time.Duration(d.QueryTimeoutMs) * time.Millisecond
}

// EndpointGroupConfig is the `endpoint_group` configuration block.
type EndpointGroupConfig struct {
	SelectionStrategy        string `yaml:"selection_strategy"`
	SelectionTimeoutMs       int64  `yaml:"selection_timeout_ms"`
	SteadySelectionTimeoutMs int64  `yaml:"steady_selection_timeout_ms"`
}

func (e EndpointGroupConfig) SelectionTimeout() time.Duration {
	return time.Duration(e.SelectionTimeoutMs) * time.Millisecond
}
func (e EndpointGroupConfig) SteadySelectionTimeout() time.Duration {
	if e.SteadySelectionTimeoutMs == 0 {
		return e.SelectionTimeout()
	}
	return time.Duration(e.SteadySelectionTimeoutMs) * time.Millisecond
}

// GrpcRetryLimiterConfig is the `grpc_retry_limiter` configuration block,
// also reused as the nested shape of RetryConfig.Limiter.GrpcAdapt.
type GrpcRetryLimiterConfig struct {
	MaxTokens              int64    `yaml:"max_tokens"`
	TokenRatio             int64    `yaml:"token_ratio"`
	Threshold              int64    `yaml:"threshold"`
	RetryableGrpcStatuses  []string `yaml:"retryable_grpc_statuses"`
}
