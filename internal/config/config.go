package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultPort = 19841
	DefaultHost = "localhost"

	DefaultFileWriteDelay = 150 * time.Millisecond // Small delay to ensure file write is complete
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults for a
// single-process pipeline runtime talking to one local endpoint.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimits: ServerRateLimits{
				GlobalRequestsPerMinute: 1000,
				PerIPRequestsPerMinute:  100,
				BurstSize:               50,
				HealthRequestsPerMinute: 1000,
				CleanupInterval:         5 * time.Minute,
				TrustedProxyCIDRs: []string{
					"127.0.0.0/8",
					"10.0.0.0/8",
					"172.16.0.0/12",
					"192.168.0.0/16",
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Discovery: DiscoveryConfig{
			Type:            "static",
			RefreshInterval: 30 * time.Second,
			Static: StaticDiscoveryConfig{
				Endpoints: []EndpointConfig{
					{
						Name:           "local",
						URL:            "http://localhost:8080",
						Weight:         100,
						HealthCheckURL: "/health",
						CheckInterval:  5 * time.Second,
						CheckTimeout:   2 * time.Second,
					},
				},
			},
		},
		RequestOptions: RequestOptionsConfig{
			ResponseTimeoutMs: 10_000,
			MaxResponseLength: 10 << 20, // 10MB
			WriteTimeoutMs:    10_000,
			AttemptTimeoutMs:  0, // 0 = no per-attempt ceiling beyond response_timeout_ms
		},
		ClientFactory: ClientFactoryConfig{
			ConnectTimeoutMs:             3_000,
			IdleTimeoutMs:                30_000,
			HTTP2InitialWindowSize:       1 << 20,
			HTTP2InitialConnectionWindow: 1 << 20,
			UseHTTP2Preface:              false,
			TLSProvider:                  "system",
			AddressResolver:              "dns",
		},
		Retry: RetryConfig{
			MaxTotalAttempts: 3,
			Backoff: BackoffConfig{
				InitialMs:  200,
				MaxMs:      2_000,
				Multiplier: 2.0,
				Jitter:     0.2,
			},
			ResponseTimeoutPerAttempt: 5_000,
			Rule:                      "server-error-or-timeout",
			Limiter: LimiterConfig{
				Kind:      "fixed-rate",
				FixedRate: FixedRateLimiterConfig{RatePerSecond: 10},
			},
		},
		CircuitBreaker: CircuitBreakerConfig{
			Rule:           "server-error-or-timeout",
			Ticker:         1 * time.Second,
			Window:         10 * time.Second,
			ThresholdRatio: 0.5,
			MinRequests:    10,
			OpenDurationMs: 30_000,
		},
		Preview: PreviewConfig{
			MaxLength:      1024,
			DefaultCharset: "utf-8",
			MediaPredicate: "text-or-json",
			Sanitizer:      "none",
		},
		DNS: DNSConfig{
			Ndots:          1,
			QueryTimeoutMs: 2_000,
			NameServers:    []string{"127.0.0.53:53"},
		},
		EndpointGroup: EndpointGroupConfig{
			SelectionStrategy:  "round-robin",
			SelectionTimeoutMs: 5_000,
		},
		GrpcRetryLimiter: GrpcRetryLimiterConfig{
			MaxTokens:             100,
			TokenRatio:            10,
			Threshold:             50,
			RetryableGrpcStatuses: []string{"UNAVAILABLE", "DEADLINE_EXCEEDED"},
		},
	}
}

// Load loads configuration from file and environment variables, laying
// them over DefaultConfig. onConfigChange, if non-nil, is invoked after a
// debounced file-watch reload.
func Load(onConfigChange func()) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("OLLA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("OLLA_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return // Ignore rapid-fire duplicate events
			}
			lastReload = now

			// on some platforms this event fires before the file is
			// fully written
			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return cfg, nil
}

// Validate rejects configurations that would misbehave at runtime rather
// than fail fast at startup.
func (c *Config) Validate() error {
	if c.Discovery.Type == "" {
		return fmt.Errorf("discovery.type must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.EndpointGroup.SelectionStrategy == "" {
		return fmt.Errorf("endpoint_group.selection_strategy must not be empty")
	}
	if c.Retry.MaxTotalAttempts < 1 {
		return fmt.Errorf("retry.max_total_attempts must be at least 1, got %d", c.Retry.MaxTotalAttempts)
	}
	if c.CircuitBreaker.MinRequests < 0 {
		return fmt.Errorf("circuit_breaker.min_requests must be non-negative")
	}
	if c.CircuitBreaker.ThresholdRatio < 0 || c.CircuitBreaker.ThresholdRatio > 1 {
		return fmt.Errorf("circuit_breaker.threshold_ratio must be between 0 and 1, got %f", c.CircuitBreaker.ThresholdRatio)
	}
	if c.DNS.Ndots < 0 {
		return fmt.Errorf("dns.ndots must be non-negative")
	}
	switch c.Retry.Limiter.Kind {
	case "", "fixed-rate", "grpc-adaptive":
	default:
		return fmt.Errorf("retry.limiter.kind must be one of fixed-rate, grpc-adaptive, got %q", c.Retry.Limiter.Kind)
	}
	return nil
}

// parseByteSize parses a human-readable byte size such as "100MB" via
// viper.SizeInBytes. Load does not call it.
func parseByteSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	n := viper.SizeInBytes(s)
	if n == 0 && strings.TrimSpace(s) != "0" {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return int64(n), nil
}
