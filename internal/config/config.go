package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	pkgconfig "github.com/pbengoa/Tourline-front-sub001/pkg/config"
)

// Config holds all configuration for the Tourline agent.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"TOURLINE_HTTP_PORT" envDefault:"8088"`

	// Backend
	APIBaseURL     string        `env:"TOURLINE_API_BASE_URL" envDefault:"http://localhost:3000/api"`
	APITimeout     time.Duration `env:"TOURLINE_API_TIMEOUT" envDefault:"10s"`
	MaxRetries     int           `env:"TOURLINE_API_MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"TOURLINE_API_RETRY_BASE_DELAY" envDefault:"1s"`

	// Circuit breaker
	BreakerEnabled      bool          `env:"TOURLINE_BREAKER_ENABLED" envDefault:"true"`
	BreakerTimeout      time.Duration `env:"TOURLINE_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerMinRequests  uint32        `env:"TOURLINE_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerFailureRatio float64       `env:"TOURLINE_BREAKER_FAILURE_RATIO" envDefault:"0.5"`

	// Credential storage; the in-memory store is used when Redis is disabled.
	RedisEnabled   bool          `env:"TOURLINE_REDIS_ENABLED" envDefault:"false"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass      string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string        `env:"TOURLINE_REDIS_KEY_PREFIX" envDefault:"tourline:"`
	RedisSlowLog   time.Duration `env:"TOURLINE_REDIS_SLOW_THRESHOLD" envDefault:"100ms"`

	// Session
	KeepSessionWhenOffline bool          `env:"TOURLINE_KEEP_SESSION_OFFLINE" envDefault:"false"`
	BootstrapTimeout       time.Duration `env:"TOURLINE_BOOTSTRAP_TIMEOUT" envDefault:"30s"`

	// Reachability probe. An empty URL probes the backend base URL.
	ProbeURL            string        `env:"TOURLINE_PROBE_URL"`
	ProbeInterval       time.Duration `env:"TOURLINE_PROBE_INTERVAL" envDefault:"15s"`
	ProbeTimeout        time.Duration `env:"TOURLINE_PROBE_TIMEOUT" envDefault:"3s"`
	ProbeConnectionType string        `env:"TOURLINE_CONNECTION_TYPE" envDefault:"ethernet"`

	// Rate limiting
	RateLimitRPS   float64 `env:"TOURLINE_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"TOURLINE_RATE_LIMIT_BURST" envDefault:"40"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from TOURLINE_ENV_FILE, when set, and the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithFile(os.Getenv("TOURLINE_ENV_FILE"), cfg); err != nil {
		return nil, fmt.Errorf("load agent config: %w", err)
	}
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = cfg.APIBaseURL
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if err := absoluteURL("TOURLINE_API_BASE_URL", c.APIBaseURL); err != nil {
		return err
	}
	if err := absoluteURL("TOURLINE_PROBE_URL", c.ProbeURL); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("TOURLINE_API_MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("TOURLINE_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive, got %v rps burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	return nil
}

func absoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}
