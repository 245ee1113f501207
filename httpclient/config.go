package httpclient

import (
	"fmt"
	"net/url"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/resilience"
)

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the base URL prepended to all request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// AttemptTimeout bounds every single attempt. Defaults to 30s.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`
	// MaxAttempts includes the first try. Defaults to 3.
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Jitter         float64       `yaml:"jitter" mapstructure:"jitter"`
	// RateLimitDelay is the wait after a 429 without Retry-After.
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" mapstructure:"rate_limit_delay"`
	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	Race    RaceConfig    `yaml:"race" mapstructure:"race"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
	Prewarm PrewarmConfig `yaml:"prewarm" mapstructure:"prewarm"`

	// Auth is applied to every request. Set by the owning backend.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`
}

// RaceConfig controls racing of requests marked Race.
type RaceConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Stagger delays each additional path. Defaults to 150ms.
	Stagger time.Duration `yaml:"stagger" mapstructure:"stagger"`
	// Curl adds a curl subprocess path when the binary is available.
	Curl       bool   `yaml:"curl" mapstructure:"curl"`
	CurlBinary string `yaml:"curl_binary" mapstructure:"curl_binary"`
}

// BreakerConfig configures the per-path circuit breakers.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures" mapstructure:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
}

// PrewarmConfig throttles connection pre-warming.
type PrewarmConfig struct {
	// Rate is pre-warms per second. Defaults to 0.2 (one every 5s).
	Rate    float64       `yaml:"rate" mapstructure:"rate"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.Jitter == 0 {
		c.Jitter = 0.2
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = time.Second
	}
	if c.Race.Stagger <= 0 {
		c.Race.Stagger = 150 * time.Millisecond
	}
	if c.Race.CurlBinary == "" {
		c.Race.CurlBinary = "curl"
	}
	if c.Breaker.MaxFailures <= 0 {
		c.Breaker.MaxFailures = 3
	}
	if c.Breaker.Cooldown <= 0 {
		c.Breaker.Cooldown = 30 * time.Second
	}
	if c.Prewarm.Rate <= 0 {
		c.Prewarm.Rate = 0.2
	}
	if c.Prewarm.Timeout <= 0 {
		c.Prewarm.Timeout = 5 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return apperrors.InvalidEndpoint(c.BaseURL, err.Error())
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return apperrors.InvalidEndpoint(c.BaseURL, "scheme must be http or https")
		}
		if u.Host == "" {
			return apperrors.InvalidEndpoint(c.BaseURL, "missing host")
		}
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("httpclient: attempt_timeout must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("httpclient: max_attempts must be at least 1")
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("httpclient: jitter must be between 0 and 1")
	}
	return nil
}

// retryConfig builds the retry policy: retryable errors only, with 429
// waits taken from Retry-After or RateLimitDelay.
func (c *Config) retryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		BackoffFactor:  2.0,
		Jitter:         c.Jitter,
		RetryIf:        IsRetryable,
		DelayFor: func(_ int, err error) (time.Duration, bool) {
			if !IsRateLimit(err) {
				return 0, false
			}
			var e *Error
			if asError(err, &e) && e.RetryAfter > 0 {
				return e.RetryAfter, true
			}
			return c.RateLimitDelay, true
		},
	}
}
