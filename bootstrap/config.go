package bootstrap

import (
	"fmt"
	"time"

	"github.com/kbukum/wonderwhisper/cache"
	"github.com/kbukum/wonderwhisper/cache/redistier"
	"github.com/kbukum/wonderwhisper/config"
	"github.com/kbukum/wonderwhisper/dictation"
	"github.com/kbukum/wonderwhisper/httpclient"
	"github.com/kbukum/wonderwhisper/observability"
	"github.com/kbukum/wonderwhisper/rewrite"
	"github.com/kbukum/wonderwhisper/transcription/chunked"
	"github.com/kbukum/wonderwhisper/transcription/upload"
	"github.com/kbukum/wonderwhisper/validation"
)

// Config is the complete application configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Backend   BackendConfig        `yaml:"backend" mapstructure:"backend"`
	Network   httpclient.Config    `yaml:"network" mapstructure:"network"`
	Chunked   chunked.Config       `yaml:"chunked" mapstructure:"chunked"`
	Realtime  RealtimeConfig       `yaml:"realtime" mapstructure:"realtime"`
	Cache     CacheConfig          `yaml:"cache" mapstructure:"cache"`
	Dictation dictation.Config     `yaml:"dictation" mapstructure:"dictation"`
	Rewrite   rewrite.Config       `yaml:"rewrite" mapstructure:"rewrite"`
	Metrics   observability.Config `yaml:"metrics" mapstructure:"metrics"`
}

// BackendConfig selects the transcription backend.
type BackendConfig struct {
	// ID is a registered backend id, e.g. "openai", "deepgram", "chunked-groq".
	ID       string        `yaml:"id" mapstructure:"id" validate:"required"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Language string        `yaml:"language" mapstructure:"language"`
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	APIKey   string        `yaml:"-" mapstructure:"api_key"`
	Prompt   string        `yaml:"prompt" mapstructure:"prompt"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// Fallback transcribes whole files for realtime backends.
	Fallback FallbackConfig `yaml:"fallback" mapstructure:"fallback"`
}

// FallbackConfig names the file-upload backend behind a realtime backend.
type FallbackConfig struct {
	ID      string `yaml:"id" mapstructure:"id"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	APIKey  string `yaml:"-" mapstructure:"api_key"`
}

// RealtimeConfig holds the shared realtime-socket settings.
type RealtimeConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout" validate:"gte=0"`
	FinalizeTimeout  time.Duration `yaml:"finalize_timeout" mapstructure:"finalize_timeout" validate:"gte=0"`
	MinConfidence    float64       `yaml:"min_confidence" mapstructure:"min_confidence" validate:"gte=0,lte=1"`
}

// CacheConfig is the local cache plus the optional redis tier.
type CacheConfig struct {
	cache.Config `yaml:",inline" mapstructure:",squash"`
	Redis        redistier.Config `yaml:"redis" mapstructure:"redis"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Backend.ID == "" {
		c.Backend.ID = "openai"
	}
	if c.Backend.Fallback.ID == "" {
		c.Backend.Fallback.ID = "openai"
	}
	c.Network.ApplyDefaults()
	c.Chunked.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Cache.Redis.ApplyDefaults()
	c.Dictation.ApplyDefaults()
	c.Metrics.ApplyDefaults()
	if c.Rewrite.Enabled {
		c.Rewrite.ApplyDefaults()
	}
}

// Validate checks struct tags and then each section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if _, ok := upload.PresetFor(c.Backend.Fallback.ID); !ok {
		return fmt.Errorf("backend.fallback.id: %q is not a file-upload backend (have %v)",
			c.Backend.Fallback.ID, upload.Presets())
	}
	checks := []struct {
		name string
		fn   func() error
	}{
		{"network", c.Network.Validate},
		{"chunked", c.Chunked.Validate},
		{"cache", c.Cache.Validate},
		{"cache.redis", c.Cache.Redis.Validate},
		{"metrics", c.Metrics.Validate},
	}
	if c.Rewrite.Enabled {
		checks = append(checks, struct {
			name string
			fn   func() error
		}{"rewrite", c.Rewrite.Validate})
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}
