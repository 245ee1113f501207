package upload

import (
	"fmt"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/httpclient"
)

// Config holds configuration for a file-upload backend.
type Config struct {
	// ID selects a preset and names the backend in cache keys.
	ID       string `yaml:"id" mapstructure:"id"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Path     string `yaml:"path" mapstructure:"path"`
	Model    string `yaml:"model" mapstructure:"model"`
	Language string `yaml:"language" mapstructure:"language"`
	// Prompt biases the recognizer toward expected vocabulary.
	Prompt      string  `yaml:"prompt" mapstructure:"prompt"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	// ResponseFormat is sent as response_format. Defaults to "json".
	ResponseFormat string `yaml:"response_format" mapstructure:"response_format"`
	APIKey         string `yaml:"-" mapstructure:"api_key"`
	// NeedsKey is taken from the preset when ID names one.
	NeedsKey bool `yaml:"-" mapstructure:"-"`

	HTTP httpclient.Config `yaml:"http" mapstructure:"http"`
}

// ApplyDefaults fills unset fields from the preset named by ID.
func (c *Config) ApplyDefaults() {
	if p, ok := PresetFor(c.ID); ok {
		if c.BaseURL == "" {
			c.BaseURL = p.BaseURL
		}
		if c.Path == "" {
			c.Path = p.Path
		}
		if c.Model == "" {
			c.Model = p.Model
		}
		c.NeedsKey = c.NeedsKey || p.NeedsKey
	}
	if c.Path == "" {
		c.Path = "/audio/transcriptions"
	}
	if c.ResponseFormat == "" {
		c.ResponseFormat = "json"
	}
	if c.HTTP.BaseURL == "" {
		c.HTTP.BaseURL = c.BaseURL
	}
	if c.HTTP.AttemptTimeout <= 0 {
		c.HTTP.AttemptTimeout = 60 * time.Second
	}
	c.HTTP.ApplyDefaults()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ID == "" {
		return apperrors.InvalidInput("id", "backend id is required")
	}
	if c.NeedsKey && c.APIKey == "" {
		return apperrors.MissingCredential(c.ID)
	}
	if c.BaseURL == "" {
		return apperrors.InvalidEndpoint("", "base_url is required")
	}
	if c.Model == "" {
		return apperrors.InvalidInput("model", "model is required")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return apperrors.InvalidInput("temperature", fmt.Sprintf("%g is outside [0, 1]", c.Temperature))
	}
	return c.HTTP.Validate()
}
