package rewrite

import (
	"fmt"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/httpclient"
)

// DefaultSystemPrompt instructs the model to clean up dictated text.
const DefaultSystemPrompt = "You clean up dictated text. Fix punctuation, capitalization and obvious " +
	"recognition errors. Keep the speaker's wording and language. Use the screen context only to " +
	"resolve names and terms. Reply with the final text only."

// Config holds configuration for a rewrite pass.
type Config struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Dialect selects the provider mapping. Defaults to "openai".
	Dialect      string  `yaml:"dialect" mapstructure:"dialect"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Model        string  `yaml:"model" mapstructure:"model"`
	Temperature  float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt string  `yaml:"system_prompt" mapstructure:"system_prompt"`
	APIKey       string  `yaml:"-" mapstructure:"api_key"`

	HTTP httpclient.Config `yaml:"http" mapstructure:"http"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Dialect == "" {
		c.Dialect = "openai"
	}
	if c.BaseURL == "" && c.Dialect == "ollama" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.HTTP.BaseURL == "" {
		c.HTTP.BaseURL = c.BaseURL
	}
	if c.HTTP.AttemptTimeout <= 0 {
		c.HTTP.AttemptTimeout = 20 * time.Second
	}
	// Two attempts unless configured.
	if c.HTTP.MaxAttempts <= 0 {
		c.HTTP.MaxAttempts = 2
	}
	c.HTTP.ApplyDefaults()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := GetDialect(c.Dialect); err != nil {
		return apperrors.InvalidInput("dialect", err.Error())
	}
	if c.BaseURL == "" {
		return apperrors.InvalidEndpoint("", "base_url is required")
	}
	if c.Model == "" {
		return apperrors.InvalidInput("model", "model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return apperrors.InvalidInput("temperature", fmt.Sprintf("%g is outside [0, 2]", c.Temperature))
	}
	return c.HTTP.Validate()
}
