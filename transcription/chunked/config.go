package chunked

import (
	"time"

	"github.com/kbukum/wonderwhisper/audio"
	apperrors "github.com/kbukum/wonderwhisper/errors"
)

// Config holds configuration for the chunked-stream backend.
type Config struct {
	// ID names the backend. Defaults to "chunked-" + the upload backend id.
	ID string `yaml:"id" mapstructure:"id"`
	// ChunkDuration is the audio window per upload.
	ChunkDuration time.Duration `yaml:"chunk_duration" mapstructure:"chunk_duration"`
	// MaxConcurrentUploads caps in-flight uploads per session.
	MaxConcurrentUploads int `yaml:"max_concurrent_uploads" mapstructure:"max_concurrent_uploads"`
	// MinFinalChunkBytes is the smallest trailing remainder worth uploading.
	MinFinalChunkBytes int `yaml:"min_final_chunk_bytes" mapstructure:"min_final_chunk_bytes"`
	// DrainTimeout bounds the wait for in-flight uploads at End.
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout"`
	// ContextHintWords is the number of trailing words passed as prompt.
	// Negative disables the hint.
	ContextHintWords int `yaml:"context_hint_words" mapstructure:"context_hint_words"`

	Merge MergeOptions `yaml:"merge" mapstructure:"merge"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = 800 * time.Millisecond
	}
	if c.MaxConcurrentUploads <= 0 {
		c.MaxConcurrentUploads = 3
	}
	if c.MinFinalChunkBytes <= 0 {
		c.MinFinalChunkBytes = 8000
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 3 * time.Second
	}
	if c.ContextHintWords == 0 {
		c.ContextHintWords = 12
	}
	c.Merge.ApplyDefaults()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if audio.BytesFor(c.ChunkDuration) < c.MinFinalChunkBytes {
		return apperrors.InvalidInput("chunk_duration", "window is smaller than min_final_chunk_bytes")
	}
	return c.Merge.Validate()
}

// WindowBytes returns the byte size of one full window.
func (c Config) WindowBytes() int {
	return audio.BytesFor(c.ChunkDuration)
}
