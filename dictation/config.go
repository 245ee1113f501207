package dictation

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the orchestrator.
type Config struct {
	// PostProcessing enables the rewrite pass when one is set.
	PostProcessing bool `yaml:"post_processing" mapstructure:"post_processing"`
	// RecordingsDir receives one WAV file per session.
	RecordingsDir string `yaml:"recordings_dir" mapstructure:"recordings_dir"`
	// ContextTimeout bounds screen-context capture.
	ContextTimeout time.Duration  `yaml:"context_timeout" mapstructure:"context_timeout"`
	Substitutions  []Substitution `yaml:"substitutions" mapstructure:"substitutions" validate:"dive"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.RecordingsDir == "" {
		c.RecordingsDir = filepath.Join(os.TempDir(), "wonderwhisper", "recordings")
	}
	if c.ContextTimeout <= 0 {
		c.ContextTimeout = 750 * time.Millisecond
	}
}
