package bootstrap

import (
	"github.com/kbukum/wonderwhisper/cache"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/observability"
	"github.com/kbukum/wonderwhisper/transcription"
	"github.com/kbukum/wonderwhisper/transcription/chunked"
	"github.com/kbukum/wonderwhisper/transcription/realtime"
	"github.com/kbukum/wonderwhisper/transcription/upload"
)

// Realtime protocols registered as backends.
var realtimeIDs = []string{"assemblyai", "deepgram"}

// NewBackendRegistry registers every backend the configuration can build:
// each upload preset, its "chunked-" variant, and the realtime protocols
// with the configured fallback handling whole files.
func NewBackendRegistry(cfg *Config, results *cache.ResultCache, metrics *observability.Metrics) *transcription.Registry {
	reg := transcription.NewRegistry()

	uploadBase := upload.Config{HTTP: cfg.Network}
	uploadOpts := []upload.Option{
		upload.WithCache(results),
		upload.WithLogger(logger.Get("upload")),
		upload.WithMetrics(metrics),
	}
	chunkedOpts := []chunked.Option{
		chunked.WithLogger(logger.Get("chunked")),
		chunked.WithMetrics(metrics),
	}

	for _, id := range upload.Presets() {
		files := upload.Factory(id, uploadBase, uploadOpts...)
		reg.Register(id, files)
		reg.Register("chunked-"+id, chunked.Factory(files, cfg.Chunked, chunkedOpts...))
	}

	realtimeBase := realtime.Config{
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		FinalizeTimeout:  cfg.Realtime.FinalizeTimeout,
		MinConfidence:    cfg.Realtime.MinConfidence,
	}
	fb := cfg.Backend.Fallback
	fallback := func() (transcription.Backend, error) {
		return reg.Create(fb.ID, transcription.Settings{
			Model:   fb.Model,
			BaseURL: fb.BaseURL,
			APIKey:  fb.APIKey,
		})
	}
	for _, id := range realtimeIDs {
		reg.Register(id, realtime.Factory(id, realtimeBase, fallback,
			realtime.WithLogger(logger.Get("realtime"))))
	}
	return reg
}

// Settings converts the backend section into factory settings.
func (c BackendConfig) Settings() transcription.Settings {
	return transcription.Settings{
		Model:    c.Model,
		Language: c.Language,
		BaseURL:  c.BaseURL,
		APIKey:   c.APIKey,
		Prompt:   c.Prompt,
		Timeout:  c.Timeout,
	}
}
