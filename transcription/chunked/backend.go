// Package chunked implements the chunked-stream backend for providers
// without a native realtime socket. Audio is cut into fixed windows while
// recording, each window is uploaded as its own WAV request, and the
// per-window transcripts are merged in sequence order at the end.
package chunked

import (
	"context"
	"fmt"

	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/observability"
	"github.com/kbukum/wonderwhisper/transcription"
)

// Uploader transcribes in-memory WAV payloads. *upload.Backend satisfies it.
type Uploader interface {
	transcription.Backend
	TranscribeWAV(ctx context.Context, wav []byte, prompt string) (string, error)
}

// Backend streams by repeated uploads through an Uploader.
type Backend struct {
	cfg     Config
	up      Uploader
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. Defaults to logger.Get("chunked").
func WithLogger(l *logger.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// WithMetrics records per-chunk upload outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// New creates a chunked-stream backend over up.
func New(cfg Config, up Uploader, opts ...Option) (*Backend, error) {
	if up == nil {
		return nil, apperrors.InvalidInput("uploader", "an upload backend is required")
	}
	cfg.ApplyDefaults()
	if cfg.ID == "" {
		cfg.ID = "chunked-" + up.ID()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Backend{cfg: cfg, up: up, log: logger.Get("chunked")}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Factory wraps the file-upload factory files. The backend it builds must
// also implement Uploader.
func Factory(files transcription.Factory, cfg Config, opts ...Option) transcription.Factory {
	return func(s transcription.Settings) (transcription.Backend, error) {
		fb, err := files(s)
		if err != nil {
			return nil, err
		}
		up, ok := fb.(Uploader)
		if !ok {
			return nil, apperrors.InvalidInput("backend", fmt.Sprintf("%s cannot upload chunks", fb.ID()))
		}
		return New(cfg, up, opts...)
	}
}

// ID returns the backend id.
func (b *Backend) ID() string { return b.cfg.ID }

// Kind returns KindChunkedStream.
func (b *Backend) Kind() transcription.Kind { return transcription.KindChunkedStream }

// Config returns the effective configuration.
func (b *Backend) Config() Config { return b.cfg }

// TranscribeFile delegates to the upload backend.
func (b *Backend) TranscribeFile(ctx context.Context, path string) (string, error) {
	return b.up.TranscribeFile(ctx, path)
}

// OpenStream starts a session. Uploads run on a context derived from ctx.
func (b *Backend) OpenStream(ctx context.Context) (transcription.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newSession(ctx, b), nil
}

// Prewarm warms the uploader's connections when it supports that.
func (b *Backend) Prewarm(ctx context.Context) bool {
	if p, ok := b.up.(interface{ Prewarm(context.Context) bool }); ok {
		return p.Prewarm(ctx)
	}
	return false
}

// Close releases the uploader.
func (b *Backend) Close() {
	if c, ok := b.up.(interface{ Close() }); ok {
		c.Close()
	}
}
