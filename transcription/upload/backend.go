// Package upload implements the file-upload backend: one multipart POST
// per recording against an OpenAI-compatible transcription endpoint,
// memoized in the result cache.
package upload

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/wonderwhisper/cache"
	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/httpclient"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/observability"
	"github.com/kbukum/wonderwhisper/transcription"
)

// Backend transcribes whole files.
type Backend struct {
	cfg     Config
	client  *httpclient.Client
	cache   *cache.ResultCache
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Backend.
type Option func(*Backend)

// WithCache memoizes TranscribeFile results.
func WithCache(c *cache.ResultCache) Option {
	return func(b *Backend) { b.cache = c }
}

// WithLogger sets the logger. Defaults to logger.Get("upload").
func WithLogger(l *logger.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// WithMetrics records network attempts made by the backend.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// New creates a file-upload backend.
func New(cfg Config, opts ...Option) (*Backend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Backend{cfg: cfg, log: logger.Get("upload")}
	for _, opt := range opts {
		opt(b)
	}

	httpCfg := cfg.HTTP
	if cfg.APIKey != "" {
		httpCfg.Auth = httpclient.BearerAuth(cfg.APIKey)
	}
	client, err := httpclient.New(httpCfg,
		httpclient.WithLogger(b.log.WithComponent("httpclient")),
		httpclient.WithMetrics(b.metrics),
	)
	if err != nil {
		return nil, err
	}
	b.client = client
	return b, nil
}

// Factory returns a transcription.Factory for preset id. Settings
// override the preset and base.
func Factory(id string, base Config, opts ...Option) transcription.Factory {
	return func(s transcription.Settings) (transcription.Backend, error) {
		return New(base.With(id, s), opts...)
	}
}

// With returns a copy of c for backend id with non-empty settings applied.
func (c Config) With(id string, s transcription.Settings) Config {
	c.ID = id
	if s.Model != "" {
		c.Model = s.Model
	}
	if s.Language != "" {
		c.Language = s.Language
	}
	if s.BaseURL != "" {
		c.BaseURL = s.BaseURL
		c.HTTP.BaseURL = ""
	}
	if s.APIKey != "" {
		c.APIKey = s.APIKey
	}
	if s.Prompt != "" {
		c.Prompt = s.Prompt
	}
	if s.Timeout > 0 {
		c.HTTP.AttemptTimeout = s.Timeout
	}
	return c
}

// ID returns the backend id.
func (b *Backend) ID() string { return b.cfg.ID }

// Kind returns KindFileUpload.
func (b *Backend) Kind() transcription.Kind { return transcription.KindFileUpload }

// Model returns the configured model.
func (b *Backend) Model() string { return b.cfg.Model }

// OpenStream is not supported.
func (b *Backend) OpenStream(context.Context) (transcription.Stream, error) {
	return nil, transcription.ErrNotStreaming(b.cfg.ID)
}

// Prewarm opens connections to the endpoint ahead of the upload.
func (b *Backend) Prewarm(ctx context.Context) bool { return b.client.Prewarm(ctx) }

// Close releases pooled connections.
func (b *Backend) Close() { b.client.Close() }

// TranscribeFile uploads the WAV at path, or returns the cached transcript
// of identical audio sent with identical settings.
func (b *Backend) TranscribeFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.InvalidInput("path", err.Error())
	}
	key := b.cacheKey(data)
	if b.cache != nil {
		if text, ok := b.cache.Lookup(ctx, key); ok {
			b.log.Debug("cache hit", logger.Fields(logger.FieldBackend, b.cfg.ID, logger.FieldBytes, len(data)))
			return text, nil
		}
	}

	text, err := b.TranscribeWAV(ctx, data, b.cfg.Prompt)
	if err != nil {
		return "", err
	}
	if b.cache != nil && text != "" {
		b.cache.Store(ctx, key, text)
	}
	return text, nil
}

// TranscribeWAV uploads WAV bytes without consulting the cache. A
// non-empty prompt replaces the configured one.
func (b *Backend) TranscribeWAV(ctx context.Context, wav []byte, prompt string) (text string, err error) {
	ctx, span := observability.StartSpan(ctx, "upload.transcribe", trace.WithAttributes(
		attribute.String(logger.FieldBackend, b.cfg.ID),
		attribute.String(logger.FieldModel, b.cfg.Model),
		attribute.Int(logger.FieldBytes, len(wav)),
	))
	defer func() { observability.EndSpan(span, err) }()

	fields := map[string]string{
		"model":           b.cfg.Model,
		"temperature":     strconv.FormatFloat(b.cfg.Temperature, 'f', -1, 64),
		"response_format": b.cfg.ResponseFormat,
	}
	if b.cfg.Language != "" {
		fields["language"] = b.cfg.Language
	}
	if prompt != "" {
		fields["prompt"] = prompt
	}

	start := time.Now()
	resp, err := b.client.PostMultipart(ctx, b.cfg.Path, &httpclient.MultipartBody{
		Fields: fields,
		Files: []httpclient.FileField{{
			FieldName:   "file",
			FileName:    "audio.wav",
			ContentType: "audio/wav",
			Data:        wav,
		}},
	})
	if err != nil {
		return "", httpclient.ToAppError(b.cfg.ID, err)
	}
	text, err = ParseText(resp.Body)
	if err != nil {
		return "", err
	}
	b.log.Debug("upload transcribed", logger.Fields(
		logger.FieldBackend, b.cfg.ID,
		logger.FieldModel, b.cfg.Model,
		logger.FieldPath, resp.Path,
		logger.FieldBytes, len(wav),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return text, nil
}

func (b *Backend) cacheKey(data []byte) cache.Key {
	return cache.Key{
		Fingerprint: cache.Fingerprint(data),
		BackendID:   b.cfg.ID,
		ModelID:     b.cfg.Model,
		Language:    b.cfg.Language,
		Options:     fmt.Sprintf("t=%g;p=%s;f=%s", b.cfg.Temperature, b.cfg.Prompt, b.cfg.ResponseFormat),
	}
}
