// Package realtime implements the realtime-socket backend: audio streams
// over a websocket while the user speaks and the vendor pushes partial and
// final transcript events back.
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/transcription"
)

// Config holds configuration for a realtime backend.
type Config struct {
	// ID names the backend; also the protocol when Protocol is empty.
	ID       string `yaml:"id" mapstructure:"id"`
	Protocol string `yaml:"protocol" mapstructure:"protocol"`
	// URL overrides the vendor endpoint.
	URL      string `yaml:"url" mapstructure:"url"`
	Model    string `yaml:"model" mapstructure:"model"`
	Language string `yaml:"language" mapstructure:"language"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`
	// FinalizeTimeout bounds the wait for the vendor to confirm the end. Defaults to 3s.
	FinalizeTimeout time.Duration `yaml:"finalize_timeout" mapstructure:"finalize_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// MinConfidence drops finals scored below it. Unscored finals are kept.
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Protocol == "" {
		c.Protocol = c.ID
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, ok := ProtocolFor(c.Protocol); !ok {
		return apperrors.InvalidInput("protocol", fmt.Sprintf("unknown realtime protocol %q", c.Protocol))
	}
	if c.APIKey == "" {
		return apperrors.MissingCredential(c.ID)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return apperrors.InvalidInput("min_confidence", "must be within [0, 1]")
	}
	return nil
}

// Backend streams audio to a realtime vendor. Finished files go to the
// file-upload backend it wraps.
type Backend struct {
	cfg    Config
	proto  Protocol
	url    string
	files  transcription.Backend
	dialer *websocket.Dialer
	log    *logger.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. Defaults to logger.Get("realtime").
func WithLogger(l *logger.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// New creates a realtime backend. files handles TranscribeFile and may be nil.
func New(cfg Config, files transcription.Backend, opts ...Option) (*Backend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	proto, _ := ProtocolFor(cfg.Protocol)
	base := cfg.URL
	if base == "" {
		base = proto.DefaultURL()
	}
	target, err := proto.URL(base, Params{Model: cfg.Model, Language: cfg.Language})
	if err != nil {
		return nil, apperrors.InvalidEndpoint(base, err.Error())
	}

	b := &Backend{
		cfg:   cfg,
		proto: proto,
		url:   target,
		files: files,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log: logger.Get("realtime"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Factory returns a transcription.Factory for protocol id. files builds the
// backend that handles whole recordings; it may be nil.
func Factory(id string, base Config, files func() (transcription.Backend, error), opts ...Option) transcription.Factory {
	return func(s transcription.Settings) (transcription.Backend, error) {
		var fb transcription.Backend
		if files != nil {
			var err error
			if fb, err = files(); err != nil {
				return nil, err
			}
		}
		return New(base.With(id, s), fb, opts...)
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
		c.URL = s.BaseURL
	}
	if s.APIKey != "" {
		c.APIKey = s.APIKey
	}
	if s.Timeout > 0 {
		c.HandshakeTimeout = s.Timeout
	}
	return c
}

// ID returns the backend id.
func (b *Backend) ID() string { return b.cfg.ID }

// Kind returns KindRealtimeSocket.
func (b *Backend) Kind() transcription.Kind { return transcription.KindRealtimeSocket }

// TranscribeFile delegates to the wrapped file-upload backend.
func (b *Backend) TranscribeFile(ctx context.Context, path string) (string, error) {
	if b.files == nil {
		return "", apperrors.InvalidState("transcribe_file", b.cfg.ID+" has no file backend")
	}
	return b.files.TranscribeFile(ctx, path)
}

// OpenStream dials the vendor and starts the receive loop.
func (b *Backend) OpenStream(ctx context.Context) (transcription.Stream, error) {
	conn, resp, err := b.dialer.DialContext(ctx, b.url, b.proto.Header(b.cfg.APIKey))
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, apperrors.UpstreamRejected(b.cfg.ID, resp.StatusCode, err.Error())
		}
		return nil, apperrors.NetworkTransient("dial "+b.cfg.ID, err)
	}
	s := newSession(b, conn)
	if b.proto.ReadyOnConnect() {
		s.asm.Apply(Event{Type: EventReady})
	}
	b.log.Debug("realtime session opened", logger.Fields(logger.FieldBackend, b.cfg.ID))
	return s, nil
}

// Close releases the file backend.
func (b *Backend) Close() {
	if c, ok := b.files.(interface{ Close() }); ok {
		c.Close()
	}
}
