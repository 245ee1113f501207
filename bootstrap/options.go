package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/wonderwhisper/cache"
	"github.com/kbukum/wonderwhisper/logger"
)

// Option configures the App during creation.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	version         string
	tier            cache.Tier
	summaryOut      io.Writer
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithVersion overrides the build version reported in the summary and
// telemetry resource.
func WithVersion(v string) Option {
	return func(o *appOptions) {
		o.version = v
	}
}

// WithTier sets the shared cache tier instead of building one from
// cache.redis.
func WithTier(t cache.Tier) Option {
	return func(o *appOptions) {
		o.tier = t
	}
}

// WithSummaryOutput sets where the startup summary is written.
// Defaults to os.Stderr; io.Discard silences it.
func WithSummaryOutput(w io.Writer) Option {
	return func(o *appOptions) {
		o.summaryOut = w
	}
}
