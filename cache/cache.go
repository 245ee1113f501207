package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/observability"
)

// Config configures the result cache.
type Config struct {
	// Capacity is the maximum number of entries. Defaults to 100.
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
	// TTL is the entry lifetime. Defaults to 30m.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 100
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("cache: capacity must be at least 1")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache: ttl must be positive")
	}
	return nil
}

// Tier is an optional shared store consulted on a local miss.
type Tier interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string, ttl time.Duration) error
}

// ResultCache is a bounded LRU of transcripts with per-entry TTL. It is
// the only state shared between sessions and is safe for concurrent use.
type ResultCache struct {
	config Config
	lru    *expirable.LRU[string, string]

	tier    Tier
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithTier adds a second tier that is read on miss and written through on store.
func WithTier(t Tier) Option {
	return func(c *ResultCache) { c.tier = t }
}

// WithLogger sets the logger. Defaults to logger.Get("cache").
func WithLogger(l *logger.Logger) Option {
	return func(c *ResultCache) { c.log = l }
}

// WithMetrics records hit and miss counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *ResultCache) { c.metrics = m }
}

// New creates a ResultCache.
func New(cfg Config, opts ...Option) *ResultCache {
	cfg.ApplyDefaults()
	c := &ResultCache{
		config: cfg,
		lru:    expirable.NewLRU[string, string](cfg.Capacity, nil, cfg.TTL),
		log:    logger.Get("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the cached transcript for key.
func (c *ResultCache) Lookup(ctx context.Context, key Key) (string, bool) {
	k := key.String()
	if text, ok := c.lru.Get(k); ok {
		c.metrics.RecordCacheLookup(ctx, true)
		return text, true
	}
	if c.tier != nil {
		text, ok, err := c.tier.Get(ctx, k)
		if err != nil {
			c.log.Warn("cache tier read failed", logger.ErrorFields("get", err))
		} else if ok {
			c.lru.Add(k, text)
			c.metrics.RecordCacheLookup(ctx, true)
			return text, true
		}
	}
	c.metrics.RecordCacheLookup(ctx, false)
	return "", false
}

// Store records the transcript for key, evicting the least recently used
// entry when full.
func (c *ResultCache) Store(ctx context.Context, key Key, text string) {
	k := key.String()
	c.lru.Add(k, text)
	if c.tier == nil {
		return
	}
	if err := c.tier.Set(ctx, k, text, c.config.TTL); err != nil {
		c.log.Warn("cache tier write failed", logger.ErrorFields("set", err))
	}
}

// Len returns the number of unexpired local entries.
func (c *ResultCache) Len() int { return len(c.lru.Keys()) }

// Purge drops every local entry.
func (c *ResultCache) Purge() { c.lru.Purge() }
