// Package redistier stores cached transcripts in Redis so several
// processes share one result cache.
package redistier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/wonderwhisper/cache"
	"github.com/kbukum/wonderwhisper/logger"
)

// Tier implements cache.Tier on a go-redis client.
type Tier struct {
	rdb    *goredis.Client
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// New creates the tier. The connection is lazy; call Ping to check it.
func New(cfg Config, log *logger.Logger) (*Tier, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is disabled")
	}
	if log == nil {
		log = logger.Get("redistier")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	log.Info("Redis cache tier created", map[string]interface{}{
		"addr":       cfg.Addr,
		"db":         cfg.DB,
		"key_prefix": cfg.KeyPrefix,
	})
	return &Tier{rdb: rdb, log: log, cfg: cfg}, nil
}

func (t *Tier) fullKey(key string) string {
	return t.cfg.KeyPrefix + ":" + key
}

// Ping verifies the Redis connection is alive.
func (t *Tier) Ping(ctx context.Context) error {
	pong, err := t.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("unexpected redis ping response: %s", pong)
	}
	return nil
}

// Get returns the transcript for key. A missing key is not an error.
func (t *Tier) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.OpTimeout)
	defer cancel()
	text, err := t.rdb.Get(ctx, t.fullKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return text, true, nil
}

// Set stores the transcript with ttl. A ttl of 0 means no expiration.
func (t *Tier) Set(ctx context.Context, key, text string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.OpTimeout)
	defer cancel()
	if err := t.rdb.Set(ctx, t.fullKey(key), text, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection. Safe to call multiple times.
func (t *Tier) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.log.Info("Closing Redis connection")
	t.closed = true
	return t.rdb.Close()
}

// compile-time interface check
var _ cache.Tier = (*Tier)(nil)
