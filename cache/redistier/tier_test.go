package redistier

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/wonderwhisper/cache"
	"github.com/kbukum/wonderwhisper/logger"
)

// newTestTier creates a Tier backed by miniredis for testing.
func newTestTier(t *testing.T) (*Tier, *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() { mini.Close() })

	tier, err := New(Config{Enabled: true, Addr: mini.Addr()}, logger.NewDefault("redistier-test"))
	if err != nil {
		t.Fatalf("failed to create tier: %v", err)
	}
	t.Cleanup(func() { _ = tier.Close() })
	return tier, mini
}

func TestTier_SetAndGet(t *testing.T) {
	tier, mini := newTestTier(t)
	ctx := context.Background()

	if err := tier.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := tier.Set(ctx, "k1", "hello", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := tier.Get(ctx, "k1")
	if err != nil || !ok || got != "hello" {
		t.Fatalf("expected hello, got %q %v %v", got, ok, err)
	}
	if !mini.Exists("wonderwhisper:transcript:k1") {
		t.Error("expected prefixed key in redis")
	}
	if ttl := mini.TTL("wonderwhisper:transcript:k1"); ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %s", ttl)
	}
}

func TestTier_MissingKey(t *testing.T) {
	tier, _ := newTestTier(t)
	_, ok, err := tier.Get(context.Background(), "nope")
	if err != nil || ok {
		t.Errorf("expected clean miss, got %v %v", ok, err)
	}
}

func TestTier_Expiry(t *testing.T) {
	tier, mini := newTestTier(t)
	ctx := context.Background()
	_ = tier.Set(ctx, "k", "v", time.Second)
	mini.FastForward(2 * time.Second)
	if _, ok, _ := tier.Get(ctx, "k"); ok {
		t.Error("expected key expired")
	}
}

func TestTier_ServerDownIsError(t *testing.T) {
	tier, mini := newTestTier(t)
	mini.Close()
	if _, _, err := tier.Get(context.Background(), "k"); err == nil {
		t.Error("expected error when redis is down")
	}
}

func TestTier_SharedAcrossCaches(t *testing.T) {
	tier, _ := newTestTier(t)
	ctx := context.Background()
	key := cache.Key{Fingerprint: "abc", BackendID: "openai", ModelID: "whisper-1"}

	first := cache.New(cache.Config{}, cache.WithTier(tier))
	first.Store(ctx, key, "shared text")

	second := cache.New(cache.Config{}, cache.WithTier(tier))
	got, ok := second.Lookup(ctx, key)
	if !ok || got != "shared text" {
		t.Errorf("expected shared hit, got %q %v", got, ok)
	}
}

func TestNew_Disabled(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected error for disabled tier")
	}
	if _, err := New(Config{Enabled: true}, nil); err == nil {
		t.Error("expected error for missing addr")
	}
}
