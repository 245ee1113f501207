package httpclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakePath answers after delay, or waits for cancellation when block is set.
type fakePath struct {
	label     string
	delay     time.Duration
	block     bool
	err       error
	calls     atomic.Int32
	cancelled atomic.Bool
}

func (p *fakePath) name() string { return p.label }

func (p *fakePath) send(ctx context.Context, _ *outbound) (*Response, error) {
	p.calls.Add(1)
	if p.block {
		<-ctx.Done()
		p.cancelled.Store(true)
		return nil, ctx.Err()
	}
	select {
	case <-ctx.Done():
		p.cancelled.Store(true)
		return nil, ctx.Err()
	case <-time.After(p.delay):
	}
	if p.err != nil {
		return nil, p.err
	}
	return &Response{StatusCode: 200, Body: []byte(p.label), Path: p.label}, nil
}

func raceConfig(stagger time.Duration) Config {
	cfg := fastConfig("http://upstream.test")
	cfg.MaxAttempts = 1
	cfg.Race.Enabled = true
	cfg.Race.Stagger = stagger
	return cfg
}

func TestRace_FirstSuccessWinsAndCancelsOthers(t *testing.T) {
	slow := &fakePath{label: "a", block: true}
	fast := &fakePath{label: "b", delay: time.Millisecond}
	c := newTestClient(t, raceConfig(10*time.Millisecond), withPaths(slow, fast))

	resp, err := c.Do(context.Background(), Request{Path: "/", Body: []byte("x"), Race: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != "b" {
		t.Errorf("expected path b to win, got %s", resp.Path)
	}
	deadline := time.Now().Add(time.Second)
	for !slow.cancelled.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !slow.cancelled.Load() {
		t.Error("expected losing path to be cancelled")
	}
}

func TestRace_FailureLaunchesNextEarly(t *testing.T) {
	broken := &fakePath{label: "a", err: NewConnectionError(errors.New("reset"))}
	ok := &fakePath{label: "b"}
	c := newTestClient(t, raceConfig(time.Second), withPaths(broken, ok))

	start := time.Now()
	resp, err := c.Do(context.Background(), Request{Path: "/", Body: []byte("x"), Race: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != "b" {
		t.Errorf("expected path b, got %s", resp.Path)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected early launch, took %s", elapsed)
	}
}

func TestRace_StatusAnswerEndsRace(t *testing.T) {
	rejected := &fakePath{label: "a", err: ClassifyStatusCode(400, nil, nil)}
	other := &fakePath{label: "b", delay: time.Millisecond}
	c := newTestClient(t, raceConfig(200*time.Millisecond), withPaths(rejected, other))

	_, err := c.Do(context.Background(), Request{Path: "/", Body: []byte("x"), Race: true})
	if !IsStatus(err) {
		t.Fatalf("expected status error, got %v", err)
	}
	if other.calls.Load() != 0 {
		t.Errorf("expected second path not launched, got %d calls", other.calls.Load())
	}
}

func TestRace_AllFailReturnsLastError(t *testing.T) {
	a := &fakePath{label: "a", err: NewConnectionError(errors.New("a down"))}
	b := &fakePath{label: "b", err: NewDNSError(errors.New("b lookup"))}
	c := newTestClient(t, raceConfig(time.Millisecond), withPaths(a, b))

	_, err := c.Do(context.Background(), Request{Path: "/", Body: []byte("x"), Race: true})
	if !IsDNS(err) && !IsConnection(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("expected one call per path, got %d and %d", a.calls.Load(), b.calls.Load())
	}
}

func TestRace_OpenBreakerSkipsPath(t *testing.T) {
	broken := &fakePath{label: "a", err: NewConnectionError(errors.New("down"))}
	ok := &fakePath{label: "b"}
	cfg := raceConfig(time.Millisecond)
	cfg.Breaker.MaxFailures = 1
	cfg.Breaker.Cooldown = time.Hour
	c := newTestClient(t, cfg, withPaths(broken, ok))

	for i := 0; i < 2; i++ {
		if _, err := c.Do(context.Background(), Request{Path: "/", Body: []byte("x"), Race: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if broken.calls.Load() != 1 {
		t.Errorf("expected broken path skipped once open, got %d calls", broken.calls.Load())
	}
}

func TestRace_AllBreakersOpenUsesEveryPath(t *testing.T) {
	a := &fakePath{label: "a", err: NewConnectionError(errors.New("down"))}
	b := &fakePath{label: "b", err: NewConnectionError(errors.New("down"))}
	cfg := raceConfig(time.Millisecond)
	cfg.Breaker.MaxFailures = 1
	cfg.Breaker.Cooldown = time.Hour
	c := newTestClient(t, cfg, withPaths(a, b))

	for i := 0; i < 2; i++ {
		_, _ = c.Do(context.Background(), Request{Path: "/", Body: []byte("x"), Race: true})
	}
	if a.calls.Load() != 2 || b.calls.Load() != 2 {
		t.Errorf("expected every path retried, got %d and %d", a.calls.Load(), b.calls.Load())
	}
}

func TestRace_DisabledUsesPrimary(t *testing.T) {
	a := &fakePath{label: "a"}
	b := &fakePath{label: "b"}
	cfg := raceConfig(time.Millisecond)
	cfg.Race.Enabled = false
	c := newTestClient(t, cfg, withPaths(a, b))

	resp, err := c.Do(context.Background(), Request{Path: "/", Body: []byte("x"), Race: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != "a" || b.calls.Load() != 0 {
		t.Errorf("expected primary only, got %s and %d calls on b", resp.Path, b.calls.Load())
	}
}
