package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kbukum/wonderwhisper/cache"
	"github.com/kbukum/wonderwhisper/cache/redistier"
	"github.com/kbukum/wonderwhisper/component"
	"github.com/kbukum/wonderwhisper/dictation"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/observability"
	"github.com/kbukum/wonderwhisper/rewrite"
	"github.com/kbukum/wonderwhisper/transcription"
	"github.com/kbukum/wonderwhisper/version"
)

// App owns the shared infrastructure of one wonderwhisper process.
//
// Example:
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RunTask(ctx, func(ctx context.Context) error {
//	    b, err := app.Backend()
//	    ...
//	})
type App struct {
	Name       string
	Version    string
	Cfg        *Config
	Logger     *logger.Logger
	Metrics    *observability.Metrics
	Cache      *cache.ResultCache
	Backends   *transcription.Registry
	Components *component.Registry
	Summary    *Summary

	gracefulTimeout time.Duration
	onStart         []Hook
	onStop          []Hook

	mu      sync.Mutex
	backend transcription.Backend
}

// Backends that keep warm connections implement prewarmer; those holding
// pools implement closer.
type prewarmer interface {
	Prewarm(ctx context.Context) bool
}

type closer interface {
	Close()
}

// NewApp creates a new application instance from cfg.
// It applies defaults, validates the config, initializes the logger and
// builds the cache and backend registry. Nothing connects until RunTask.
func NewApp(cfg *Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)
	app := &App{
		Name:            cfg.Name,
		Version:         version.Get().Short(),
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if o.version != "" {
		app.Version = o.version
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging, cfg.Name)
		app.Logger = logger.GetGlobalLogger()
	}
	app.Components = component.NewRegistry(app.Logger.WithComponent("component"))
	app.Summary = NewSummary(app.Name, app.Version, o.summaryOut)

	// Instruments bind to the global provider, which Init replaces on start.
	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	app.Metrics = metrics
	if err := app.Components.Register(app.telemetryComponent()); err != nil {
		return nil, err
	}

	cacheOpts := []cache.Option{
		cache.WithLogger(logger.Get("cache")),
		cache.WithMetrics(metrics),
	}
	switch {
	case o.tier != nil:
		cacheOpts = append(cacheOpts, cache.WithTier(o.tier))
	case cfg.Cache.Redis.Enabled:
		tier, err := redistier.New(cfg.Cache.Redis, logger.Get("redistier"))
		if err != nil {
			return nil, err
		}
		cacheOpts = append(cacheOpts, cache.WithTier(tier))
		if err := app.Components.Register(app.tierComponent(tier)); err != nil {
			return nil, err
		}
	}
	app.Cache = cache.New(cfg.Cache.Config, cacheOpts...)

	app.Backends = NewBackendRegistry(cfg, app.Cache, metrics)
	if !app.Backends.Has(cfg.Backend.ID) {
		return nil, fmt.Errorf("config validation: backend.id: unknown backend %q (have %v)",
			cfg.Backend.ID, app.Backends.List())
	}
	if err := app.Components.Register(app.backendComponent()); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) telemetryComponent() component.Component {
	var shutdown observability.ShutdownFunc
	details := "disabled"
	if a.Cfg.Metrics.Enabled {
		details = "otlp " + a.Cfg.Metrics.Endpoint
	}
	return &component.Func{
		ComponentName: "telemetry",
		Desc:          component.Description{Name: "Telemetry", Type: "telemetry", Details: details},
		StartFn: func(ctx context.Context) error {
			var err error
			shutdown, err = observability.Init(ctx, a.Name, a.Version, a.Cfg.Environment, a.Cfg.Metrics)
			return err
		},
		StopFn: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	}
}

// The tier never blocks startup: the cache treats tier errors as misses.
func (a *App) tierComponent(tier *redistier.Tier) component.Component {
	rc := a.Cfg.Cache.Redis
	return &component.Func{
		ComponentName: "cache-tier",
		Desc: component.Description{
			Name:    "Redis cache tier",
			Type:    "cache",
			Details: fmt.Sprintf("%s db=%d pool=%d", rc.Addr, rc.DB, rc.PoolSize),
		},
		StartFn: func(ctx context.Context) error {
			if err := tier.Ping(ctx); err != nil {
				a.Logger.Warn("Redis cache tier unreachable, continuing with local cache",
					logger.ErrorFields("ping", err))
			}
			return nil
		},
		StopFn:   func(context.Context) error { return tier.Close() },
		HealthFn: tier.Ping,
	}
}

func (a *App) backendComponent() component.Component {
	return &component.Func{
		ComponentName: "backend",
		Desc:          component.Description{Name: "Transcription backend", Type: "backend", Details: a.Cfg.Backend.ID},
		StartFn: func(ctx context.Context) error {
			b, err := a.Backend()
			if err != nil {
				return err
			}
			if p, ok := b.(prewarmer); ok {
				go p.Prewarm(context.WithoutCancel(ctx))
			}
			return nil
		},
		StopFn: func(context.Context) error {
			a.mu.Lock()
			b := a.backend
			a.backend = nil
			a.mu.Unlock()
			if c, ok := b.(closer); ok {
				c.Close()
			}
			return nil
		},
	}
}

// Backend returns the configured backend, building it on first use.
func (a *App) Backend() (transcription.Backend, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend != nil {
		return a.backend, nil
	}
	b, err := a.Backends.Create(a.Cfg.Backend.ID, a.Cfg.Backend.Settings())
	if err != nil {
		return nil, err
	}
	a.backend = b
	a.Logger.Debug("Backend created", logger.Fields(
		logger.FieldBackend, b.ID(),
		"kind", b.Kind().String(),
	))
	return b, nil
}

// NewRewrite builds the rewrite pass, or returns nil when rewrite is
// disabled. The pass is closed on shutdown.
func (a *App) NewRewrite() (*rewrite.Pass, error) {
	if !a.Cfg.Rewrite.Enabled {
		return nil, nil
	}
	p, err := rewrite.New(a.Cfg.Rewrite, rewrite.WithLogger(logger.Get("rewrite")))
	if err != nil {
		return nil, err
	}
	a.OnStop(func(context.Context) error {
		p.Close()
		return nil
	})
	return p, nil
}

// NewOrchestrator builds a dictation orchestrator on the configured
// backend, with the rewrite pass attached when enabled. opts are applied
// after the defaults.
func (a *App) NewOrchestrator(source dictation.AudioSource, inserter dictation.Inserter, opts ...dictation.Option) (*dictation.Orchestrator, error) {
	b, err := a.Backend()
	if err != nil {
		return nil, err
	}
	base := []dictation.Option{
		dictation.WithLogger(logger.Get("dictation")),
		dictation.WithMetrics(a.Metrics),
	}
	pass, err := a.NewRewrite()
	if err != nil {
		return nil, err
	}
	if pass != nil {
		base = append(base, dictation.WithRewrite(pass))
	}
	return dictation.New(a.Cfg.Dictation, b, source, inserter, append(base, opts...)...)
}

// RunTask starts all components, runs task, and shuts down when the task
// completes or the context is canceled (e.g., via SIGINT/SIGTERM).
//
// Example:
//
//	app, _ := bootstrap.NewApp(&cfg)
//	app.RunTask(ctx, func(ctx context.Context) error {
//	    return transcribe(ctx)
//	})
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		if stopErr := a.stop(); stopErr != nil {
			a.Logger.Warn("Shutdown after failed startup reported errors", logger.ErrorFields("stop", stopErr))
		}
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil {
		if taskErr != nil {
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

// ReadyCheck verifies that all registered components are healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// startup starts components, runs OnStart hooks and prints the summary.
func (a *App) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Debug("Starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.Display(ctx, a.Components)
	return nil
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App) Shutdown(ctx context.Context) error {
	return a.stop()
}

// stop shuts everything down within the graceful timeout.
func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}

	a.Logger.Debug("Application shutdown complete")
	return shutdownErr
}
