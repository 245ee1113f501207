// Package bootstrap wires wonderwhisper components from one Config.
//
// It loads nothing itself; callers fill a Config (usually through
// config.LoadConfig) and hand it to NewApp, which applies defaults,
// validates, initializes logging and telemetry, and builds the shared
// result cache and the backend registry:
//
//	var cfg bootstrap.Config
//	if err := config.LoadConfig("wonderwhisper", &cfg); err != nil {
//	    return err
//	}
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	return app.RunTask(ctx, func(ctx context.Context) error {
//	    backend, err := app.Backend()
//	    ...
//	})
package bootstrap
