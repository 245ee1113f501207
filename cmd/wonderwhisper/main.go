// Command wonderwhisper transcribes recordings and replays them through
// the dictation pipeline.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kbukum/wonderwhisper/bootstrap"
	"github.com/kbukum/wonderwhisper/config"
	"github.com/kbukum/wonderwhisper/version"
)

// Globals are flags shared by every command.
type Globals struct {
	Config  string `help:"Config file path." type:"path" short:"c"`
	EnvFile string `help:".env file path." type:"path" name:"env-file"`
	Backend string `help:"Backend id, overrides backend.id." short:"b"`
	Model   string `help:"Model, overrides backend.model."`
	Lang    string `help:"Language code, overrides backend.language." name:"language" short:"l"`
	Verbose bool   `help:"Debug logging and startup summary." short:"v"`
}

type cli struct {
	Globals

	Version    kong.VersionFlag `help:"Print version and exit."`
	Transcribe TranscribeCmd    `cmd:"" help:"Transcribe WAV files with the configured backend."`
	Dictate    DictateCmd       `cmd:"" help:"Replay a WAV file through the dictation pipeline."`
	Reprocess  ReprocessCmd     `cmd:"" help:"Re-run a saved recording without inserting it."`
	Backends   BackendsCmd      `cmd:"" help:"List registered backends."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("wonderwhisper"),
		kong.Description("Voice dictation transcription."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Get().String()},
	)
	ctx.FatalIfErrorf(ctx.Run(&c.Globals))
}

// load reads configuration and applies command-line overrides.
func (g *Globals) load() (*bootstrap.Config, error) {
	var opts []config.LoaderOption
	if g.Config != "" {
		opts = append(opts, config.WithConfigFile(g.Config))
	}
	if g.EnvFile != "" {
		opts = append(opts, config.WithEnvFile(g.EnvFile))
	}
	var cfg bootstrap.Config
	if err := config.LoadConfig("wonderwhisper", &cfg, opts...); err != nil {
		return nil, err
	}
	if g.Backend != "" {
		cfg.Backend.ID = g.Backend
	}
	if g.Model != "" {
		cfg.Backend.Model = g.Model
	}
	if g.Lang != "" {
		cfg.Backend.Language = g.Lang
	}
	if g.Verbose {
		cfg.Debug = true
	}
	return &cfg, nil
}

// newApp builds the application; the summary is printed only when verbose.
func (g *Globals) newApp(cfg *bootstrap.Config) (*bootstrap.App, error) {
	var summary io.Writer = io.Discard
	if g.Verbose {
		summary = os.Stderr
	}
	return bootstrap.NewApp(cfg, bootstrap.WithSummaryOutput(summary))
}

// run builds the app and runs task inside its lifecycle.
func (g *Globals) run(cfg *bootstrap.Config, task func(ctx context.Context, app *bootstrap.App) error) error {
	app, err := g.newApp(cfg)
	if err != nil {
		return err
	}
	return app.RunTask(context.Background(), func(ctx context.Context) error {
		return task(ctx, app)
	})
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
