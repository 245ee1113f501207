package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/wonderwhisper/audio"
	"github.com/kbukum/wonderwhisper/bootstrap"
	"github.com/kbukum/wonderwhisper/dictation"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/rewrite"
)

// TranscribeCmd transcribes files one after another.
type TranscribeCmd struct {
	Files []string `arg:"" help:"WAV files (16 kHz mono 16-bit)." type:"existingfile"`
}

func (c *TranscribeCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	return g.run(cfg, func(ctx context.Context, app *bootstrap.App) error {
		b, err := app.Backend()
		if err != nil {
			return err
		}
		for _, path := range c.Files {
			text, err := b.TranscribeFile(ctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if len(c.Files) > 1 {
				printf("%s: ", filepath.Base(path))
			}
			printf("%s\n", text)
		}
		return nil
	})
}

// DictateCmd plays a recording as if spoken live: audio streams to the
// backend while "recording", then the pipeline inserts into stdout.
type DictateCmd struct {
	File    string        `arg:"" help:"WAV file to replay." type:"existingfile"`
	Fast    bool          `help:"Emit audio as fast as possible instead of at playback speed."`
	Rewrite bool          `help:"Run the rewrite pass (requires rewrite config)."`
	Timeout time.Duration `help:"Give up on the whole session after this long." default:"2m"`
}

func (c *DictateCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Rewrite {
		cfg.Rewrite.Enabled = true
		cfg.Dictation.PostProcessing = true
	}
	src, err := audio.OpenFileSource(c.File, audio.FileSourceConfig{Realtime: !c.Fast})
	if err != nil {
		return err
	}
	return g.run(cfg, func(ctx context.Context, app *bootstrap.App) error {
		ctx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		o, err := app.NewOrchestrator(src, &dictation.WriterInserter{W: os.Stdout})
		if err != nil {
			return err
		}
		o.OnStateChange(func(s dictation.Status) {
			app.Logger.Debug("state changed", logger.Fields(logger.FieldState, s.State.String(), "message", s.Message))
		})
		if err := o.Start(ctx); err != nil {
			return err
		}

		select {
		case <-src.Exhausted():
		case <-ctx.Done():
			_ = o.Cancel(context.Background())
			return ctx.Err()
		}

		res, err := o.Stop(ctx)
		if err != nil {
			return err
		}
		if res.Output == "" {
			fmt.Fprintln(os.Stderr, "(no speech detected)")
			return nil
		}
		printf("\n")
		app.Logger.Info("dictation finished", logger.Fields(
			logger.FieldSessionID, res.SessionID,
			"audio_path", res.AudioPath,
			"transcription_ms", res.Timings.Transcription.Milliseconds(),
			"total_ms", res.Timings.Total.Milliseconds(),
		))
		return nil
	})
}

// ReprocessCmd re-transcribes a saved recording with the current backend.
type ReprocessCmd struct {
	File     string `arg:"" help:"Saved WAV recording." type:"existingfile"`
	Selected string `help:"Selected text to give the rewrite pass."`
	Rewrite  bool   `help:"Run the rewrite pass (requires rewrite config)."`
}

func (c *ReprocessCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Rewrite {
		cfg.Rewrite.Enabled = true
		cfg.Dictation.PostProcessing = true
	}
	return g.run(cfg, func(ctx context.Context, app *bootstrap.App) error {
		o, err := app.NewOrchestrator(audio.NewFileSource(nil, audio.FileSourceConfig{}), &dictation.WriterInserter{W: os.Stdout})
		if err != nil {
			return err
		}
		id := strings.TrimSuffix(filepath.Base(c.File), filepath.Ext(c.File))
		res, err := o.Reprocess(ctx, dictation.HistoryEntry{ID: id, AudioPath: c.File, SelectedText: c.Selected})
		if err != nil {
			return err
		}
		printf("%s\n", res.Output)
		return nil
	})
}

// BackendsCmd lists backend ids and the rewrite dialects.
type BackendsCmd struct{}

func (c *BackendsCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	app, err := g.newApp(cfg)
	if err != nil {
		return err
	}
	active := app.Cfg.Backend.ID
	for _, id := range app.Backends.List() {
		mark := " "
		if id == active {
			mark = "*"
		}
		printf("%s %s\n", mark, id)
	}
	printf("\nrewrite dialects: %s\n", strings.Join(rewrite.Dialects(), ", "))
	return app.Shutdown(context.Background())
}
