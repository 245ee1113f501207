package dictation

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kbukum/wonderwhisper/audio"
)

// AudioSource produces PCM16 mono 16 kHz chunks. The channel closes after Stop.
type AudioSource interface {
	Start(ctx context.Context) (<-chan audio.Chunk, error)
	Stop() error
}

// Inserter delivers the final text, typically into the focused application.
type Inserter interface {
	Insert(ctx context.Context, text string) error
}

// HistoryStore records finished sessions.
type HistoryStore interface {
	Append(ctx context.Context, entry HistoryEntry) error
}

// RewritePass post-processes a transcript. Failures are not fatal.
type RewritePass interface {
	Process(ctx context.Context, contextText string) (string, error)
}

// ContextProvider captures on-screen context. Both calls are best effort.
type ContextProvider interface {
	ScreenText(ctx context.Context) (string, error)
	SelectedText(ctx context.Context) (string, error)
}

// WriterInserter writes each text as one line to W.
type WriterInserter struct {
	mu sync.Mutex
	W  io.Writer
}

// Insert writes text followed by a newline.
func (w *WriterInserter) Insert(_ context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.W, text)
	return err
}
