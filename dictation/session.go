package dictation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/wonderwhisper/audio"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/transcription"
)

// Session is one recording in progress.
type Session struct {
	ID        string
	StartedAt time.Time
	BackendID string
	Recording *audio.Recording

	backend transcription.Backend
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logger.Logger

	// started is closed once the source has answered; sourceErr is set
	// before that.
	started   chan struct{}
	sourceErr error

	// stream and streamErr are written by the pump and read after pumpDone.
	stream    transcription.Stream
	streamErr error
	pumpDone  chan struct{}

	ctxMu        sync.Mutex
	screenText   string
	selectedText string
	captureDone  chan struct{}
}

type openResult struct {
	stream transcription.Stream
	err    error
}

// pump records every chunk and feeds the stream once it is open. Audio
// captured while the stream was still connecting is sent as one catch-up
// chunk so the stream sees the whole recording in order.
func (s *Session) pump(chunks <-chan audio.Chunk, opened <-chan openResult) {
	defer close(s.pumpDone)

	var stream transcription.Stream
	feed := func(c audio.Chunk) {
		if stream == nil || s.streamErr != nil {
			return
		}
		if err := stream.Feed(c); err != nil {
			s.streamErr = err
			s.log.Warn("stream feed failed, continuing in file mode", logger.ErrorFields("feed", err))
		}
	}
	attach := func(r openResult) {
		opened = nil
		if r.err != nil {
			s.streamErr = r.err
			s.log.Warn("stream open failed, continuing in file mode", logger.ErrorFields("open_stream", r.err))
			return
		}
		stream = r.stream
		s.stream = stream
		if s.Recording.Len() > 0 {
			feed(audio.Chunk{PCM: s.Recording.Bytes()})
		}
	}

	for chunks != nil || opened != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			s.Recording.Append(c)
			feed(c)
		case r := <-opened:
			attach(r)
		}
	}
}

// capture fetches screen and selected text in the background.
func (s *Session) capture(p ContextProvider, timeout time.Duration) {
	defer close(s.captureDone)
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	screen, err := p.ScreenText(ctx)
	if err != nil {
		s.log.Debug("screen text unavailable", logger.ErrorFields("screen_text", err))
	}
	selected, err := p.SelectedText(ctx)
	if err != nil {
		s.log.Debug("selected text unavailable", logger.ErrorFields("selected_text", err))
	}
	s.ctxMu.Lock()
	s.screenText, s.selectedText = screen, selected
	s.ctxMu.Unlock()
}

// awaitContext waits for the capture to settle, bounded by timeout.
func (s *Session) awaitContext(ctx context.Context, timeout time.Duration) (screen, selected string) {
	if s.captureDone != nil {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-s.captureDone:
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()
	return s.screenText, s.selectedText
}

// buildContextMessage assembles the rewrite input.
func buildContextMessage(transcript, screen, selected string) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	if s := strings.TrimSpace(selected); s != "" {
		b.WriteString("\n\nSelected text:\n")
		b.WriteString(s)
	}
	if s := strings.TrimSpace(screen); s != "" {
		b.WriteString("\n\nScreen context:\n")
		b.WriteString(s)
	}
	return b.String()
}
