package chunked

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/wonderwhisper/audio"
	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/resilience"
	"github.com/kbukum/wonderwhisper/transcription"
)

type session struct {
	b      *Backend
	ctx    context.Context
	cancel context.CancelFunc
	slots  *resilience.Bulkhead
	wg     sync.WaitGroup

	mu       sync.Mutex
	buf      []byte
	next     uint64
	results  map[uint64]string
	firstErr error
	ended    bool
}

func newSession(parent context.Context, b *Backend) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		b:      b,
		ctx:    ctx,
		cancel: cancel,
		slots: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          b.cfg.ID,
			MaxConcurrent: b.cfg.MaxConcurrentUploads,
			MaxWait:       -1,
		}),
		results: make(map[uint64]string),
	}
}

// Feed buffers audio and launches an upload for every full window.
func (s *session) Feed(c audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return apperrors.InvalidState("feed", "stream ended")
	}
	s.buf = append(s.buf, c.PCM...)
	window := s.b.cfg.WindowBytes()
	for len(s.buf) >= window {
		s.launch(s.buf[:window:window])
		s.buf = s.buf[window:]
	}
	return nil
}

// launch starts the upload for one window. Callers hold mu.
func (s *session) launch(pcm []byte) {
	seq := s.next
	s.next++
	pcm = append([]byte(nil), pcm...)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.upload(seq, pcm)
	}()
}

func (s *session) upload(seq uint64, pcm []byte) {
	err := s.slots.Execute(s.ctx, func() error {
		wav, err := audio.EncodeWAV(pcm)
		if err != nil {
			return err
		}
		text, err := s.b.up.TranscribeWAV(s.ctx, wav, s.hint(seq))
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.results[seq] = text
		s.mu.Unlock()
		return nil
	})

	switch {
	case err == nil:
		s.b.metrics.RecordChunkUpload(s.ctx, "ok")
	case errors.Is(err, context.Canceled) || s.ctx.Err() != nil || apperrors.IsAborted(err):
		s.b.metrics.RecordChunkUpload(context.Background(), "canceled")
	default:
		s.b.metrics.RecordChunkUpload(s.ctx, "error")
		s.b.log.Warn("chunk upload failed", logger.Fields(
			logger.FieldBackend, s.b.cfg.ID,
			logger.FieldSeq, seq,
			logger.FieldError, err.Error(),
		))
		s.mu.Lock()
		if s.firstErr == nil {
			s.firstErr = err
		}
		s.mu.Unlock()
	}
}

// hint returns the tail of the latest finished transcript before seq.
func (s *session) hint(seq uint64) string {
	n := s.b.cfg.ContextHintWords
	if n <= 0 || seq == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var best uint64
	var text string
	found := false
	for k, v := range s.results {
		if k < seq && (!found || k > best) && strings.TrimSpace(v) != "" {
			best, text, found = k, v, true
		}
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

// End uploads the remainder when it is long enough, waits for in-flight
// uploads up to the drain timeout and merges what arrived.
func (s *session) End(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return "", apperrors.InvalidState("end", "stream ended")
	}
	s.ended = true
	if len(s.buf) >= s.b.cfg.MinFinalChunkBytes {
		s.launch(s.buf)
	} else if len(s.buf) > 0 {
		s.b.log.Debug("discarding short tail", logger.Fields(
			logger.FieldBackend, s.b.cfg.ID,
			logger.FieldBytes, len(s.buf),
		))
	}
	s.buf = nil
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(s.b.cfg.DrainTimeout)
	defer timer.Stop()

	var ctxErr error
	select {
	case <-drained:
	case <-timer.C:
		s.b.log.Warn("chunk drain timed out", logger.Fields(
			logger.FieldBackend, s.b.cfg.ID,
			"in_flight", s.slots.InUse(),
		))
	case <-ctx.Done():
		ctxErr = ctx.Err()
	}
	s.cancel()
	<-drained

	if ctxErr != nil {
		return "", ctxErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	segments := make([]transcription.Segment, 0, len(s.results))
	for seq, text := range s.results {
		segments = append(segments, transcription.Segment{Seq: seq, Text: text, IsFinal: true})
	}
	text := Merge(segments, s.b.cfg.Merge)
	if text == "" && s.firstErr != nil {
		return "", s.firstErr
	}
	return text, nil
}

// Abort cancels every upload, waits for them and drops all state.
func (s *session) Abort() {
	s.mu.Lock()
	s.ended = true
	s.buf = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	clear(s.results)
	s.mu.Unlock()
}
