package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/wonderwhisper/audio"
	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/logger"
)

// session owns one websocket. Only writeLoop writes data frames.
type session struct {
	b    *Backend
	conn *websocket.Conn
	asm  *Assembler

	mu      sync.Mutex
	pending [][]byte
	ending  bool
	closed  bool

	notify    chan struct{}
	stop      chan struct{}
	readDone  chan struct{}
	writeDone chan struct{}
	closeOnce sync.Once
}

func newSession(b *Backend, conn *websocket.Conn) *session {
	s := &session{
		b:         b,
		conn:      conn,
		asm:       NewAssembler(b.cfg.MinConfidence),
		notify:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
		readDone:  make(chan struct{}),
		writeDone: make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Feed buffers the chunk; it is sent once the remote side is ready.
func (s *session) Feed(c audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ending {
		return apperrors.InvalidState("feed", "stream ended")
	}
	if len(c.PCM) == 0 {
		return nil
	}
	s.pending = append(s.pending, append([]byte(nil), c.PCM...))
	s.signal()
	return nil
}

// End flushes buffered audio, requests termination and waits for it,
// bounded by the finalize timeout. Text assembled so far is returned
// even when the vendor never confirms.
func (s *session) End(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed || s.ending {
		s.mu.Unlock()
		return "", apperrors.InvalidState("end", "stream ended")
	}
	s.ending = true
	s.signal()
	s.mu.Unlock()

	timer := time.NewTimer(s.b.cfg.FinalizeTimeout)
	defer timer.Stop()

	var ctxErr error
	select {
	case <-s.asm.Done():
	case <-s.readDone:
	case <-timer.C:
		s.b.log.Warn("realtime finalize timed out", logger.Fields(
			logger.FieldBackend, s.b.cfg.ID,
			"terminated", s.asm.Terminated(),
		))
	case <-ctx.Done():
		ctxErr = ctx.Err()
	}
	s.close()

	if ctxErr != nil {
		return "", ctxErr
	}
	text := s.asm.FinalTranscript()
	if err := s.asm.Err(); err != nil && text == "" {
		return "", err
	}
	return text, nil
}

// Abort closes the socket and drops buffered audio.
func (s *session) Abort() {
	s.close()
}

func (s *session) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *session) take() ([][]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := s.pending
	s.pending = nil
	return frames, s.ending
}

func (s *session) writeLoop() {
	defer close(s.writeDone)
	ready := s.asm.ReadyC()
	for {
		select {
		case <-s.notify:
		case <-ready:
			ready = nil
		case <-s.stop:
			return
		}
		if !s.asm.Ready() {
			continue
		}
		frames, ending := s.take()
		for _, f := range frames {
			if err := s.write(websocket.BinaryMessage, f); err != nil {
				s.fail(err)
				return
			}
		}
		if ending {
			if err := s.write(websocket.TextMessage, s.b.proto.Terminate()); err != nil {
				s.fail(err)
			}
			return
		}
	}
}

func (s *session) write(kind int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.b.cfg.WriteTimeout))
	return s.conn.WriteMessage(kind, data)
}

func (s *session) readLoop() {
	defer close(s.readDone)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stop:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					s.asm.Apply(Event{Type: EventTerminated})
				} else {
					s.fail(err)
				}
			}
			return
		}
		events, err := s.b.proto.Decode(data)
		if err != nil {
			s.b.log.Debug("undecodable realtime message", logger.ErrorFields("decode", err))
			continue
		}
		for _, e := range events {
			if e.Type == EventError && e.Err != nil {
				e.Err = apperrors.UpstreamRejected(s.b.cfg.ID, 0, e.Err.Error())
			}
			s.asm.Apply(e)
		}
	}
}

func (s *session) fail(err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	s.asm.Apply(Event{Type: EventError, Err: apperrors.NetworkTransient("realtime "+s.b.cfg.ID, err)})
}

// close tears the connection down once and waits for both loops.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()

		close(s.stop)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
		<-s.writeDone
		<-s.readDone
	})
}
