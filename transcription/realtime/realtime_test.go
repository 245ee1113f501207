package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/wonderwhisper/audio"
	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/transcription"
)

func TestAssembler(t *testing.T) {
	a := NewAssembler(0.5)
	a.Apply(Event{Type: EventPartial, Text: "hel"})
	if a.Partial() != "hel" || a.FinalTranscript() != "" {
		t.Errorf("expected partial tracked only, got %q / %q", a.Partial(), a.FinalTranscript())
	}
	a.Apply(Event{Type: EventReady})
	a.Apply(Event{Type: EventFinal, Text: " hello "})
	a.Apply(Event{Type: EventFinal, Text: "hello"})
	a.Apply(Event{Type: EventFinal, Text: ""})
	a.Apply(Event{Type: EventFinal, Text: "mumble", Confidence: 0.2})
	a.Apply(Event{Type: EventFinal, Text: "world", Confidence: 0.9})
	a.Apply(Event{Type: EventFinal, Text: "hello"})

	if got := a.FinalTranscript(); got != "hello world hello" {
		t.Errorf("expected %q, got %q", "hello world hello", got)
	}
	if !a.Ready() {
		t.Error("expected ready")
	}
	if a.Partial() != "" {
		t.Error("expected partial cleared by final")
	}
	if segs := a.Segments(); len(segs) != 3 || segs[1].Seq != 1 || !segs[1].IsFinal {
		t.Errorf("unexpected segments %+v", segs)
	}

	select {
	case <-a.Done():
		t.Fatal("expected not done before termination")
	default:
	}
	a.Apply(Event{Type: EventTerminated})
	<-a.Done()
	if !a.Terminated() {
		t.Error("expected terminated")
	}
}

func TestAssembler_ErrorClosesDone(t *testing.T) {
	a := NewAssembler(0)
	boom := errors.New("boom")
	a.Apply(Event{Type: EventError, Err: boom})
	a.Apply(Event{Type: EventError, Err: errors.New("second")})
	<-a.Done()
	if !errors.Is(a.Err(), boom) {
		t.Errorf("expected first error kept, got %v", a.Err())
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		proto Protocol
		msg   string
		want  []EventType
		text  string
	}{
		{"aai begin", AssemblyAI{}, `{"type":"Begin","id":"x"}`, []EventType{EventReady}, ""},
		{"aai partial", AssemblyAI{}, `{"type":"Turn","transcript":"hi","end_of_turn":false}`, []EventType{EventPartial}, "hi"},
		{"aai unformatted end", AssemblyAI{}, `{"type":"Turn","transcript":"hi","end_of_turn":true}`, []EventType{EventPartial}, "hi"},
		{"aai final", AssemblyAI{}, `{"type":"Turn","transcript":"Hi.","end_of_turn":true,"turn_is_formatted":true}`, []EventType{EventFinal}, "Hi."},
		{"aai termination", AssemblyAI{}, `{"type":"Termination"}`, []EventType{EventTerminated}, ""},
		{"aai error", AssemblyAI{}, `{"error":"bad key"}`, []EventType{EventError}, ""},
		{"dg partial", Deepgram{}, `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"he"}]}}`, []EventType{EventPartial}, "he"},
		{"dg final", Deepgram{}, `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello","confidence":0.98}]}}`, []EventType{EventFinal}, "hello"},
		{"dg metadata", Deepgram{}, `{"type":"Metadata"}`, []EventType{EventTerminated}, ""},
		{"dg unknown", Deepgram{}, `{"type":"SpeechStarted"}`, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := tt.proto.Decode([]byte(tt.msg))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("expected %d events, got %d", len(tt.want), len(events))
			}
			for i, e := range events {
				if e.Type != tt.want[i] {
					t.Errorf("expected %s, got %s", tt.want[i], e.Type)
				}
				if e.Text != tt.text {
					t.Errorf("expected text %q, got %q", tt.text, e.Text)
				}
			}
		})
	}
	if _, err := (Deepgram{}).Decode([]byte("not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestProtocolURL(t *testing.T) {
	u, err := Deepgram{}.URL("wss://api.deepgram.com/v1/listen", Params{Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, part := range []string{"model=nova-3", "encoding=linear16", "sample_rate=16000", "language=en"} {
		if !strings.Contains(u, part) {
			t.Errorf("expected %s in %s", part, u)
		}
	}
	if _, err := (AssemblyAI{}).URL("https://not-a-socket", Params{}); err == nil {
		t.Error("expected error for non-websocket scheme")
	}
}

// fakeVendor is an AssemblyAI-shaped server.
type fakeVendor struct {
	beginDelay time.Duration
	ignoreEnd  bool
	finals     []string

	mu               sync.Mutex
	beginSent        bool
	earlyAudio       bool
	audioBytes       int
	terminated       bool
	sawAuthorization string
}

func (f *fakeVendor) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.sawAuthorization = r.Header.Get("Authorization")
		f.mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// gorilla connections allow one concurrent writer.
		var writeMu sync.Mutex
		send := func(msg string) {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}

		go func() {
			time.Sleep(f.beginDelay)
			f.mu.Lock()
			f.beginSent = true
			f.mu.Unlock()
			send(`{"type":"Begin","id":"s1"}`)
		}()

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				f.mu.Lock()
				if !f.beginSent {
					f.earlyAudio = true
				}
				f.audioBytes += len(data)
				f.mu.Unlock()
				continue
			}
			if string(data) == `{"type":"Terminate"}` {
				f.mu.Lock()
				f.terminated = true
				finals := f.finals
				f.mu.Unlock()
				if f.ignoreEnd {
					continue
				}
				for _, text := range finals {
					send(`{"type":"Turn","end_of_turn":true,"turn_is_formatted":true,"transcript":"` + text + `"}`)
				}
				send(`{"type":"Termination"}`)
			}
		}
	}
}

func newTestBackend(t *testing.T, vendor *fakeVendor, finalize time.Duration) *Backend {
	t.Helper()
	srv := httptest.NewServer(vendor.handler(t))
	t.Cleanup(srv.Close)
	b, err := New(Config{
		ID:              "assemblyai",
		URL:             "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:          "key",
		FinalizeTimeout: finalize,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestStream_BuffersUntilReadyThenAssembles(t *testing.T) {
	vendor := &fakeVendor{beginDelay: 100 * time.Millisecond, finals: []string{"hello", "hello", "world"}}
	b := newTestBackend(t, vendor, 2*time.Second)

	s, err := b.OpenStream(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Feed(audio.Chunk{Seq: uint64(i), PCM: make([]byte, 320)}); err != nil {
			t.Fatalf("feed: %v", err)
		}
	}
	text, err := s.End(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", text)
	}

	vendor.mu.Lock()
	defer vendor.mu.Unlock()
	if vendor.earlyAudio {
		t.Error("expected no audio before Begin")
	}
	if vendor.audioBytes != 1600 {
		t.Errorf("expected 1600 audio bytes, got %d", vendor.audioBytes)
	}
	if vendor.sawAuthorization != "key" {
		t.Errorf("expected api key header, got %q", vendor.sawAuthorization)
	}
	if err := s.Feed(audio.Chunk{PCM: []byte{1, 2}}); !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE after End, got %v", err)
	}
}

func TestStream_FinalizeTimeoutBounded(t *testing.T) {
	vendor := &fakeVendor{ignoreEnd: true}
	b := newTestBackend(t, vendor, 200*time.Millisecond)

	s, err := b.OpenStream(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := time.Now()
	text, err := s.End(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected bounded finalize, took %s", elapsed)
	}
}

func TestStream_AbortNoTranscript(t *testing.T) {
	vendor := &fakeVendor{finals: []string{"never"}}
	b := newTestBackend(t, vendor, time.Second)

	s, err := b.OpenStream(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = s.Feed(audio.Chunk{PCM: make([]byte, 64)})
	s.Abort()
	s.Abort()

	vendor.mu.Lock()
	defer vendor.mu.Unlock()
	if vendor.terminated {
		t.Error("expected no termination request on abort")
	}
	if _, err := s.End(context.Background()); err == nil {
		t.Error("expected End after Abort to fail")
	}
}

func TestOpenStream_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	b, err := New(Config{ID: "deepgram", URL: "ws" + strings.TrimPrefix(srv.URL, "http"), APIKey: "bad"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.OpenStream(context.Background()); !apperrors.HasCode(err, apperrors.ErrCodeUpstreamRejected) {
		t.Errorf("expected UPSTREAM_REJECTED, got %v", err)
	}
}

type fileStub struct{ path string }

func (f *fileStub) ID() string               { return "stub" }
func (f *fileStub) Kind() transcription.Kind { return transcription.KindFileUpload }
func (f *fileStub) TranscribeFile(_ context.Context, path string) (string, error) {
	f.path = path
	return "from file", nil
}
func (f *fileStub) OpenStream(context.Context) (transcription.Stream, error) { return nil, nil }

func TestBackend_FileDelegation(t *testing.T) {
	files := &fileStub{}
	b, err := New(Config{ID: "deepgram", APIKey: "k"}, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := b.TranscribeFile(context.Background(), "/tmp/a.wav")
	if err != nil || got != "from file" || files.path != "/tmp/a.wav" {
		t.Errorf("expected delegation, got %q %v", got, err)
	}
	if b.Kind() != transcription.KindRealtimeSocket {
		t.Errorf("unexpected kind %s", b.Kind())
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{ID: "deepgram"}, nil); !apperrors.HasCode(err, apperrors.ErrCodeMissingCredential) {
		t.Errorf("expected MISSING_CREDENTIAL, got %v", err)
	}
	if _, err := New(Config{ID: "nobody", APIKey: "k"}, nil); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	if _, err := New(Config{ID: "deepgram", APIKey: "k", URL: "http://x"}, nil); !apperrors.HasCode(err, apperrors.ErrCodeInvalidEndpoint) {
		t.Errorf("expected INVALID_ENDPOINT, got %v", err)
	}
}
