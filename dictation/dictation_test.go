package dictation

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/wonderwhisper/audio"
	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/transcription"
)

type harness struct {
	o        *Orchestrator
	source   *fakeSource
	backend  *fakeBackend
	inserter *fakeInserter
	history  *MemoryHistory
	states   *stateLog
}

func newHarness(t *testing.T, cfg Config, backend *fakeBackend, opts ...Option) *harness {
	t.Helper()
	if cfg.RecordingsDir == "" {
		cfg.RecordingsDir = t.TempDir()
	}
	h := &harness{
		source:   &fakeSource{chunks: pcmChunks(5, 3200)},
		backend:  backend,
		inserter: &fakeInserter{},
		history:  NewMemoryHistory(0),
		states:   &stateLog{},
	}
	opts = append([]Option{WithHistory(h.history)}, opts...)
	o, err := New(cfg, backend, h.source, h.inserter, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.OnStateChange(h.states.record)
	h.o = o
	return h
}

func (h *harness) run(t *testing.T) (*Result, error) {
	t.Helper()
	if err := h.o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h.o.Stop(context.Background())
}

func TestStop_FileUpload(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileText: "send it to jon"}
	h := newHarness(t, Config{
		Substitutions: []Substitution{{From: "jon", To: "John", WholeWord: true}},
	}, backend)

	res, err := h.run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Output != "send it to John" || res.Transcript != "send it to jon" {
		t.Errorf("unexpected result %+v", res)
	}
	if !slices.Equal(h.inserter.texts, []string{"send it to John"}) {
		t.Errorf("unexpected inserts %v", h.inserter.texts)
	}
	want := []State{StateRecording, StateTranscribing, StateInserting, StateIdle}
	if got := h.states.get(); !slices.Equal(got, want) {
		t.Errorf("expected states %v, got %v", want, got)
	}

	pcm, err := audio.ReadWAVFile(res.AudioPath)
	if err != nil {
		t.Fatalf("saved recording: %v", err)
	}
	if len(pcm) != 5*3200 {
		t.Errorf("expected %d recorded bytes, got %d", 5*3200, len(pcm))
	}
	if backend.paths[0] != res.AudioPath {
		t.Errorf("expected upload of %s, got %s", res.AudioPath, backend.paths[0])
	}

	entries := h.history.List()
	if len(entries) != 1 || entries[0].Outcome != OutcomeOK || entries[0].ID != res.SessionID {
		t.Fatalf("unexpected history %+v", entries)
	}
	if entries[0].Timings.Total <= 0 {
		t.Error("expected total timing")
	}
}

func TestStop_StreamingSeesWholeRecording(t *testing.T) {
	stream := &fakeStream{text: "streamed text"}
	backend := &fakeBackend{id: "assemblyai", kind: transcription.KindRealtimeSocket, stream: stream, openDelay: 50 * time.Millisecond}
	h := newHarness(t, Config{}, backend)

	res, err := h.run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Output != "streamed text" {
		t.Errorf("expected streamed text, got %q", res.Output)
	}
	if backend.fileCalls() != 0 {
		t.Errorf("expected no file upload, got %d", backend.fileCalls())
	}
	if stream.fed != 5*3200 {
		t.Errorf("expected stream fed %d bytes, got %d", 5*3200, stream.fed)
	}
	if !stream.ended {
		t.Error("expected stream ended")
	}
}

func TestStop_StreamFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		stream  *fakeStream
		openErr error
	}{
		{"empty stream result", &fakeStream{text: "  "}, nil},
		{"stream end error", &fakeStream{endErr: apperrors.NetworkTransient("socket", errors.New("reset"))}, nil},
		{"stream open failed", nil, apperrors.UpstreamRejected("deepgram", 401, "bad key")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				id: "deepgram", kind: transcription.KindChunkedStream,
				stream: tt.stream, openErr: tt.openErr, fileText: "from file",
			}
			h := newHarness(t, Config{}, backend)
			res, err := h.run(t)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Output != "from file" {
				t.Errorf("expected file fallback, got %q", res.Output)
			}
			if backend.fileCalls() != 1 {
				t.Errorf("expected 1 file upload, got %d", backend.fileCalls())
			}
		})
	}
}

func TestStop_RewriteFailureKeepsTranscript(t *testing.T) {
	tests := []struct {
		name    string
		rewrite *fakeRewrite
	}{
		{"error", &fakeRewrite{err: apperrors.NetworkTransient("rewrite", errors.New("timeout"))}},
		{"empty", &fakeRewrite{out: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileText: "um hello world"}
			h := newHarness(t, Config{
				PostProcessing: true,
				Substitutions:  []Substitution{{From: "um ", To: ""}},
			}, backend, WithRewrite(tt.rewrite))

			res, err := h.run(t)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Output != "hello world" {
				t.Errorf("expected raw transcript after substitutions, got %q", res.Output)
			}
			if h.o.Status().State != StateIdle {
				t.Errorf("expected idle, got %s", h.o.Status().State)
			}
			want := []State{StateRecording, StateTranscribing, StateProcessing, StateInserting, StateIdle}
			if got := h.states.get(); !slices.Equal(got, want) {
				t.Errorf("expected states %v, got %v", want, got)
			}
		})
	}
}

func TestStop_RewriteWithContext(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileText: "pay the invoice"}
	rw := &fakeRewrite{out: "Pay the invoice."}
	h := newHarness(t, Config{PostProcessing: true}, backend, WithRewrite(rw), WithContextProvider(fakeContext{}))

	res, err := h.run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Output != "Pay the invoice." {
		t.Errorf("expected rewritten output, got %q", res.Output)
	}
	if !strings.Contains(rw.input, "pay the invoice") || !strings.Contains(rw.input, "Invoice #42 for ACME") {
		t.Errorf("expected transcript and screen text in rewrite input, got %q", rw.input)
	}
	if strings.Contains(rw.input, "Selected text") {
		t.Errorf("expected failed selection to be omitted, got %q", rw.input)
	}
	if e := h.history.List()[0]; e.ScreenText != "Invoice #42 for ACME" {
		t.Errorf("expected screen text in history, got %q", e.ScreenText)
	}
}

func TestCancel(t *testing.T) {
	stream := &fakeStream{text: "never used"}
	backend := &fakeBackend{id: "assemblyai", kind: transcription.KindRealtimeSocket, stream: stream}
	h := newHarness(t, Config{}, backend)

	if err := h.o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.o.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if h.o.Status().State != StateIdle {
		t.Errorf("expected idle, got %s", h.o.Status().State)
	}
	if stream.ended {
		t.Error("expected no finalize on cancel")
	}
	if h.source.stopped != 1 {
		t.Errorf("expected source stopped once, got %d", h.source.stopped)
	}
	if len(h.history.List()) != 0 {
		t.Errorf("expected no history entry, got %d", len(h.history.List()))
	}
	if len(h.inserter.texts) != 0 || backend.fileCalls() != 0 {
		t.Error("expected nothing transcribed or inserted")
	}
	// The stream may still have been connecting; when it opened it must be torn down.
	if stream.fed > 0 && !stream.aborted {
		t.Error("expected opened stream to be aborted")
	}
	if _, err := h.o.Stop(context.Background()); !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE after cancel, got %v", err)
	}
}

func TestStop_TranscriptionFailure(t *testing.T) {
	boom := apperrors.UpstreamRejected("openai", 400, "unsupported audio")
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileErr: boom}
	h := newHarness(t, Config{}, backend)

	if _, err := h.run(t); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	status := h.o.Status()
	if status.State != StateError || status.Message == "" {
		t.Errorf("expected error status with message, got %+v", status)
	}
	entries := h.history.List()
	if len(entries) != 1 || entries[0].Outcome != OutcomeError || entries[0].AudioPath == "" {
		t.Fatalf("expected failed entry with audio, got %+v", entries)
	}
	if _, err := os.Stat(entries[0].AudioPath); err != nil {
		t.Errorf("expected audio preserved: %v", err)
	}

	backend.fileErr = nil
	backend.fileText = "second try"
	if err := h.o.Start(context.Background()); err != nil {
		t.Fatalf("expected start from error state, got %v", err)
	}
	if h.o.Status().Message != "" {
		t.Error("expected start to clear the error message")
	}
	if _, err := h.o.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStop_AbortedIsSilent(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileErr: apperrors.SessionAborted()}
	h := newHarness(t, Config{}, backend)

	if _, err := h.run(t); !apperrors.IsAborted(err) {
		t.Fatalf("expected aborted, got %v", err)
	}
	if h.o.Status().State != StateIdle {
		t.Errorf("expected idle, got %s", h.o.Status().State)
	}
}

func TestStop_InsertFailure(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileText: "hello"}
	h := newHarness(t, Config{}, backend)
	h.inserter.err = errors.New("no focused window")

	if _, err := h.run(t); err == nil {
		t.Fatal("expected insert error")
	}
	if h.o.Status().State != StateError {
		t.Errorf("expected error state, got %s", h.o.Status().State)
	}
	if e := h.history.List()[0]; e.Output != "hello" || e.Outcome != OutcomeError {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestStop_EmptyTranscript(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileText: ""}
	h := newHarness(t, Config{}, backend)

	if _, err := h.run(t); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.inserter.texts) != 0 {
		t.Errorf("expected nothing inserted, got %v", h.inserter.texts)
	}
	if e := h.history.List()[0]; e.Outcome != OutcomeEmpty {
		t.Errorf("expected empty outcome, got %s", e.Outcome)
	}
}

func TestInvalidTransitions(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileText: "x"}
	h := newHarness(t, Config{}, backend)

	if _, err := h.o.Stop(context.Background()); !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for stop when idle, got %v", err)
	}
	if err := h.o.Cancel(context.Background()); !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for cancel when idle, got %v", err)
	}
	if err := h.o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.o.Start(context.Background()); !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for second start, got %v", err)
	}
	if err := h.o.SetBackend(&fakeBackend{id: "groq"}); !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for backend swap while recording, got %v", err)
	}
	_ = h.o.Cancel(context.Background())
	if err := h.o.SetBackend(&fakeBackend{id: "groq"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if h.o.Backend().ID() != "groq" {
		t.Errorf("expected groq, got %s", h.o.Backend().ID())
	}
}

func TestStart_SourceFailure(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload}
	h := newHarness(t, Config{}, backend)
	h.source.startErr = errors.New("no microphone")

	if err := h.o.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s := h.o.Status(); s.State != StateError || s.Message != "no microphone" {
		t.Errorf("unexpected status %+v", s)
	}
}

func TestReprocess(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileErr: errors.New("offline")}
	h := newHarness(t, Config{}, backend)
	if _, err := h.run(t); err == nil {
		t.Fatal("expected failure")
	}
	failed := h.history.List()[0]

	retry := &fakeBackend{id: "groq", kind: transcription.KindFileUpload, fileText: "recovered text"}
	if err := h.o.SetBackend(retry); err != nil {
		t.Fatalf("set backend: %v", err)
	}
	if err := h.o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := h.o.Reprocess(context.Background(), failed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Output != "recovered text" || res.AudioPath != failed.AudioPath {
		t.Errorf("unexpected result %+v", res)
	}
	if h.o.Status().State != StateRecording {
		t.Errorf("expected live state untouched, got %s", h.o.Status().State)
	}
	if len(h.inserter.texts) != 0 {
		t.Errorf("expected no insert, got %v", h.inserter.texts)
	}
	entries := h.history.List()
	last := entries[len(entries)-1]
	if last.ReprocessOf != failed.ID || last.BackendID != "groq" || last.Outcome != OutcomeOK {
		t.Errorf("unexpected reprocess entry %+v", last)
	}
	_ = h.o.Cancel(context.Background())

	if _, err := h.o.Reprocess(context.Background(), HistoryEntry{ID: "x"}); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT without audio, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	backend := &fakeBackend{id: "openai"}
	if _, err := New(Config{}, nil, &fakeSource{}, &fakeInserter{}); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	_, err := New(Config{Substitutions: []Substitution{{From: ""}}}, backend, &fakeSource{}, &fakeInserter{})
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty substitution, got %v", err)
	}
}

func TestCancel_WhileSourceStarting(t *testing.T) {
	tests := []struct {
		name     string
		startErr error
	}{
		{"source fails", errors.New("mic unavailable")},
		{"source succeeds", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newGatedSource(tt.startErr)
			backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload}
			o, err := New(Config{RecordingsDir: t.TempDir()}, backend, source, &fakeInserter{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			started := make(chan error, 1)
			go func() { started <- o.Start(context.Background()) }()
			<-source.entered

			canceled := make(chan error, 1)
			go func() { canceled <- o.Cancel(context.Background()) }()
			time.Sleep(20 * time.Millisecond)
			close(source.release)

			select {
			case err := <-canceled:
				if err != nil {
					t.Errorf("cancel: %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("cancel did not return, state=%s", o.Status().State)
			}
			if err := <-started; !errors.Is(err, tt.startErr) {
				t.Errorf("expected start error %v, got %v", tt.startErr, err)
			}
			if s := o.Status(); s.State != StateIdle {
				t.Errorf("expected idle, got %+v", s)
			}
			wantStops := 1
			if tt.startErr != nil {
				wantStops = 0
			}
			if source.stopped != wantStops {
				t.Errorf("expected %d source stops, got %d", wantStops, source.stopped)
			}
			if err := o.Start(context.Background()); !errors.Is(err, tt.startErr) {
				t.Errorf("expected a fresh start to be accepted, got %v", err)
			}
		})
	}
}

func TestStop_OddLengthRecordingIsSaved(t *testing.T) {
	backend := &fakeBackend{id: "openai", kind: transcription.KindFileUpload, fileText: "ok"}
	h := newHarness(t, Config{}, backend)
	h.source.chunks = pcmChunks(1, 3201)

	res, err := h.run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pcm, err := audio.ReadWAVFile(res.AudioPath)
	if err != nil {
		t.Fatalf("saved recording: %v", err)
	}
	if len(pcm) != 3200 {
		t.Errorf("expected 3200 saved bytes, got %d", len(pcm))
	}
	if e := h.history.List()[0]; e.AudioPath == "" || e.Outcome != OutcomeOK {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestStart_PrewarmsUploadBackends(t *testing.T) {
	tests := []struct {
		kind transcription.Kind
		want bool
	}{
		{transcription.KindFileUpload, true},
		{transcription.KindChunkedStream, true},
		{transcription.KindRealtimeSocket, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			backend := &warmBackend{
				fakeBackend: &fakeBackend{id: "b", kind: tt.kind, fileText: "x", stream: &fakeStream{text: "x"}},
				warmed:      make(chan struct{}, 1),
			}
			o, err := New(Config{RecordingsDir: t.TempDir()}, backend, &fakeSource{}, &fakeInserter{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := o.Start(context.Background()); err != nil {
				t.Fatalf("start: %v", err)
			}
			var got bool
			select {
			case <-backend.warmed:
				got = true
			case <-time.After(100 * time.Millisecond):
			}
			if got != tt.want {
				t.Errorf("expected prewarm %v, got %v", tt.want, got)
			}
			_ = o.Cancel(context.Background())
		})
	}
}
