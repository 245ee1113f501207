package dictation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/wonderwhisper/audio"
	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/observability"
	"github.com/kbukum/wonderwhisper/transcription"
)

// prewarmer is implemented by backends that can open connections ahead of
// the upload.
type prewarmer interface {
	Prewarm(ctx context.Context) bool
}

// Result is the outcome of a completed session or reprocess.
type Result struct {
	SessionID  string
	Transcript string
	Output     string
	AudioPath  string
	Timings    Timings
}

// Orchestrator drives one dictation session at a time.
type Orchestrator struct {
	cfg      Config
	source   AudioSource
	inserter Inserter
	history  HistoryStore
	rewrite  RewritePass
	context  ContextProvider
	subs     *Substituter
	log      *logger.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	mu      sync.Mutex
	status  Status
	backend transcription.Backend
	session *Session

	observersMu sync.Mutex
	observers   []func(Status)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRewrite sets the post-processing pass.
func WithRewrite(p RewritePass) Option {
	return func(o *Orchestrator) { o.rewrite = p }
}

// WithContextProvider enables screen-context capture.
func WithContextProvider(p ContextProvider) Option {
	return func(o *Orchestrator) { o.context = p }
}

// WithHistory sets the history store. Defaults to an unbounded MemoryHistory.
func WithHistory(h HistoryStore) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithLogger sets the logger. Defaults to logger.Get("dictation").
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics records session outcomes and stage durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator in the Idle state.
func New(cfg Config, backend transcription.Backend, source AudioSource, inserter Inserter, opts ...Option) (*Orchestrator, error) {
	if backend == nil || source == nil || inserter == nil {
		return nil, apperrors.InvalidInput("orchestrator", "backend, audio source and inserter are required")
	}
	cfg.ApplyDefaults()
	subs, err := NewSubstituter(cfg.Substitutions)
	if err != nil {
		return nil, apperrors.InvalidInput("substitutions", err.Error())
	}
	o := &Orchestrator{
		cfg:      cfg,
		source:   source,
		inserter: inserter,
		backend:  backend,
		subs:     subs,
		log:      logger.Get("dictation"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.history == nil {
		o.history = NewMemoryHistory(0)
	}
	return o, nil
}

// Status returns the current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// OnStateChange registers fn to be called on every transition.
func (o *Orchestrator) OnStateChange(fn func(Status)) {
	o.observersMu.Lock()
	defer o.observersMu.Unlock()
	o.observers = append(o.observers, fn)
}

// SetBackend swaps the backend. Only allowed between sessions.
func (o *Orchestrator) SetBackend(b transcription.Backend) error {
	if b == nil {
		return apperrors.InvalidInput("backend", "backend is required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.State.Busy() {
		return apperrors.InvalidState("set_backend", o.status.State.String())
	}
	o.backend = b
	return nil
}

// Backend returns the current backend.
func (o *Orchestrator) Backend() transcription.Backend {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.backend
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
	o.notify(s)
}

func (o *Orchestrator) setState(s State) { o.setStatus(Status{State: s}) }

func (o *Orchestrator) notify(s Status) {
	o.observersMu.Lock()
	defer o.observersMu.Unlock()
	for _, fn := range o.observers {
		fn(s)
	}
}

// Start begins a session. Valid from Idle or Error. The session is live
// as soon as Start is called, so Cancel and Stop may run while the source
// is still starting.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.status.State.Busy() {
		state := o.status.State
		o.mu.Unlock()
		return apperrors.InvalidState("start", state.String())
	}
	backend := o.backend
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		StartedAt: o.now(),
		BackendID: backend.ID(),
		Recording: audio.NewRecording(),
		backend:   backend,
		ctx:       sctx,
		cancel:    cancel,
		log:       o.log.WithSession(id),
		started:   make(chan struct{}),
		pumpDone:  make(chan struct{}),
	}
	o.session = s
	o.status = Status{State: StateRecording}
	o.mu.Unlock()

	if backend.Kind() != transcription.KindRealtimeSocket {
		if p, ok := backend.(prewarmer); ok {
			go p.Prewarm(sctx)
		}
	}

	chunks, err := o.source.Start(sctx)
	if err != nil {
		cancel()
		s.sourceErr = err
		close(s.pumpDone)
		close(s.started)
		o.mu.Lock()
		live := o.session == s
		if live {
			o.session = nil
		}
		o.mu.Unlock()
		if live {
			o.setStatus(Status{State: StateError, Message: err.Error()})
		}
		return err
	}

	var opened chan openResult
	if backend.Kind().Streams() {
		opened = make(chan openResult, 1)
		go func() {
			stream, err := backend.OpenStream(sctx)
			opened <- openResult{stream: stream, err: err}
		}()
	}
	go s.pump(chunks, opened)
	if o.context != nil {
		s.captureDone = make(chan struct{})
		go s.capture(o.context, o.cfg.ContextTimeout)
	}
	close(s.started)

	o.mu.Lock()
	live := o.session == s
	o.mu.Unlock()
	if !live {
		s.log.Debug("session ended while the audio source was starting")
		return nil
	}

	s.log.Info("recording started", logger.Fields(
		logger.FieldBackend, s.BackendID,
		"kind", backend.Kind().String(),
	))
	o.notify(Status{State: StateRecording})
	return nil
}

// take moves the live session out of the state machine.
func (o *Orchestrator) take(op string, next State) (*Session, error) {
	o.mu.Lock()
	if o.status.State != StateRecording || o.session == nil {
		state := o.status.State
		o.mu.Unlock()
		return nil, apperrors.InvalidState(op, state.String())
	}
	s := o.session
	o.session = nil
	o.status = Status{State: next}
	o.mu.Unlock()
	o.notify(Status{State: next})
	return s, nil
}

// stopCapture waits for the source to have started, stops it and waits
// for the pump.
func (o *Orchestrator) stopCapture(s *Session) {
	<-s.started
	if s.sourceErr != nil {
		return
	}
	if err := o.source.Stop(); err != nil {
		s.log.Warn("audio source stop failed", logger.ErrorFields("stop", err))
	}
	<-s.pumpDone
}

// Cancel aborts the session without a transcript. Valid from Recording.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	s, err := o.take("cancel", StateIdle)
	if err != nil {
		return err
	}
	s.cancel()
	o.stopCapture(s)
	if s.stream != nil {
		s.stream.Abort()
	}
	s.Recording.Reset()
	o.metrics.RecordSession(ctx, s.BackendID, "canceled")
	s.log.Info("session canceled")
	return nil
}

// Stop finishes recording and runs the pipeline: transcribe, rewrite,
// substitute and insert. Valid from Recording.
func (o *Orchestrator) Stop(ctx context.Context) (*Result, error) {
	s, err := o.take("stop", StateTranscribing)
	if err != nil {
		return nil, err
	}
	defer s.cancel()

	stopped := o.now()
	o.stopCapture(s)

	res := &Result{SessionID: s.ID}
	entry := HistoryEntry{ID: s.ID, CreatedAt: s.StartedAt, BackendID: s.BackendID}
	if s.sourceErr != nil {
		return nil, o.fail(ctx, s, &entry, res, s.sourceErr)
	}
	res.Timings.Recording = stopped.Sub(s.StartedAt)
	o.metrics.RecordStage(ctx, "recording", res.Timings.Recording)

	path := filepath.Join(o.cfg.RecordingsDir, s.ID+".wav")
	if err := audio.WriteWAVFile(path, s.Recording.Bytes()); err != nil {
		if s.stream != nil {
			s.stream.Abort()
		}
		return nil, o.fail(ctx, s, &entry, res, err)
	}
	res.AudioPath = path
	entry.AudioPath = path

	t0 := o.now()
	transcript, err := o.transcribe(ctx, s, path)
	res.Timings.Transcription = o.now().Sub(t0)
	o.metrics.RecordStage(ctx, "transcription", res.Timings.Transcription)
	if err != nil {
		return nil, o.fail(ctx, s, &entry, res, err)
	}
	res.Transcript = transcript
	entry.Transcript = transcript

	if strings.TrimSpace(transcript) == "" {
		s.log.Info("empty transcript, nothing to insert")
		entry.Outcome = OutcomeEmpty
		o.finish(ctx, s, &entry, res)
		o.setState(StateIdle)
		return res, nil
	}

	output := transcript
	if o.cfg.PostProcessing && o.rewrite != nil {
		o.setState(StateProcessing)
		t0 = o.now()
		screen, selected := s.awaitContext(ctx, o.cfg.ContextTimeout)
		entry.ScreenText, entry.SelectedText = screen, selected
		output = o.postProcess(ctx, s.log, transcript, screen, selected)
		res.Timings.Processing = o.now().Sub(t0)
		o.metrics.RecordStage(ctx, "processing", res.Timings.Processing)
	}
	output = o.subs.Apply(output)
	res.Output = output
	entry.Output = output

	o.setState(StateInserting)
	t0 = o.now()
	err = o.inserter.Insert(ctx, output)
	res.Timings.Insertion = o.now().Sub(t0)
	o.metrics.RecordStage(ctx, "insertion", res.Timings.Insertion)
	if err != nil {
		return nil, o.fail(ctx, s, &entry, res, err)
	}

	entry.Outcome = OutcomeOK
	o.finish(ctx, s, &entry, res)
	o.setState(StateIdle)
	return res, nil
}

// transcribe finalizes the stream, falling back to a file upload of the
// saved recording when streaming produced nothing.
func (o *Orchestrator) transcribe(ctx context.Context, s *Session, path string) (transcript string, err error) {
	ctx, span := observability.StartSpan(ctx, "dictation.transcribe", trace.WithAttributes(
		attribute.String(logger.FieldSessionID, s.ID),
		attribute.String(logger.FieldBackend, s.BackendID),
		attribute.Bool("streamed", s.stream != nil),
	))
	defer func() { observability.EndSpan(span, err) }()

	if s.stream != nil {
		if s.streamErr != nil {
			s.stream.Abort()
		} else {
			text, err := s.stream.End(ctx)
			if err == nil && strings.TrimSpace(text) != "" {
				return text, nil
			}
			if apperrors.IsAborted(err) || errors.Is(err, context.Canceled) {
				return "", err
			}
			s.log.Warn("stream yielded no transcript, falling back to file upload", logger.Fields(
				logger.FieldBackend, s.BackendID,
				"stream_error", errString(err),
			))
		}
	}
	return s.backend.TranscribeFile(ctx, path)
}

// postProcess runs the rewrite pass; any failure keeps the raw transcript.
func (o *Orchestrator) postProcess(ctx context.Context, log *logger.Logger, transcript, screen, selected string) string {
	out, err := o.rewrite.Process(ctx, buildContextMessage(transcript, screen, selected))
	if err != nil {
		log.Warn("rewrite failed, using raw transcript", logger.ErrorFields("rewrite", err))
		return transcript
	}
	if strings.TrimSpace(out) == "" {
		log.Warn("rewrite returned empty text, using raw transcript")
		return transcript
	}
	return out
}

// fail records the error and moves to Error, or to Idle when the user aborted.
func (o *Orchestrator) fail(ctx context.Context, s *Session, entry *HistoryEntry, res *Result, err error) error {
	entry.Outcome = OutcomeError
	entry.Error = err.Error()
	o.finish(ctx, s, entry, res)
	if apperrors.IsAborted(err) || errors.Is(err, context.Canceled) {
		o.setState(StateIdle)
		return err
	}
	s.log.Error("session failed", logger.ErrorFields("stop", err))
	o.setStatus(Status{State: StateError, Message: err.Error()})
	return err
}

func (o *Orchestrator) finish(ctx context.Context, s *Session, entry *HistoryEntry, res *Result) {
	res.Timings.Total = o.now().Sub(s.StartedAt)
	entry.Timings = res.Timings
	o.appendHistory(ctx, s.log, *entry)
	o.metrics.RecordSession(ctx, s.BackendID, entry.Outcome)
	s.log.Info("session finished", logger.Fields(
		logger.FieldBackend, s.BackendID,
		"outcome", entry.Outcome,
		logger.FieldDuration, res.Timings.Total.Milliseconds(),
	))
}

func (o *Orchestrator) appendHistory(ctx context.Context, log *logger.Logger, entry HistoryEntry) {
	if err := o.history.Append(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn("history append failed", logger.ErrorFields("history", err))
	}
}

// Reprocess transcribes the saved audio of a past entry with the current
// backend and appends a new entry. It never touches the live state and
// does not insert.
func (o *Orchestrator) Reprocess(ctx context.Context, past HistoryEntry) (*Result, error) {
	if past.AudioPath == "" {
		return nil, apperrors.InvalidInput("audio_path", "entry has no saved audio")
	}
	backend := o.Backend()
	id := uuid.NewString()
	log := o.log.WithSession(id)
	start := o.now()

	entry := HistoryEntry{
		ID:           id,
		ReprocessOf:  past.ID,
		CreatedAt:    start,
		BackendID:    backend.ID(),
		AudioPath:    past.AudioPath,
		ScreenText:   past.ScreenText,
		SelectedText: past.SelectedText,
	}
	res := &Result{SessionID: id, AudioPath: past.AudioPath}

	transcript, err := backend.TranscribeFile(ctx, past.AudioPath)
	res.Timings.Transcription = o.now().Sub(start)
	if err != nil {
		entry.Outcome = OutcomeError
		entry.Error = err.Error()
		res.Timings.Total = res.Timings.Transcription
		entry.Timings = res.Timings
		o.appendHistory(ctx, log, entry)
		return nil, err
	}
	res.Transcript = transcript
	entry.Transcript = transcript

	output := transcript
	if strings.TrimSpace(transcript) != "" && o.cfg.PostProcessing && o.rewrite != nil {
		t0 := o.now()
		output = o.postProcess(ctx, log, transcript, past.ScreenText, past.SelectedText)
		res.Timings.Processing = o.now().Sub(t0)
	}
	output = o.subs.Apply(output)
	res.Output = output
	entry.Output = output
	entry.Outcome = OutcomeOK
	if strings.TrimSpace(transcript) == "" {
		entry.Outcome = OutcomeEmpty
	}
	res.Timings.Total = o.now().Sub(start)
	entry.Timings = res.Timings
	o.appendHistory(ctx, log, entry)
	o.metrics.RecordSession(ctx, backend.ID(), "reprocess_"+entry.Outcome)
	log.Info("reprocessed recording", logger.Fields("reprocess_of", past.ID, logger.FieldBackend, backend.ID()))
	return res, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
