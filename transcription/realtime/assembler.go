package realtime

import (
	"strings"
	"sync"

	"github.com/kbukum/wonderwhisper/transcription"
)

// EventType is the vendor-neutral kind of a realtime event.
type EventType int

const (
	EventReady EventType = iota
	EventPartial
	EventFinal
	EventTerminated
	EventError
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventTerminated:
		return "terminated"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one decoded message from the remote session.
type Event struct {
	Type EventType
	Text string
	// Confidence is in [0, 1]; 0 means the vendor did not report one.
	Confidence float64
	Err        error
}

// Assembler accumulates final text for one session. It is owned by that
// session; the mutex serializes the receive loop against readers.
type Assembler struct {
	minConfidence float64

	mu         sync.Mutex
	ready      bool
	terminated bool
	segments   []string
	partial    string
	err        error

	readyC   chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// NewAssembler creates an assembler that drops finals below minConfidence.
func NewAssembler(minConfidence float64) *Assembler {
	return &Assembler{
		minConfidence: minConfidence,
		readyC:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Apply folds one event into the transcript state.
func (a *Assembler) Apply(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Type {
	case EventReady:
		if !a.ready {
			a.ready = true
			close(a.readyC)
		}
	case EventPartial:
		a.partial = strings.TrimSpace(e.Text)
	case EventFinal:
		a.partial = ""
		text := strings.TrimSpace(e.Text)
		if text == "" {
			return
		}
		if e.Confidence > 0 && e.Confidence < a.minConfidence {
			return
		}
		if n := len(a.segments); n > 0 && a.segments[n-1] == text {
			return
		}
		a.segments = append(a.segments, text)
	case EventTerminated:
		a.terminated = true
		a.finish()
	case EventError:
		if a.err == nil {
			a.err = e.Err
		}
		a.finish()
	}
}

func (a *Assembler) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}

// Ready reports whether the remote side accepted the session.
func (a *Assembler) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// ReadyC is closed once the session is ready.
func (a *Assembler) ReadyC() <-chan struct{} { return a.readyC }

// Terminated reports whether the remote side confirmed the end of the session.
func (a *Assembler) Terminated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.terminated
}

// Done is closed on termination or error.
func (a *Assembler) Done() <-chan struct{} { return a.done }

// Err returns the first session error.
func (a *Assembler) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Partial returns the latest unstable text.
func (a *Assembler) Partial() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.partial
}

// Segments returns the accepted finals in order.
func (a *Assembler) Segments() []transcription.Segment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]transcription.Segment, len(a.segments))
	for i, s := range a.segments {
		out[i] = transcription.Segment{Seq: uint64(i), Text: s, IsFinal: true}
	}
	return out
}

// FinalTranscript joins the finals with single spaces.
func (a *Assembler) FinalTranscript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.TrimSpace(strings.Join(a.segments, " "))
}
