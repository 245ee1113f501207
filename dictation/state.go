package dictation

// State is the orchestrator state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
	StateProcessing
	StateInserting
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateProcessing:
		return "processing"
	case StateInserting:
		return "inserting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a session is in progress.
func (s State) Busy() bool {
	return s != StateIdle && s != StateError
}

// Status is a state plus the message of the last failure.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}
