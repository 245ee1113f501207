package dictation

import (
	"context"
	"slices"
	"sync"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
)

// Entry outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Timings holds per-stage durations of one session.
type Timings struct {
	Recording     time.Duration `json:"recording"`
	Transcription time.Duration `json:"transcription"`
	Processing    time.Duration `json:"processing"`
	Insertion     time.Duration `json:"insertion"`
	Total         time.Duration `json:"total"`
}

// HistoryEntry describes one finished or failed session.
type HistoryEntry struct {
	ID string `json:"id"`
	// ReprocessOf is the id of the entry whose audio was reused.
	ReprocessOf  string    `json:"reprocess_of,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	BackendID    string    `json:"backend_id"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	AudioPath    string    `json:"audio_path,omitempty"`
	Transcript   string    `json:"transcript,omitempty"`
	Output       string    `json:"output,omitempty"`
	ScreenText   string    `json:"screen_text,omitempty"`
	SelectedText string    `json:"selected_text,omitempty"`
	Timings      Timings   `json:"timings"`
}

// MemoryHistory is an in-process HistoryStore. Safe for concurrent use.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	limit   int
}

// NewMemoryHistory keeps the last limit entries; limit <= 0 keeps all.
func NewMemoryHistory(limit int) *MemoryHistory {
	return &MemoryHistory{limit: limit}
}

// Append implements HistoryStore.
func (h *MemoryHistory) Append(_ context.Context, entry HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = slices.Delete(h.entries, 0, len(h.entries)-h.limit)
	}
	return nil
}

// List returns entries oldest first.
func (h *MemoryHistory) List() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.entries)
}

// Get returns the entry with id.
func (h *MemoryHistory) Get(id string) (HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return HistoryEntry{}, apperrors.InvalidInput("history.id", "no entry "+id)
}
