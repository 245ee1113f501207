package transcription

import (
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
)

// Settings are the user-facing backend choices handed to a Factory.
type Settings struct {
	Model    string
	Language string
	BaseURL  string
	APIKey   string
	Prompt   string
	// Timeout overrides the per-attempt network timeout when positive.
	Timeout time.Duration
}

// Factory builds a backend from settings.
type Factory func(s Settings) (Backend, error)

// Registry maps backend ids to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for id.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// Create builds the backend registered under id.
func (r *Registry) Create(id string, s Settings) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.InvalidInput("backend.id", fmt.Sprintf("unknown backend %q", id))
	}
	return f(s)
}

// List returns sorted ids of all registered factories.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ErrNotStreaming is returned by OpenStream on backends that do not stream.
func ErrNotStreaming(id string) error {
	return apperrors.InvalidState("open_stream", id+" is a file-upload backend")
}
