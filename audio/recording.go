package audio

import (
	"sync"
	"time"
)

// Recording accumulates every chunk of a session. It is safe for one
// writer and concurrent readers.
type Recording struct {
	mu     sync.RWMutex
	pcm    []byte
	chunks int
}

// NewRecording creates an empty recording.
func NewRecording() *Recording {
	return &Recording{}
}

// Append adds the chunk's samples to the recording.
func (r *Recording) Append(c Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pcm = append(r.pcm, c.PCM...)
	r.chunks++
}

// Bytes returns a copy of the recorded PCM.
func (r *Recording) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]byte, len(r.pcm))
	copy(out, r.pcm)
	return out
}

// Len returns the recorded PCM size in bytes.
func (r *Recording) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pcm)
}

// Chunks returns the number of chunks appended.
func (r *Recording) Chunks() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chunks
}

// Duration returns the recorded length.
func (r *Recording) Duration() time.Duration {
	return DurationOf(r.Len())
}

// Reset discards the recorded audio.
func (r *Recording) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pcm = nil
	r.chunks = 0
}
