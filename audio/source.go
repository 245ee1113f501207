package audio

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FileSourceConfig configures a FileSource.
type FileSourceConfig struct {
	// ChunkDuration is the length of each emitted chunk. Defaults to 100ms.
	ChunkDuration time.Duration `yaml:"chunk_duration" mapstructure:"chunk_duration"`
	// Realtime paces chunks at playback speed.
	Realtime bool `yaml:"realtime" mapstructure:"realtime"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *FileSourceConfig) ApplyDefaults() {
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = 100 * time.Millisecond
	}
}

// FileSource replays PCM as a capture stream. The chunk channel closes
// after Stop; Exhausted is closed once every chunk has been emitted.
type FileSource struct {
	pcm    []byte
	config FileSourceConfig

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	exhausted chan struct{}
}

// NewFileSource creates a source over the given PCM.
func NewFileSource(pcm []byte, cfg FileSourceConfig) *FileSource {
	cfg.ApplyDefaults()
	return &FileSource{pcm: pcm, config: cfg, exhausted: make(chan struct{})}
}

// OpenFileSource decodes a WAV file into a FileSource.
func OpenFileSource(path string, cfg FileSourceConfig) (*FileSource, error) {
	pcm, err := ReadWAVFile(path)
	if err != nil {
		return nil, err
	}
	return NewFileSource(pcm, cfg), nil
}

// Start begins emitting chunks.
func (s *FileSource) Start(ctx context.Context) (<-chan Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil, errors.New("audio: source already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	out := make(chan Chunk, 16)
	go s.run(ctx, out)
	return out, nil
}

// Stop ends the stream and waits until the chunk channel is closed.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Exhausted is closed when the whole file has been emitted.
func (s *FileSource) Exhausted() <-chan struct{} { return s.exhausted }

func (s *FileSource) run(ctx context.Context, out chan<- Chunk) {
	defer close(s.done)
	defer close(out)

	size := BytesFor(s.config.ChunkDuration)
	var ticker *time.Ticker
	if s.config.Realtime {
		ticker = time.NewTicker(s.config.ChunkDuration)
		defer ticker.Stop()
	}

	var seq uint64
	for off := 0; off < len(s.pcm); off += size {
		end := min(off+size, len(s.pcm))
		select {
		case out <- Chunk{Seq: seq, PCM: s.pcm[off:end]}:
			seq++
		case <-ctx.Done():
			return
		}
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}
	close(s.exhausted)
	<-ctx.Done()
}
