package dictation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kbukum/wonderwhisper/audio"
	"github.com/kbukum/wonderwhisper/transcription"
)

type fakeSource struct {
	chunks   []audio.Chunk
	startErr error

	mu      sync.Mutex
	ch      chan audio.Chunk
	stopped int
}

func (f *fakeSource) Start(context.Context) (<-chan audio.Chunk, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = make(chan audio.Chunk, len(f.chunks))
	for _, c := range f.chunks {
		f.ch <- c
	}
	return f.ch, nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
	f.stopped++
	return nil
}

func pcmChunks(n, size int) []audio.Chunk {
	out := make([]audio.Chunk, n)
	for i := range out {
		pcm := make([]byte, size)
		for j := range pcm {
			pcm[j] = byte(i + j)
		}
		out[i] = audio.Chunk{Seq: uint64(i), PCM: pcm}
	}
	return out
}

type fakeStream struct {
	text   string
	endErr error

	mu      sync.Mutex
	fed     int
	ended   bool
	aborted bool
}

func (s *fakeStream) Feed(c audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fed += len(c.PCM)
	return nil
}

func (s *fakeStream) End(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	return s.text, s.endErr
}

func (s *fakeStream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

type fakeBackend struct {
	id        string
	kind      transcription.Kind
	fileText  string
	fileErr   error
	stream    *fakeStream
	openErr   error
	openDelay time.Duration

	mu    sync.Mutex
	paths []string
}

func (b *fakeBackend) ID() string               { return b.id }
func (b *fakeBackend) Kind() transcription.Kind { return b.kind }

func (b *fakeBackend) TranscribeFile(_ context.Context, path string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	return b.fileText, b.fileErr
}

func (b *fakeBackend) OpenStream(ctx context.Context) (transcription.Stream, error) {
	if !b.kind.Streams() {
		return nil, transcription.ErrNotStreaming(b.id)
	}
	select {
	case <-time.After(b.openDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.stream, nil
}

func (b *fakeBackend) fileCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.paths)
}

type fakeInserter struct {
	err error

	mu    sync.Mutex
	texts []string
}

func (f *fakeInserter) Insert(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

type fakeRewrite struct {
	out string
	err error

	mu    sync.Mutex
	input string
}

func (f *fakeRewrite) Process(_ context.Context, contextText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input = contextText
	return f.out, f.err
}

type fakeContext struct{}

func (fakeContext) ScreenText(context.Context) (string, error) { return "Invoice #42 for ACME", nil }
func (fakeContext) SelectedText(context.Context) (string, error) {
	return "", errors.New("nothing selected")
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s.State)
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

// gatedSource blocks in Start until release is closed.
type gatedSource struct {
	fakeSource
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSource(startErr error) *gatedSource {
	return &gatedSource{
		fakeSource: fakeSource{chunks: pcmChunks(2, 3200), startErr: startErr},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (g *gatedSource) Start(ctx context.Context) (<-chan audio.Chunk, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.fakeSource.Start(ctx)
}

type warmBackend struct {
	*fakeBackend
	warmed chan struct{}
}

func (b *warmBackend) Prewarm(context.Context) bool {
	b.warmed <- struct{}{}
	return true
}
