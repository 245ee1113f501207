package transcription

import (
	"context"

	"github.com/kbukum/wonderwhisper/audio"
)

// Kind tags the backend variant. The orchestrator switches on it.
type Kind int

const (
	KindFileUpload Kind = iota
	KindRealtimeSocket
	KindChunkedStream
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFileUpload:
		return "file-upload"
	case KindRealtimeSocket:
		return "realtime-socket"
	case KindChunkedStream:
		return "chunked-stream"
	default:
		return "unknown"
	}
}

// Streams reports whether backends of this kind support OpenStream.
func (k Kind) Streams() bool {
	return k == KindRealtimeSocket || k == KindChunkedStream
}

// Backend is a speech-to-text service.
type Backend interface {
	// ID returns the backend id used in cache keys and logs.
	ID() string
	Kind() Kind
	// TranscribeFile transcribes a WAV file. Always available.
	TranscribeFile(ctx context.Context, path string) (string, error)
	// OpenStream starts a live session. Only valid when Kind().Streams().
	OpenStream(ctx context.Context) (Stream, error)
}

// Stream is one live transcription session.
type Stream interface {
	// Feed queues a chunk. It does not block on the network.
	Feed(chunk audio.Chunk) error
	// End finalizes the session and returns the assembled transcript.
	End(ctx context.Context) (string, error)
	// Abort tears the session down without a transcript. Safe to call
	// at any time, including after End.
	Abort()
}

// Segment is one piece of a transcript. Seq orders segments.
type Segment struct {
	Seq     uint64
	Text    string
	IsFinal bool
}
