package audio

import "time"

// Capture format. Nothing else is accepted.
const (
	SampleRate     = 16000
	Channels       = 1
	BitDepth       = 16
	BytesPerSample = BitDepth / 8
	BytesPerSecond = SampleRate * Channels * BytesPerSample
)

// BytesFor returns the PCM byte count covering d, rounded down to a whole sample.
func BytesFor(d time.Duration) int {
	n := int(int64(d) * BytesPerSecond / int64(time.Second))
	return n - n%BytesPerSample
}

// DurationOf returns the playback duration of n PCM bytes.
func DurationOf(n int) time.Duration {
	return time.Duration(int64(n) * int64(time.Second) / BytesPerSecond)
}

// Chunk is a slice of captured PCM. Seq increases by one per chunk within
// a session.
type Chunk struct {
	Seq uint64
	PCM []byte
}
