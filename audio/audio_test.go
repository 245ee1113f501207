package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
)

func tone(samples int) []byte {
	pcm := make([]byte, samples*BytesPerSample)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16((i%200)*100-10000)))
	}
	return pcm
}

func TestBytesFor(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{800 * time.Millisecond, 25600},
		{250 * time.Millisecond, 8000},
		{time.Second, 32000},
		{0, 0},
	}
	for _, tt := range tests {
		if got := BytesFor(tt.d); got != tt.want {
			t.Errorf("BytesFor(%s): expected %d, got %d", tt.d, tt.want, got)
		}
	}
	if got := DurationOf(32000); got != time.Second {
		t.Errorf("expected 1s, got %s", got)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := tone(1600)
	data, err := EncodeWAV(pcm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("expected RIFF/WAVE header, got %q", data[:12])
	}
	decoded, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Errorf("expected %d identical bytes, got %d", len(pcm), len(decoded))
	}
}

func TestWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rec.wav")
	pcm := tone(320)
	if err := WriteWAVFile(path, pcm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("expected file round trip to preserve samples")
	}
}

func TestEncodeWAV_OddLength(t *testing.T) {
	pcm := append(tone(320), 0x7f)
	data, err := EncodeWAV(pcm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, pcm[:len(pcm)-1]) {
		t.Errorf("expected %d bytes with the partial sample dropped, got %d", len(pcm)-1, len(got))
	}
}

func TestDecodeWAV_Garbage(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("definitely not audio")))
	if !apperrors.HasCode(err, apperrors.ErrCodeDecodingFailed) {
		t.Errorf("expected DECODING_FAILED, got %v", err)
	}
}

func TestRecording(t *testing.T) {
	r := NewRecording()
	r.Append(Chunk{Seq: 0, PCM: []byte{1, 2}})
	r.Append(Chunk{Seq: 1, PCM: []byte{3, 4}})
	if r.Len() != 4 || r.Chunks() != 2 {
		t.Errorf("expected 4 bytes in 2 chunks, got %d in %d", r.Len(), r.Chunks())
	}
	b := r.Bytes()
	b[0] = 9
	if r.Bytes()[0] != 1 {
		t.Error("expected Bytes to return a copy")
	}
	r.Reset()
	if r.Len() != 0 {
		t.Errorf("expected empty after reset, got %d", r.Len())
	}
}

func TestFileSource_EmitsAllChunksInOrder(t *testing.T) {
	pcm := tone(BytesFor(350*time.Millisecond) / BytesPerSample)
	src := NewFileSource(pcm, FileSourceConfig{ChunkDuration: 100 * time.Millisecond})

	chunks, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []byte
	var seqs []uint64
	for len(got) < len(pcm) {
		c := <-chunks
		got = append(got, c.PCM...)
		seqs = append(seqs, c.Seq)
	}
	<-src.Exhausted()
	if err := src.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := <-chunks; ok {
		t.Error("expected channel closed after Stop")
	}
	if !bytes.Equal(got, pcm) {
		t.Error("expected emitted audio to equal input")
	}
	for i, s := range seqs {
		if s != uint64(i) {
			t.Errorf("expected seq %d, got %d", i, s)
		}
	}
	if len(seqs) != 4 {
		t.Errorf("expected 4 chunks, got %d", len(seqs))
	}
}

func TestFileSource_StopBeforeExhausted(t *testing.T) {
	src := NewFileSource(tone(16000), FileSourceConfig{ChunkDuration: 100 * time.Millisecond, Realtime: true})
	chunks, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-chunks
	if err := src.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range chunks {
	}
	select {
	case <-src.Exhausted():
		t.Error("expected source not exhausted")
	default:
	}
	if _, err := src.Start(context.Background()); err == nil {
		t.Error("expected second Start to fail")
	}
}
