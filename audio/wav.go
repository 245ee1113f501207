package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	apperrors "github.com/kbukum/wonderwhisper/errors"
)

// EncodeWAV wraps PCM16 mono 16 kHz samples in a WAV container. A trailing
// partial sample is dropped.
func EncodeWAV(pcm []byte) ([]byte, error) {
	var buf seekBuffer
	if err := writeWAV(&buf, pcm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVFile writes the samples to path as WAV, creating parent directories.
func WriteWAVFile(path string, pcm []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("audio: create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	if err := writeWAV(f, pcm); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func writeWAV(w io.WriteSeeker, pcm []byte) error {
	pcm = pcm[:len(pcm)-len(pcm)%BytesPerSample]
	enc := wav.NewEncoder(w, SampleRate, BitDepth, Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           make([]int, len(pcm)/BytesPerSample),
		SourceBitDepth: BitDepth,
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return nil
}

// DecodeWAV returns the PCM16LE samples of a 16 kHz mono 16-bit WAV.
func DecodeWAV(r io.ReadSeeker) ([]byte, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, apperrors.DecodingFailed("wav", errors.New("not a valid wav file"))
	}
	if dec.SampleRate != SampleRate || dec.NumChans != Channels || dec.BitDepth != BitDepth {
		return nil, apperrors.InvalidInput("wav", fmt.Sprintf(
			"want %d Hz mono %d-bit, got %d Hz %d ch %d-bit",
			SampleRate, BitDepth, dec.SampleRate, dec.NumChans, dec.BitDepth))
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.DecodingFailed("wav", err)
	}
	if buf == nil {
		return nil, nil
	}
	pcm := make([]byte, len(buf.Data)*BytesPerSample)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v)))
	}
	return pcm, nil
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return DecodeWAV(f)
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back
// to patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

// Bytes returns the written contents.
func (b *seekBuffer) Bytes() []byte { return bytes.Clone(b.data) }
