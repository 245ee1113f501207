package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/wonderwhisper/audio"
	"github.com/kbukum/wonderwhisper/cache"
	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/httpclient"
	"github.com/kbukum/wonderwhisper/transcription"
)

func writeTestWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.wav")
	if err := audio.WriteWAVFile(path, make([]byte, 3200)); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func testConfig(url string) Config {
	return Config{
		ID:       "whisper",
		BaseURL:  url,
		Model:    "base",
		Language: "en",
		HTTP: httpclient.Config{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
		},
	}
}

func TestTranscribeFile_SendsContractFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		for field, want := range map[string]string{"model": "base", "temperature": "0", "language": "en", "response_format": "json"} {
			if got := r.FormValue(field); got != want {
				t.Errorf("expected %s=%q, got %q", field, want, got)
			}
		}
		if _, hdr, err := r.FormFile("file"); err != nil || hdr.Filename != "audio.wav" {
			t.Errorf("expected file audio.wav, got %v %v", hdr, err)
		}
		_, _ = w.Write([]byte(`{"text":" hello world "}`))
	}))
	defer srv.Close()

	b, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := b.TranscribeFile(context.Background(), writeTestWAV(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Errorf("expected trimmed text, got %q", got)
	}
	if b.Kind() != transcription.KindFileUpload || b.ID() != "whisper" {
		t.Errorf("unexpected identity %s %s", b.ID(), b.Kind())
	}
}

func TestTranscribeFile_CacheHitSkipsUpload(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"text":"cached"}`))
	}))
	defer srv.Close()

	b, err := New(testConfig(srv.URL), WithCache(cache.New(cache.Config{})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := writeTestWAV(t)
	for i := 0; i < 3; i++ {
		got, err := b.TranscribeFile(context.Background(), path)
		if err != nil || got != "cached" {
			t.Fatalf("expected cached, got %q %v", got, err)
		}
	}
	copyPath := filepath.Join(t.TempDir(), "copy.wav")
	data, _ := os.ReadFile(path)
	_ = os.WriteFile(copyPath, data, 0o600)
	if _, err := b.TranscribeFile(context.Background(), copyPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single upload for identical audio, got %d", calls.Load())
	}
}

func TestTranscribeFile_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	b, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = b.TranscribeFile(context.Background(), writeTestWAV(t))
	if !apperrors.HasCode(err, apperrors.ErrCodeUpstreamRejected) {
		t.Errorf("expected UPSTREAM_REJECTED, got %v", err)
	}
}

func TestTranscribeFile_MissingFile(t *testing.T) {
	b, err := New(testConfig("http://localhost:1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.TranscribeFile(context.Background(), "/does/not/exist.wav"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTranscribeWAV_PromptOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		_, _ = w.Write([]byte(`{"text":"` + r.FormValue("prompt") + `"}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Prompt = "default"
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := b.TranscribeWAV(context.Background(), []byte("RIFF"), "lazy dog")
	if err != nil || got != "lazy dog" {
		t.Errorf("expected prompt echoed, got %q %v", got, err)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		code apperrors.ErrorCode
	}{
		{"missing key", Config{ID: "openai"}, apperrors.ErrCodeMissingCredential},
		{"bad endpoint", Config{ID: "whisper", BaseURL: "ftp://x"}, apperrors.ErrCodeInvalidEndpoint},
		{"no id", Config{BaseURL: "http://x", Model: "m"}, apperrors.ErrCodeInvalidInput},
		{"no base url", Config{ID: "custom", Model: "m"}, apperrors.ErrCodeInvalidEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !apperrors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestFactoryAppliesSettings(t *testing.T) {
	f := Factory("groq", Config{})
	b, err := f(transcription.Settings{APIKey: "k", Model: "distil", Language: "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ub := b.(*Backend)
	if ub.Model() != "distil" || ub.cfg.BaseURL != "https://api.groq.com/openai/v1" || ub.cfg.Language != "de" {
		t.Errorf("unexpected config %+v", ub.cfg)
	}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"strict", `{"text":"hello"}`, "hello", false},
		{"extra fields", `{"text":"hi","language":"en","duration":1.2}`, "hi", false},
		{"number", `{"text":42}`, "42", false},
		{"bool", `{"text":true}`, "true", false},
		{"null", `{"text":null}`, "", false},
		{"absent", `{"language":"en"}`, "", false},
		{"plain text", "  hello there\n", "hello there", false},
		{"json string", `"quoted"`, "quoted", false},
		{"empty", "", "", false},
		{"broken object", `{"text":`, "", true},
		{"object text", `{"text":{"a":1}}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseText([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr && !apperrors.HasCode(err, apperrors.ErrCodeDecodingFailed) {
				t.Errorf("expected DECODING_FAILED, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
