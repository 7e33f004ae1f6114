package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.mp3")
	if err := os.WriteFile(path, []byte("fake mp3 bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth header = %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello from the recording"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	text, err := c.Transcribe(context.Background(), writeAudioFixture(t), "audio/mpeg")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello from the recording" {
		t.Errorf("text = %q", text)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want default whisper-1", gotModel)
	}
}

func TestTranscribeEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Transcribe(context.Background(), writeAudioFixture(t), "")
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("got %v, want ErrEmptyTranscript", err)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Transcribe(context.Background(), writeAudioFixture(t), "")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Errorf("got %v, want ErrTranscriptionFailed", err)
	}
}

func TestTranscribeUnsupportedMime(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Transcribe(context.Background(), writeAudioFixture(t), "video/mp4")
	if !errors.Is(err, ErrUnsupportedMime) {
		t.Fatalf("got %v, want ErrUnsupportedMime", err)
	}
	if calls.Load() != 0 {
		t.Errorf("unsupported mime made %d network calls, want 0", calls.Load())
	}
}

func TestTranscribeRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"text":"second try"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxAttempts: 2, RetryDelay: time.Millisecond})
	text, err := c.Transcribe(context.Background(), writeAudioFixture(t), "")
	if err != nil {
		t.Fatalf("Transcribe with retry: %v", err)
	}
	if text != "second try" {
		t.Errorf("text = %q", text)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestTranscribeNoRetryByDefault(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.Transcribe(context.Background(), writeAudioFixture(t), ""); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("default config retried: %d calls", calls.Load())
	}
}

func TestMimeForFile(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"a.mp3", "audio/mpeg"},
		{"b.WAV", "audio/wav"},
		{"c.m4a", "audio/mp4"},
		{"e.flac", "audio/flac"},
		{"f.ogg", "audio/ogg"},
		{"d.unknown", ""},
		{"noext", ""},
	}
	for _, tc := range cases {
		if got := MimeForFile(tc.path); got != tc.want {
			t.Errorf("MimeForFile(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
