package transcribe

import (
	"context"
	"path/filepath"
	"sync/atomic"
)

// MockTranscriber is a canned transcriber for tests. The zero value returns
// a deterministic transcript naming the audio file.
type MockTranscriber struct {
	Response string
	Err      error
	calls    atomic.Int64
}

// Transcribe returns the canned response or error.
func (m *MockTranscriber) Transcribe(ctx context.Context, audioPath, mimeHint string) (string, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response == "" {
		return "transcript of " + filepath.Base(audioPath), nil
	}
	return m.Response, nil
}

// Calls returns how many times Transcribe was invoked.
func (m *MockTranscriber) Calls() int { return int(m.calls.Load()) }

// Close is a no-op.
func (m *MockTranscriber) Close() error { return nil }
