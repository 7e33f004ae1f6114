// Package transcribe turns audio files into text via a remote
// speech-to-text service.
package transcribe

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyTranscript means the service returned no text for the audio.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrUnsupportedMime means the audio format is not accepted by the service.
	ErrUnsupportedMime = errors.New("unsupported audio format")
	// ErrTranscriptionFailed covers provider-side and transport failures.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Transcriber converts one audio file into text. Calls are blocking and run
// to completion or failure.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, mimeHint string) (string, error)
	Close() error
}

var audioMimes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

// MimeForFile returns the audio MIME type for path's extension, or "" when
// unknown (the service is left to sniff the content).
func MimeForFile(path string) string {
	return audioMimes[strings.ToLower(filepath.Ext(path))]
}

// SupportedMime reports whether the service accepts the given MIME type.
// The empty hint is accepted.
func SupportedMime(mime string) bool {
	if mime == "" {
		return true
	}
	for _, m := range audioMimes {
		if m == mime {
			return true
		}
	}
	return false
}
