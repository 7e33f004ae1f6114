package pipeline

import (
	"errors"
	"fmt"

	"github.com/hyperjump/torikomi/internal/classify"
	"github.com/hyperjump/torikomi/internal/embedding"
	"github.com/hyperjump/torikomi/internal/extract"
	"github.com/hyperjump/torikomi/internal/media"
	"github.com/hyperjump/torikomi/internal/transcribe"
	"github.com/hyperjump/torikomi/internal/vectorstore"
)

// Kind classifies a job failure for API responses and CLI messages.
type Kind string

const (
	KindUnsupportedFormat    Kind = "unsupported_format"
	KindSizeLimitExceeded    Kind = "size_limit_exceeded"
	KindConversionFailure    Kind = "conversion_failure"
	KindTranscriptionFailure Kind = "transcription_failure"
	KindEmbeddingFailure     Kind = "embedding_failure"
	KindStoreFailure         Kind = "store_failure"
)

// Error is the terminal failure of one ingestion job. It wraps the
// originating error so callers can still match package sentinels with
// errors.Is.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf maps package sentinels to failure kinds. Returns the empty Kind when
// err matches no sentinel; the pipeline then falls back to the failing
// stage's characteristic kind.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, classify.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, classify.ErrSizeLimitExceeded):
		return KindSizeLimitExceeded
	case errors.Is(err, media.ErrToolMissing), errors.Is(err, media.ErrConversionFailed):
		return KindConversionFailure
	case errors.Is(err, transcribe.ErrTranscriptionFailed),
		errors.Is(err, transcribe.ErrEmptyTranscript),
		errors.Is(err, transcribe.ErrUnsupportedMime),
		errors.Is(err, extract.ErrNoText):
		return KindTranscriptionFailure
	case errors.Is(err, embedding.ErrEmbeddingFailed):
		return KindEmbeddingFailure
	case errors.Is(err, vectorstore.ErrStoreFailed), errors.Is(err, vectorstore.ErrDimensionMismatch):
		return KindStoreFailure
	}
	return ""
}
