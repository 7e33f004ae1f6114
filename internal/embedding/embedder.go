// Package embedding converts chunk text into fixed-dimension vectors.
// Remote backends (OpenAI-compatible REST, Gemini) and a local ONNX runtime
// sit behind one interface; the batch scheduler bounds in-flight calls.
package embedding

import (
	"context"
	"errors"
)

// ErrEmbeddingFailed reports a backend that could not produce vectors.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Embedder produces vector embeddings for text. Every vector an instance
// returns has exactly Dimensions() elements.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
