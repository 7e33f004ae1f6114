// Package vectorstore persists chunk embeddings and answers nearest-neighbor
// queries over them.
package vectorstore

import (
	"context"
	"errors"
	"strings"

	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/pkg/utils"
)

// MetaContentLimit bounds the chunk text copied into a record's metadata.
// The full text lives in the catalog; the projection exists so query hits
// are readable without a second lookup.
const MetaContentLimit = 512

var (
	// ErrDimensionMismatch reports a vector whose length conflicts with the
	// dimension the store was prepared for.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrStoreFailed wraps backend write and query failures.
	ErrStoreFailed = errors.New("vector store operation failed")
)

// Metric selects the similarity function used by an index.
type Metric string

const (
	// MetricIP ranks by inner product. Equivalent to cosine similarity when
	// vectors are L2-normalized, which every bundled embedder guarantees.
	MetricIP Metric = "ip"
	// MetricL2 ranks by Euclidean distance.
	MetricL2 Metric = "l2"
)

// Field names shared by every backend. Query filters key on these.
const (
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldDocumentID = "document_id"
	FieldFilename   = "filename"
	FieldCategory   = "category"
	FieldFormat     = "format"
	FieldChunkIndex = "chunk_index"
	FieldContent    = "content"
	FieldSteps      = "steps"
)

// Metadata is the bounded projection stored alongside each vector. It carries
// enough to attribute a hit to its source document and chunk without a
// catalog lookup.
type Metadata struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Category   string `json:"category"`
	Format     string `json:"format"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
	Steps      string `json:"steps,omitempty"`
}

// Record is one stored vector with its metadata. IDs are stable: upserting
// the same ID twice leaves one record.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// QueryResult is a single search hit. Score ordering is uniform across
// backends and metrics: larger is closer.
type QueryResult struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Store is the vector database boundary.
type Store interface {
	// EnsureIndex prepares the backing collection for vectors of the given
	// dimension. Idempotent, but fails with ErrDimensionMismatch when the
	// existing collection was built for a different dimension.
	EnsureIndex(ctx context.Context, dimensions int, metric Metric) error
	// Upsert writes records, overwriting any existing record with the same ID.
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to topK records nearest to the query vector, best
	// first. A non-empty filter restricts hits to records matching every
	// listed field exactly; unknown filter keys match nothing.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]*QueryResult, error)
	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
	Close() error
}

// ProjectMetadata builds the stored metadata for one chunk of a document.
func ProjectMetadata(doc *models.Document, chunk models.Chunk) Metadata {
	return Metadata{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Category:   string(doc.Metadata.Category),
		Format:     doc.Metadata.Format,
		ChunkIndex: chunk.Index,
		Content:    utils.Truncate(chunk.Text, MetaContentLimit),
		Steps:      strings.Join(doc.Metadata.Steps, ","),
	}
}
