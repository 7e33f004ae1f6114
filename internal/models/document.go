// Package models defines core data structures for uploads, chunks, and documents.
package models

import "time"

// Chunk is a bounded span of a document's text. Chunks of one document form
// an ordered sequence; Index makes the order recoverable when chunks are
// stored independently. Overlap is the byte length of the leading span seeded
// from the previous chunk's tail (0 for the first chunk).
type Chunk struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Overlap int    `json:"overlap"`
}

// TabularInfo describes a spreadsheet-like source.
type TabularInfo struct {
	Sheets int `json:"sheets"`
	Rows   int `json:"rows"`
}

// Metadata is the structured record attached to a document and projected into
// every vector record derived from it. Tabular is set only for tabular sources.
type Metadata struct {
	Category  Category     `json:"category"`
	Format    string       `json:"format"`
	CreatedAt time.Time    `json:"created_at"`
	Steps     []string     `json:"steps,omitempty"`
	Tabular   *TabularInfo `json:"tabular,omitempty"`
}

// Document is the aggregate result of one ingestion job.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	Metadata   Metadata  `json:"metadata"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// IngestionRecord is the catalog row for one ingestion job. It carries
// metadata and status only; source bytes are never persisted.
type IngestionRecord struct {
	ID         string    `json:"id" db:"id"`
	Filename   string    `json:"filename" db:"filename"`
	Category   Category  `json:"category" db:"category"`
	Format     string    `json:"format" db:"format"`
	Status     string    `json:"status" db:"status"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	Error      string    `json:"error,omitempty" db:"error"`
	Steps      []string  `json:"steps,omitempty" db:"steps"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
