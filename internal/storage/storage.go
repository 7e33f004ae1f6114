// Package storage persists the ingestion catalog: one row per processed
// upload, carrying status and metadata but never the source bytes.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/torikomi/internal/models"
)

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = errors.New("record not found")

// Stats are catalog-wide aggregates for the status surface.
type Stats struct {
	Total    int64 `json:"total"`
	Complete int64 `json:"complete"`
	Failed   int64 `json:"failed"`
	Chunks   int64 `json:"chunks"`
}

// Catalog defines ingestion-record persistence operations.
type Catalog interface {
	// Record operations. SaveRecord has upsert semantics: writing an existing
	// ID replaces the row but keeps its original created_at.
	SaveRecord(ctx context.Context, rec *models.IngestionRecord) error
	GetRecord(ctx context.Context, id string) (*models.IngestionRecord, error)
	DeleteRecord(ctx context.Context, id string) error
	ListRecords(ctx context.Context, offset, limit int) ([]*models.IngestionRecord, error)

	// Stats
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}
