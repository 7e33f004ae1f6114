package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/torikomi/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingestions (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		category TEXT NOT NULL,
		format TEXT,
		status TEXT NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		steps TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ingestions_created_at ON ingestions(created_at);
	CREATE INDEX IF NOT EXISTS idx_ingestions_status ON ingestions(status);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRecord inserts or replaces the row for rec.ID. A replaced row keeps
// its original created_at so re-ingestion does not rewrite history.
func (s *SQLiteCatalog) SaveRecord(ctx context.Context, rec *models.IngestionRecord) error {
	stepsJSON, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingestions (id, filename, category, format, status, chunk_count, error, steps, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			category = excluded.category,
			format = excluded.format,
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			error = excluded.error,
			steps = excluded.steps,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Filename, string(rec.Category), rec.Format, rec.Status,
		rec.ChunkCount, rec.Error, string(stepsJSON), rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// GetRecord returns a record by ID.
func (s *SQLiteCatalog) GetRecord(ctx context.Context, id string) (*models.IngestionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, category, format, status, chunk_count, error, steps, created_at, updated_at
		 FROM ingestions WHERE id = ?`, id,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteRecord removes a record by ID. Deleting a missing ID is not an error.
func (s *SQLiteCatalog) DeleteRecord(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ingestions WHERE id = ?`, id)
	return err
}

// ListRecords returns records ordered newest first.
func (s *SQLiteCatalog) ListRecords(ctx context.Context, offset, limit int) ([]*models.IngestionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, category, format, status, chunk_count, error, steps, created_at, updated_at
		 FROM ingestions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.IngestionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Stats returns catalog-wide aggregates.
func (s *SQLiteCatalog) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'complete' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(chunk_count), 0)
		 FROM ingestions`,
	).Scan(&st.Total, &st.Complete, &st.Failed, &st.Chunks)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.IngestionRecord, error) {
	var rec models.IngestionRecord
	var category, stepsJSON string
	if err := row.Scan(&rec.ID, &rec.Filename, &category, &rec.Format, &rec.Status,
		&rec.ChunkCount, &rec.Error, &stepsJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Category = models.Category(category)
	if stepsJSON != "" {
		if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}
	return &rec, nil
}
