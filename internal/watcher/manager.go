package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/docid"
	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/internal/pipeline"
	"github.com/hyperjump/torikomi/internal/storage"
	"github.com/hyperjump/torikomi/internal/vectorstore"
)

// Manager ties the filesystem watcher to the ingestion pipeline. Changed
// files are re-ingested under path-derived IDs, so editing a watched file
// replaces its chunks instead of accumulating duplicates. Removed files have
// their catalog row and vectors deleted.
type Manager struct {
	watcher *Watcher
	pool    *ants.Pool
	pipe    *pipeline.Pipeline
	catalog storage.Catalog
	store   vectorstore.Store
	logger  *zap.Logger
}

// ManagerConfig holds the watch settings the Manager needs.
type ManagerConfig struct {
	Roots      []string
	Extensions []string
	Recursive  bool
	Debounce   time.Duration
	Workers    int
}

// NewManager creates a Manager. Ingestion runs on a bounded worker pool so a
// directory full of files does not spawn one pipeline run per file at once.
func NewManager(pipe *pipeline.Pipeline, catalog storage.Catalog, store vectorstore.Store, cfg ManagerConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		pool:    pool,
		pipe:    pipe,
		catalog: catalog,
		store:   store,
		logger:  logger,
	}
	opts := []WatcherOption{WithLogger(logger)}
	if cfg.Debounce > 0 {
		opts = append(opts, WithDebounce(cfg.Debounce))
	}
	m.watcher = NewWatcher(cfg.Roots, cfg.Extensions, cfg.Recursive, m.enqueueIngest, m.enqueueRemove, opts...)
	return m, nil
}

// Start begins watching. It returns once the watcher is running.
func (m *Manager) Start(ctx context.Context) error {
	return m.watcher.Start(ctx)
}

// SyncExisting ingests files already present in the watched roots.
func (m *Manager) SyncExisting() {
	m.watcher.SyncExistingFiles()
}

// Stop stops the watcher and releases the worker pool. In-flight ingests
// finish; debounced events that have not fired yet are dropped.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.pool.Release()
}

// Directories returns the watched roots.
func (m *Manager) Directories() []string {
	return m.watcher.Directories()
}

// AddDirectory starts watching a new root. When syncExisting is true the
// files already inside it are ingested.
func (m *Manager) AddDirectory(path string, syncExisting bool) error {
	return m.watcher.AddDirectory(path, syncExisting)
}

// RemoveDirectory stops watching a root. Documents ingested from it stay.
func (m *Manager) RemoveDirectory(path string) error {
	return m.watcher.RemoveDirectory(path)
}

func (m *Manager) enqueueIngest(path string) {
	if err := m.pool.Submit(func() { m.ingest(path) }); err != nil {
		m.logger.Warn("watch ingest not queued", zap.String("path", path), zap.Error(err))
	}
}

func (m *Manager) enqueueRemove(path string) {
	if err := m.pool.Submit(func() { m.remove(path) }); err != nil {
		m.logger.Warn("watch removal not queued", zap.String("path", path), zap.Error(err))
	}
}

func (m *Manager) ingest(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// The file may already be gone; a Remove event follows in that case.
		m.logger.Warn("watched file unreadable", zap.String("path", path), zap.Error(err))
		return
	}
	upload := &models.RawUpload{Filename: filepath.Base(path), Data: data}
	doc, err := m.pipe.ProcessWithID(context.Background(), upload, docid.FromPath(path))
	if err != nil {
		m.logger.Warn("watched file ingestion failed", zap.String("path", path), zap.Error(err))
		return
	}
	m.logger.Info("watched file ingested",
		zap.String("path", path),
		zap.String("id", doc.ID),
		zap.Int("chunks", doc.ChunkCount))
}

func (m *Manager) remove(path string) {
	id := docid.FromPath(path)
	rec, err := m.catalog.GetRecord(context.Background(), id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("watched file removal lookup failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if rec.ChunkCount > 0 && m.store != nil {
		ids := make([]string, rec.ChunkCount)
		for i := range ids {
			ids[i] = docid.ChunkID(id, i)
		}
		if err := m.store.Delete(context.Background(), ids); err != nil {
			m.logger.Warn("watched file vector cleanup failed", zap.String("path", path), zap.Error(err))
		}
	}
	if err := m.catalog.DeleteRecord(context.Background(), id); err != nil {
		m.logger.Warn("watched file catalog cleanup failed", zap.String("path", path), zap.Error(err))
		return
	}
	m.logger.Info("watched file removed", zap.String("path", path), zap.String("id", id))
}
