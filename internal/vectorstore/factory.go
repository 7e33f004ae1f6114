package vectorstore

import (
	"context"
	"fmt"
	"time"
)

// Backend identifies a Store implementation.
type Backend string

const (
	// BackendMemory keeps vectors in process memory, optionally persisted to
	// a single file. Good for small corpora and tests.
	BackendMemory Backend = "memory"
	// BackendMilvus stores vectors in a Milvus collection.
	BackendMilvus Backend = "milvus"
)

// Config selects and parameterizes a Store backend.
type Config struct {
	Backend    string
	Path       string // memory: persistence file, empty for volatile
	Address    string // milvus: server address, e.g. localhost:19530
	Username   string
	Password   string
	Database   string
	Collection string
	Timeout    time.Duration
}

// New creates the configured Store. An empty backend selects memory.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch Backend(cfg.Backend) {
	case BackendMemory, "":
		return NewMemoryStore(cfg.Path)
	case BackendMilvus:
		return NewMilvusStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s (supported: memory, milvus)", cfg.Backend)
	}
}
