package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/hyperjump/torikomi/pkg/utils"
)

// MemoryStore is an in-memory Store using brute-force search. Suitable for
// tests and small corpora. With a non-empty path it persists to a single
// binary file after every write and restores from it on creation.
type MemoryStore struct {
	dimensions int
	metric     Metric
	ids        []string
	vectors    [][]float32
	meta       []Metadata
	byID       map[string]int
	path       string
	mu         sync.RWMutex
}

// NewMemoryStore creates a memory store. An empty path means volatile.
func NewMemoryStore(path string) (*MemoryStore, error) {
	s := &MemoryStore{
		ids:     make([]string, 0),
		vectors: make([][]float32, 0),
		meta:    make([]Metadata, 0),
		byID:    make(map[string]int),
		path:    path,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndex fixes the store's dimension. A persisted file fixes it too, so
// a dimension change after data exists fails here instead of corrupting the
// file on the next write.
func (s *MemoryStore) EnsureIndex(_ context.Context, dimensions int, metric Metric) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions != 0 && s.dimensions != dimensions {
		return fmt.Errorf("%w: store holds %d-dimensional vectors, want %d", ErrDimensionMismatch, s.dimensions, dimensions)
	}
	s.dimensions = dimensions
	s.metric = metric
	return nil
}

// Upsert writes records, replacing any existing record with the same ID.
// The whole batch is validated before the first write, so a bad record never
// leaves partial state behind.
func (s *MemoryStore) Upsert(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions == 0 {
		return fmt.Errorf("store not prepared: call EnsureIndex first")
	}
	for _, r := range records {
		if len(r.Vector) != s.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, store expects %d", ErrDimensionMismatch, r.ID, len(r.Vector), s.dimensions)
		}
	}
	for _, r := range records {
		vec := make([]float32, s.dimensions)
		copy(vec, r.Vector)
		if i, ok := s.byID[r.ID]; ok {
			s.vectors[i] = vec
			s.meta[i] = r.Metadata
			continue
		}
		s.byID[r.ID] = len(s.ids)
		s.ids = append(s.ids, r.ID)
		s.vectors = append(s.vectors, vec)
		s.meta = append(s.meta, r.Metadata)
	}
	return s.saveLocked()
}

// Query scans every record and returns the topK closest matches, best first.
func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int, filter map[string]string) ([]*QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 || len(s.ids) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d", ErrDimensionMismatch, len(vector), s.dimensions)
	}
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, 0, len(s.ids))
	for i, vec := range s.vectors {
		if !matchesFilter(s.meta[i], filter) {
			continue
		}
		var score float64
		if s.metric == MetricL2 {
			score = -utils.L2Distance(vector, vec)
		} else {
			score = utils.Dot(vector, vec)
		}
		scores = append(scores, scored{idx: i, score: score})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]*QueryResult, topK)
	for i := 0; i < topK; i++ {
		out[i] = &QueryResult{
			ID:       s.ids[scores[i].idx],
			Score:    scores[i].score,
			Metadata: s.meta[scores[i].idx],
		}
	}
	return out, nil
}

// Delete removes records by ID, rebuilding the slices.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	newIDs := make([]string, 0, len(s.ids))
	newVectors := make([][]float32, 0, len(s.vectors))
	newMeta := make([]Metadata, 0, len(s.meta))
	for i, id := range s.ids {
		if removeSet[id] {
			continue
		}
		newIDs = append(newIDs, id)
		newVectors = append(newVectors, s.vectors[i])
		newMeta = append(newMeta, s.meta[i])
	}
	if len(newIDs) == len(s.ids) {
		return nil
	}
	s.ids = newIDs
	s.vectors = newVectors
	s.meta = newMeta
	s.byID = make(map[string]int, len(newIDs))
	for i, id := range newIDs {
		s.byID[id] = i
	}
	return s.saveLocked()
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.ids)), nil
}

// Close is a no-op; writes are persisted eagerly.
func (s *MemoryStore) Close() error {
	return nil
}

func matchesFilter(meta Metadata, filter map[string]string) bool {
	for key, want := range filter {
		var got string
		switch key {
		case FieldDocumentID:
			got = meta.DocumentID
		case FieldFilename:
			got = meta.Filename
		case FieldCategory:
			got = meta.Category
		case FieldFormat:
			got = meta.Format
		case FieldChunkIndex:
			got = strconv.Itoa(meta.ChunkIndex)
		case FieldContent:
			got = meta.Content
		case FieldSteps:
			got = meta.Steps
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// saveLocked persists the store to its path. Callers hold mu.
// Format: dimension (4), n (4), then per record: idLen (4), id bytes,
// vector (dimension*4 bytes), metaLen (4), metadata JSON bytes.
func (s *MemoryStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create store file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(s.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(s.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range s.ids {
		idBytes := []byte(id)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(s.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
		metaBytes, err := json.Marshal(s.meta[i])
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(len(metaBytes))); err != nil {
			return fmt.Errorf("write metadata len: %w", err)
		}
		if _, err := f.Write(metaBytes); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}
	return nil
}

// load restores persisted records. Called only from the constructor, before
// the store is shared. A missing file leaves the store empty.
func (s *MemoryStore) load() error {
	if s.path == "" {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	s.dimensions = int(dim)
	vecBuf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(f, vecBuf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		var metaLen uint32
		if err := binary.Read(f, binary.LittleEndian, &metaLen); err != nil {
			return fmt.Errorf("read metadata len: %w", err)
		}
		metaBytes := make([]byte, metaLen)
		if _, err := io.ReadFull(f, metaBytes); err != nil {
			return fmt.Errorf("read metadata: %w", err)
		}
		var meta Metadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
		s.byID[string(idBytes)] = len(s.ids)
		s.ids = append(s.ids, string(idBytes))
		s.vectors = append(s.vectors, bytesToFloat32Slice(vecBuf))
		s.meta = append(s.meta, meta)
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
