package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

const (
	DefaultMilvusCollection = "torikomi_chunks"
	DefaultMilvusTimeout    = 10 * time.Second

	milvusNlist  = 128
	milvusNprobe = "16"
)

// VarChar capacities. Content gets headroom over MetaContentLimit because
// Milvus measures length in bytes and the projection counts runes.
const (
	idMaxLen       = 128
	docIDMaxLen    = 128
	filenameMaxLen = 512
	categoryMaxLen = 32
	formatMaxLen   = 16
	contentMaxLen  = 2048
	stepsMaxLen    = 256
)

// MilvusStore is a Store backed by a Milvus collection. Records use the chunk
// ID as a VarChar primary key, so re-ingesting a document overwrites its
// previous vectors instead of accumulating duplicates.
type MilvusStore struct {
	client     *milvusclient.Client
	collection string
	dimensions int
	metric     Metric
}

// NewMilvusStore connects to Milvus. EnsureIndex must run before writes.
func NewMilvusStore(ctx context.Context, cfg Config) (*MilvusStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultMilvusTimeout
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultMilvusCollection
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus at %s: %w", cfg.Address, err)
	}
	return &MilvusStore{client: client, collection: collection}, nil
}

// EnsureIndex creates and loads the collection on first use. On an existing
// collection it verifies the embedding dimension instead.
func (s *MilvusStore) EnsureIndex(ctx context.Context, dimensions int, metric Metric) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", ErrStoreFailed, err)
	}
	if exists {
		if err := s.verifyDimension(ctx, dimensions); err != nil {
			return err
		}
	} else {
		if err := s.createCollection(ctx, dimensions, metric); err != nil {
			return err
		}
	}
	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("%w: load collection: %v", ErrStoreFailed, err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("%w: await collection load: %v", ErrStoreFailed, err)
	}
	s.dimensions = dimensions
	s.metric = metric
	return nil
}

func (s *MilvusStore) verifyDimension(ctx context.Context, dimensions int) error {
	desc, err := s.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("%w: describe collection: %v", ErrStoreFailed, err)
	}
	for _, field := range desc.Schema.Fields {
		if field.Name != FieldEmbedding {
			continue
		}
		dimParam, ok := field.TypeParams["dim"]
		if !ok {
			return fmt.Errorf("%w: field %s has no dim param", ErrStoreFailed, FieldEmbedding)
		}
		dim, err := strconv.Atoi(dimParam)
		if err != nil {
			return fmt.Errorf("%w: parse dim %q: %v", ErrStoreFailed, dimParam, err)
		}
		if dim != dimensions {
			return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, want %d", ErrDimensionMismatch, s.collection, dim, dimensions)
		}
		return nil
	}
	return fmt.Errorf("%w: collection %s has no %s field", ErrStoreFailed, s.collection, FieldEmbedding)
}

func (s *MilvusStore) createCollection(ctx context.Context, dimensions int, metric Metric) error {
	schema := entity.NewSchema().
		WithName(s.collection).
		WithDescription("ingested document chunks").
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).
			WithMaxLength(idMaxLen)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimensions))).
		WithField(varCharField(FieldDocumentID, docIDMaxLen)).
		WithField(varCharField(FieldFilename, filenameMaxLen)).
		WithField(varCharField(FieldCategory, categoryMaxLen)).
		WithField(varCharField(FieldFormat, formatMaxLen)).
		WithField(entity.NewField().
			WithName(FieldChunkIndex).
			WithDataType(entity.FieldTypeInt64)).
		WithField(varCharField(FieldContent, contentMaxLen)).
		WithField(varCharField(FieldSteps, stepsMaxLen))
	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema)); err != nil {
		return fmt.Errorf("%w: create collection: %v", ErrStoreFailed, err)
	}
	idx := index.NewIvfFlatIndex(milvusMetric(metric), milvusNlist)
	idxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("%w: create index: %v", ErrStoreFailed, err)
	}
	if err := idxTask.Await(ctx); err != nil {
		return fmt.Errorf("%w: await index: %v", ErrStoreFailed, err)
	}
	return nil
}

// Upsert writes records in one column batch and flushes so they are
// immediately visible to queries.
func (s *MilvusStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if s.dimensions == 0 {
		return fmt.Errorf("store not prepared: call EnsureIndex first")
	}
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	docIDs := make([]string, len(records))
	filenames := make([]string, len(records))
	categories := make([]string, len(records))
	formats := make([]string, len(records))
	chunkIndexes := make([]int64, len(records))
	contents := make([]string, len(records))
	steps := make([]string, len(records))
	for i, r := range records {
		if len(r.Vector) != s.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, collection expects %d", ErrDimensionMismatch, r.ID, len(r.Vector), s.dimensions)
		}
		ids[i] = r.ID
		vectors[i] = r.Vector
		docIDs[i] = r.Metadata.DocumentID
		filenames[i] = r.Metadata.Filename
		categories[i] = r.Metadata.Category
		formats[i] = r.Metadata.Format
		chunkIndexes[i] = int64(r.Metadata.ChunkIndex)
		contents[i] = r.Metadata.Content
		steps[i] = r.Metadata.Steps
	}
	cols := []column.Column{
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnFloatVector(FieldEmbedding, s.dimensions, vectors),
		column.NewColumnVarChar(FieldDocumentID, docIDs),
		column.NewColumnVarChar(FieldFilename, filenames),
		column.NewColumnVarChar(FieldCategory, categories),
		column.NewColumnVarChar(FieldFormat, formats),
		column.NewColumnInt64(FieldChunkIndex, chunkIndexes),
		column.NewColumnVarChar(FieldContent, contents),
		column.NewColumnVarChar(FieldSteps, steps),
	}
	if _, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection, cols...)); err != nil {
		return fmt.Errorf("%w: upsert %d records: %v", ErrStoreFailed, len(records), err)
	}
	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(s.collection))
	if err != nil {
		return fmt.Errorf("%w: flush: %v", ErrStoreFailed, err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("%w: await flush: %v", ErrStoreFailed, err)
	}
	return nil
}

// Query performs an ANN search, optionally restricted by a boolean filter
// expression built from the filter map.
func (s *MilvusStore) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]*QueryResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	opt := milvusclient.NewSearchOption(s.collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", milvusNprobe).
		WithOutputFields(FieldDocumentID, FieldFilename, FieldCategory, FieldFormat, FieldChunkIndex, FieldContent, FieldSteps)
	if expr := filterExpr(filter); expr != "" {
		opt = opt.WithFilter(expr)
	}
	results, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrStoreFailed, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	res := results[0]
	out := make([]*QueryResult, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		hit := &QueryResult{Score: float64(res.Scores[i])}
		// Milvus reports raw L2 distances; negate so larger stays closer.
		if s.metric == MetricL2 {
			hit.Score = -hit.Score
		}
		if idCol, ok := res.IDs.(*column.ColumnVarChar); ok {
			hit.ID = idCol.Data()[i]
		}
		for _, field := range res.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				setMetaString(&hit.Metadata, col.Name(), col.Data()[i])
			case *column.ColumnInt64:
				if col.Name() == FieldChunkIndex {
					hit.Metadata.ChunkIndex = int(col.Data()[i])
				}
			}
		}
		out = append(out, hit)
	}
	return out, nil
}

// Delete removes records by primary key.
func (s *MilvusStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithStringIDs(FieldID, ids)); err != nil {
		return fmt.Errorf("%w: delete %d records: %v", ErrStoreFailed, len(ids), err)
	}
	return nil
}

// Count returns the collection's row count.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(s.collection))
	if err != nil {
		return 0, fmt.Errorf("%w: collection stats: %v", ErrStoreFailed, err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// Close releases the client connection.
func (s *MilvusStore) Close() error {
	return s.client.Close(context.Background())
}

func varCharField(name string, maxLen int64) *entity.Field {
	return entity.NewField().WithName(name).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxLen)
}

func milvusMetric(metric Metric) entity.MetricType {
	if metric == MetricL2 {
		return entity.L2
	}
	return entity.IP
}

func setMetaString(meta *Metadata, name, value string) {
	switch name {
	case FieldDocumentID:
		meta.DocumentID = value
	case FieldFilename:
		meta.Filename = value
	case FieldCategory:
		meta.Category = value
	case FieldFormat:
		meta.Format = value
	case FieldContent:
		meta.Content = value
	case FieldSteps:
		meta.Steps = value
	}
}

// filterExpr renders a field filter as a Milvus boolean expression. Keys are
// sorted so the expression is deterministic.
func filterExpr(filter map[string]string) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	terms := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == FieldChunkIndex {
			terms = append(terms, fmt.Sprintf("%s == %s", key, filter[key]))
			continue
		}
		terms = append(terms, fmt.Sprintf("%s == %s", key, strconv.Quote(filter[key])))
	}
	return strings.Join(terms, " && ")
}
