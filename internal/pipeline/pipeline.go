// Package pipeline orchestrates one upload through classification,
// conversion, extraction, chunking, embedding, and vector storage.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/chunk"
	"github.com/hyperjump/torikomi/internal/classify"
	"github.com/hyperjump/torikomi/internal/docid"
	"github.com/hyperjump/torikomi/internal/embedding"
	"github.com/hyperjump/torikomi/internal/extract"
	"github.com/hyperjump/torikomi/internal/media"
	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/internal/storage"
	"github.com/hyperjump/torikomi/internal/vectorstore"
)

const (
	// DefaultDirectVideoLimit is the size above which a video is segmented
	// and transcribed piecewise instead of in one pass.
	DefaultDirectVideoLimit = 25 << 20
	// DefaultSegmentWindow is the segmentation window in minutes.
	DefaultSegmentWindow = 10
)

// Pipeline runs ingestion jobs. Stages are sequential within a job; jobs are
// fully isolated, so callers may run several Process calls concurrently.
type Pipeline struct {
	classifier *classify.Classifier
	extractor  *extract.Extractor
	chunker    *chunk.Chunker
	scheduler  *embedding.Scheduler
	store      vectorstore.Store
	catalog    storage.Catalog

	converter        media.Converter
	tempDir          string
	directVideoLimit int64
	segmentWindow    int
	progress         ProgressFunc
	logger           *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConverter supplies the media converter used to segment oversized
// videos. Without one, every video is processed in a single pass.
func WithConverter(c media.Converter) Option {
	return func(p *Pipeline) { p.converter = c }
}

// WithCatalog supplies the ingestion catalog. Without one, no rows are
// written.
func WithCatalog(c storage.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithTempDir sets the directory for materialized media files.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithSegmentation sets the direct-processing ceiling in bytes and the
// segmentation window in minutes for oversized videos.
func WithSegmentation(directLimit int64, windowMinutes int) Option {
	return func(p *Pipeline) {
		if directLimit > 0 {
			p.directVideoLimit = directLimit
		}
		if windowMinutes > 0 {
			p.segmentWindow = windowMinutes
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline with the given stage implementations.
func NewPipeline(
	classifier *classify.Classifier,
	extractor *extract.Extractor,
	chunker *chunk.Chunker,
	scheduler *embedding.Scheduler,
	store vectorstore.Store,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		classifier:       classifier,
		extractor:        extractor,
		chunker:          chunker,
		scheduler:        scheduler,
		store:            store,
		directVideoLimit: DefaultDirectVideoLimit,
		segmentWindow:    DefaultSegmentWindow,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate runs classification and the size check without starting a job.
// Upload boundaries use it to reject bad uploads before reading their bodies.
func (p *Pipeline) Validate(filename string, size int64) error {
	cls, err := p.classifier.Classify(filename)
	if err != nil {
		return &Error{Kind: KindUnsupportedFormat, Stage: "classify", Err: err}
	}
	if err := p.classifier.CheckSize(cls, size); err != nil {
		return &Error{Kind: KindSizeLimitExceeded, Stage: "classify", Err: err}
	}
	return nil
}

// Process runs one ingestion job. The document ID is derived from the
// content hash, so re-ingesting identical bytes overwrites the previous
// records instead of duplicating them.
func (p *Pipeline) Process(ctx context.Context, upload *models.RawUpload) (*models.Document, error) {
	return p.ProcessWithID(ctx, upload, "")
}

// ProcessWithID runs one ingestion job under a caller-chosen document ID.
// The watcher uses path-derived IDs here so a changed file updates its own
// records. An empty id falls back to the content hash.
func (p *Pipeline) ProcessWithID(ctx context.Context, upload *models.RawUpload, id string) (*models.Document, error) {
	if id == "" {
		id = docid.FromContent(upload.Data)
	}
	job := newJob(id, upload, p.progress, p.logger)
	defer job.cleanup()

	doc, err := p.run(ctx, job)
	if err != nil {
		p.recordFailure(ctx, job, err)
		return nil, err
	}
	return doc, nil
}

func (p *Pipeline) run(ctx context.Context, job *Job) (*models.Document, error) {
	upload := job.upload
	started := time.Now()
	job.advance(StateUploaded, 0)

	cls, err := p.classifier.Classify(upload.Filename)
	if err != nil {
		return nil, p.fail(job, "classify", KindUnsupportedFormat, err)
	}
	if err := p.classifier.CheckSize(cls, upload.Size()); err != nil {
		return nil, p.fail(job, "classify", KindSizeLimitExceeded, err)
	}
	job.classification = cls
	job.advance(StateClassified, 10)
	job.step("classified")

	// Media is written to a uniquely named temp file so external tools can
	// read it; oversized videos are additionally cut into segments. Every
	// created path is registered for cleanup. Text and tabular skip this.
	var mediaPath string
	var segments []models.MediaSegment
	if cls.Category == models.CategoryAudio || cls.Category == models.CategoryVideo {
		mediaPath, err = p.materialize(job)
		if err != nil {
			return nil, p.fail(job, "convert", KindConversionFailure, err)
		}
		if cls.Category == models.CategoryVideo && upload.Size() > p.directVideoLimit && p.converter != nil {
			segments, err = p.converter.Segment(ctx, mediaPath, p.segmentWindow)
			if err != nil {
				return nil, p.fail(job, "convert", KindConversionFailure, err)
			}
			for _, seg := range segments {
				job.registerTemp(seg.Path)
			}
		}
	}
	job.advance(StateConverted, 25)
	job.step("converted")
	if len(segments) > 0 {
		job.step("segmented")
	}

	var result extract.Result
	switch {
	case len(segments) > 0:
		result, err = p.extractor.ExtractSegments(ctx, segments)
	case mediaPath != "":
		result, err = p.extractor.ExtractMedia(ctx, mediaPath, cls.Category)
	default:
		result, err = p.extractor.ExtractBytes(upload.Data, strings.ToLower(filepath.Ext(upload.Filename)))
	}
	if err != nil {
		return nil, p.fail(job, "extract", KindTranscriptionFailure, err)
	}
	content := strings.TrimSpace(result.Text)
	if content == "" {
		return nil, p.fail(job, "extract", KindTranscriptionFailure,
			fmt.Errorf("%w: %s", extract.ErrNoText, upload.Filename))
	}
	job.advance(StateExtracted, 50)
	job.step("extracted")

	// Chunking only pays off when the content would not fit one embedding
	// call anyway.
	var chunks []models.Chunk
	if len(content) > p.scheduler.TruncateLimit() {
		chunks = p.chunker.Split(content)
	} else {
		chunks = []models.Chunk{{Index: 0, Text: content}}
	}
	job.advance(StateChunked, 60)
	job.step("chunked")

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := p.scheduler.EmbedAll(ctx, texts)
	if err != nil {
		return nil, p.fail(job, "embed", KindEmbeddingFailure, err)
	}
	job.advance(StateEmbedded, 80)
	job.step("embedded")

	now := time.Now()
	doc := &models.Document{
		ID:       job.id,
		Filename: upload.Filename,
		Content:  content,
		Metadata: models.Metadata{
			Category:  cls.Category,
			Format:    strings.ToLower(filepath.Ext(upload.Filename)),
			CreatedAt: now,
			Steps:     job.steps,
			Tabular:   result.Tabular,
		},
		ChunkCount: len(chunks),
		CreatedAt:  now,
	}
	records := make([]vectorstore.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = vectorstore.Record{
			ID:       docid.ChunkID(doc.ID, ch.Index),
			Vector:   vectors[i],
			Metadata: vectorstore.ProjectMetadata(doc, ch),
		}
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		return nil, p.fail(job, "store", KindStoreFailure, err)
	}
	job.advance(StateStored, 95)
	job.step("stored")

	doc.Metadata.Steps = job.steps
	if p.catalog != nil {
		rec := &models.IngestionRecord{
			ID:         doc.ID,
			Filename:   doc.Filename,
			Category:   cls.Category,
			Format:     doc.Metadata.Format,
			Status:     string(StateComplete),
			ChunkCount: len(chunks),
			Steps:      job.steps,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := p.catalog.SaveRecord(ctx, rec); err != nil {
			return nil, p.fail(job, "store", KindStoreFailure, err)
		}
	}
	job.advance(StateComplete, 100)

	p.logger.Info("ingestion complete",
		zap.String("doc_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.String("category", string(cls.Category)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(started)))
	return doc, nil
}

// fail marks the job failed and wraps the cause. The kind comes from the
// cause's sentinel when one matches, otherwise from the stage's fallback.
func (p *Pipeline) fail(job *Job, stage string, fallback Kind, err error) error {
	kind := KindOf(err)
	if kind == "" {
		kind = fallback
	}
	job.advance(StateFailed, job.percent)
	p.logger.Error("pipeline stage failed",
		zap.String("doc_id", job.id),
		zap.String("filename", job.upload.Filename),
		zap.String("stage", stage),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// recordFailure writes the failed catalog row. Catalog write failures are
// logged; the original error stays the one surfaced to the caller.
func (p *Pipeline) recordFailure(ctx context.Context, job *Job, cause error) {
	if p.catalog == nil {
		return
	}
	now := time.Now()
	rec := &models.IngestionRecord{
		ID:        job.id,
		Filename:  job.upload.Filename,
		Category:  job.classification.Category,
		Format:    strings.ToLower(filepath.Ext(job.upload.Filename)),
		Status:    string(StateFailed),
		Error:     cause.Error(),
		Steps:     job.steps,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.catalog.SaveRecord(ctx, rec); err != nil {
		p.logger.Warn("record failed job", zap.String("doc_id", job.id), zap.Error(err))
	}
}

// materialize writes the upload to a uniquely named file under the temp
// directory and registers it for cleanup. Unique names keep concurrent jobs
// collision-free in a shared temp dir.
func (p *Pipeline) materialize(job *Job) (string, error) {
	dir := p.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+"_"+filepath.Base(job.upload.Filename))
	if err := os.WriteFile(path, job.upload.Data, 0644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	job.registerTemp(path)
	return path, nil
}
