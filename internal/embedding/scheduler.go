package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/torikomi/pkg/utils"
)

// Scheduler defaults.
const (
	DefaultBatchSize     = 16
	DefaultTruncateLimit = 8000
)

// Scheduler embeds ordered chunk texts under a strict in-flight bound. The
// default mode finishes each batch before starting the next; cross-batch
// overlap removes that barrier while keeping the same global bound.
type Scheduler struct {
	embedder      Embedder
	batchSize     int
	truncateLimit int
	overlap       bool
	logger        *zap.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithBatchSize sets the batch size B: batches hold B texts and at most B
// embedding calls are in flight at once.
func WithBatchSize(n int) SchedulerOption {
	return func(s *Scheduler) { s.batchSize = n }
}

// WithTruncateLimit sets the per-call text ceiling in bytes. Longer texts are
// cut with a trailing marker, never rejected.
func WithTruncateLimit(n int) SchedulerOption {
	return func(s *Scheduler) { s.truncateLimit = n }
}

// WithCrossBatchOverlap lets a new batch start while the previous one drains.
// The global in-flight bound stays at the batch size.
func WithCrossBatchOverlap(enabled bool) SchedulerOption {
	return func(s *Scheduler) { s.overlap = enabled }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler returns a Scheduler over embedder with the options applied.
func NewScheduler(embedder Embedder, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		embedder:      embedder,
		batchSize:     DefaultBatchSize,
		truncateLimit: DefaultTruncateLimit,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize < 1 {
		s.batchSize = 1
	}
	if s.truncateLimit < 1 {
		s.truncateLimit = DefaultTruncateLimit
	}
	return s
}

// BatchSize returns the configured batch size.
func (s *Scheduler) BatchSize() int {
	return s.batchSize
}

// TruncateLimit returns the per-call text ceiling.
func (s *Scheduler) TruncateLimit() int {
	return s.truncateLimit
}

// EmbedAll converts texts to vectors, one per input, order-preserving. Any
// failure aborts the whole call and no vectors are returned. Every returned
// vector has the embedder's dimension.
func (s *Scheduler) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prepared := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > s.truncateLimit {
			s.logger.Debug("truncating oversized text",
				zap.Int("index", i),
				zap.Int("length", len(text)),
				zap.Int("limit", s.truncateLimit))
			text = utils.Truncate(text, s.truncateLimit)
		}
		prepared[i] = text
	}

	vectors := make([][]float32, len(prepared))
	if s.overlap {
		if err := s.embedRange(ctx, prepared, vectors, 0, len(prepared)); err != nil {
			return nil, err
		}
	} else {
		for start := 0; start < len(prepared); start += s.batchSize {
			end := min(start+s.batchSize, len(prepared))
			if err := s.embedRange(ctx, prepared, vectors, start, end); err != nil {
				return nil, err
			}
		}
	}

	dim := s.embedder.Dimensions()
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrEmbeddingFailed, i, len(vec), dim)
		}
	}
	return vectors, nil
}

// embedRange embeds prepared[start:end] into vectors, at most batchSize in
// flight.
func (s *Scheduler) embedRange(ctx context.Context, prepared []string, vectors [][]float32, start, end int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchSize)
	for i := start; i < end; i++ {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, prepared[i])
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	return g.Wait()
}
