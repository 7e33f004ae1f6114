package pipeline

import (
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/models"
)

// State names one step of a job's lifecycle. States double as catalog row
// statuses.
type State string

const (
	StateUploaded   State = "uploaded"
	StateClassified State = "classified"
	StateConverted  State = "converted"
	StateExtracted  State = "extracted"
	StateChunked    State = "chunked"
	StateEmbedded   State = "embedded"
	StateStored     State = "stored"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// ProgressFunc receives stage progress. The percentage is monotonically
// non-decreasing across one job; it carries no correctness obligation and
// consumers may ignore it.
type ProgressFunc func(state State, percent int)

// Job tracks one upload through the pipeline: identity, current state,
// accumulated step log, and registered temp artifacts. Jobs are fully
// isolated; nothing here is shared between concurrent jobs.
type Job struct {
	id             string
	upload         *models.RawUpload
	classification models.Classification
	state          State
	percent        int
	steps          []string
	tempPaths      []string
	progress       ProgressFunc
	logger         *zap.Logger
}

func newJob(id string, upload *models.RawUpload, progress ProgressFunc, logger *zap.Logger) *Job {
	return &Job{
		id:       id,
		upload:   upload,
		state:    StateUploaded,
		progress: progress,
		logger:   logger,
	}
}

// advance moves the job to state and reports progress. The percentage is
// clamped so reported values never decrease.
func (j *Job) advance(state State, percent int) {
	if percent < j.percent {
		percent = j.percent
	}
	j.state = state
	j.percent = percent
	if j.progress != nil {
		j.progress(state, percent)
	}
}

// step appends to the cumulative processing-step log carried into document
// metadata and vector records.
func (j *Job) step(name string) {
	j.steps = append(j.steps, name)
}

// registerTemp records a temp artifact for cleanup, in creation order.
func (j *Job) registerTemp(path string) {
	j.tempPaths = append(j.tempPaths, path)
}

// cleanup removes registered temp artifacts in registration order,
// best-effort: a removal failure is logged, never re-raised. Paths already
// gone (segments the extractor deleted after transcription) are skipped
// silently.
func (j *Job) cleanup() {
	for _, path := range j.tempPaths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("temp cleanup failed", zap.String("path", path), zap.Error(err))
		}
	}
	j.tempPaths = nil
}
