// Package media wraps external ffmpeg tooling for audio extraction, duration
// probing, and fixed-window segmentation of long videos.
package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/pkg/utils"
)

var (
	// ErrToolMissing means the conversion binary is not installed on this host.
	ErrToolMissing = errors.New("conversion tool not found")
	// ErrConversionFailed means the tool ran and exited with an error.
	ErrConversionFailed = errors.New("conversion failed")
)

// Converter performs media conversion. Calls are blocking and run to
// completion or failure; callers own the returned files.
type Converter interface {
	// ExtractAudio produces an audio file from the video at videoPath.
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
	// ProbeDuration returns the media duration in seconds, 0 when unknown.
	ProbeDuration(ctx context.Context, path string) float64
	// Segment cuts the video into fixed-window parts. A failure partway
	// removes every part created so far before returning.
	Segment(ctx context.Context, videoPath string, windowMinutes int) ([]models.MediaSegment, error)
}

// runner abstracts command lookup and execution so tests can fake the tools.
type runner interface {
	look(name string) (string, error)
	run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) look(name string) (string, error) { return exec.LookPath(name) }

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpeg is a Converter backed by the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	logger      *zap.Logger
	exec        runner
}

// Option configures an FFmpeg converter.
type Option func(*FFmpeg)

// WithLogger sets a logger for tool invocations.
func WithLogger(l *zap.Logger) Option {
	return func(f *FFmpeg) { f.logger = l }
}

// WithTempDir sets the directory for produced audio and segment files.
func WithTempDir(dir string) Option {
	return func(f *FFmpeg) { f.tempDir = dir }
}

// WithBinaries overrides the ffmpeg and ffprobe binary paths.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(f *FFmpeg) {
		if ffmpeg != "" {
			f.ffmpegPath = ffmpeg
		}
		if ffprobe != "" {
			f.ffprobePath = ffprobe
		}
	}
}

func withRunner(r runner) Option {
	return func(f *FFmpeg) { f.exec = r }
}

// NewFFmpeg creates a converter that shells out to ffmpeg/ffprobe.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		tempDir:     os.TempDir(),
		logger:      zap.NewNop(),
		exec:        execRunner{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ExtractAudio strips the audio track of videoPath into an mp3 under the
// temp directory and returns its path.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	if _, err := f.exec.look(f.ffmpegPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, f.ffmpegPath)
	}
	out := filepath.Join(f.tempDir, fmt.Sprintf("audio_%s.mp3", uuid.New().String()[:8]))
	f.logger.Debug("extracting audio", zap.String("video", videoPath), zap.String("out", out))
	output, err := f.exec.run(ctx, f.ffmpegPath,
		"-y", "-i", videoPath, "-vn", "-acodec", "libmp3lame", "-q:a", "4", out)
	if err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("extract audio: %w: %s", ErrConversionFailed, toolOutput(output))
	}
	return out, nil
}

// ProbeDuration queries the duration of the media file at path via ffprobe.
// Returns 0 on any probe failure; callers must treat 0 as unknown.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) float64 {
	if _, err := f.exec.look(f.ffprobePath); err != nil {
		f.logger.Debug("ffprobe not found", zap.String("binary", f.ffprobePath))
		return 0
	}
	output, err := f.exec.run(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		f.logger.Debug("probe failed", zap.String("path", path), zap.Error(err))
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

// Segment cuts videoPath into ceil(duration/window) parts of at most
// windowMinutes each. Every part but the last has the full window duration.
func (f *FFmpeg) Segment(ctx context.Context, videoPath string, windowMinutes int) ([]models.MediaSegment, error) {
	if _, err := f.exec.look(f.ffmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, f.ffmpegPath)
	}
	duration := f.ProbeDuration(ctx, videoPath)
	if duration <= 0 {
		return nil, fmt.Errorf("segment: %w: could not determine duration of %s", ErrConversionFailed, videoPath)
	}
	plan := SegmentPlan(duration, windowMinutes)
	base := uuid.New().String()[:8]
	ext := filepath.Ext(videoPath)
	if ext == "" {
		ext = ".mp4"
	}

	segments := make([]models.MediaSegment, 0, len(plan))
	for _, seg := range plan {
		out := filepath.Join(f.tempDir, fmt.Sprintf("seg_%s_%03d%s", base, seg.Index, ext))
		output, err := f.exec.run(ctx, f.ffmpegPath,
			"-y",
			"-ss", formatSeconds(seg.Start),
			"-t", formatSeconds(seg.Duration),
			"-i", videoPath,
			"-c", "copy",
			out)
		if err != nil {
			_ = os.Remove(out)
			for _, done := range segments {
				if rmErr := os.Remove(done.Path); rmErr != nil && !os.IsNotExist(rmErr) {
					f.logger.Warn("segment rollback failed", zap.String("path", done.Path), zap.Error(rmErr))
				}
			}
			return nil, fmt.Errorf("segment %d/%d: %w: %s", seg.Index+1, len(plan), ErrConversionFailed, toolOutput(output))
		}
		seg.Path = out
		segments = append(segments, seg)
	}
	f.logger.Debug("video segmented",
		zap.String("video", videoPath),
		zap.Int("segments", len(segments)),
		zap.Float64("duration", duration))
	return segments, nil
}

// SegmentPlan computes the start/duration layout for cutting duration
// seconds into windows of windowMinutes. The returned segments have no Path.
func SegmentPlan(durationSeconds float64, windowMinutes int) []models.MediaSegment {
	if durationSeconds <= 0 || windowMinutes <= 0 {
		return nil
	}
	window := float64(windowMinutes) * 60
	count := int(math.Ceil(durationSeconds / window))
	plan := make([]models.MediaSegment, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * window
		length := window
		if remaining := durationSeconds - start; remaining < length {
			length = remaining
		}
		plan = append(plan, models.MediaSegment{Index: i, Start: start, Duration: length})
	}
	return plan
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func toolOutput(out []byte) string {
	return utils.Truncate(strings.TrimSpace(string(out)), 200)
}
