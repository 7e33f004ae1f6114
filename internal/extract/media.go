package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/internal/transcribe"
)

// ExtractMedia transcribes a single audio or video file. Video has its audio
// track pulled out first; the intermediate audio file is removed before
// returning, success or not.
func (e *Extractor) ExtractMedia(ctx context.Context, path string, category models.Category) (Result, error) {
	if e.transcriber == nil {
		return Result{}, fmt.Errorf("extract media: no transcriber configured")
	}
	audioPath := path
	if category == models.CategoryVideo {
		if e.converter == nil {
			return Result{}, fmt.Errorf("extract media: no converter configured")
		}
		extracted, err := e.converter.ExtractAudio(ctx, path)
		if err != nil {
			return Result{}, err
		}
		defer e.removeTemp(extracted)
		audioPath = extracted
	}
	text, err := e.transcriber.Transcribe(ctx, audioPath, transcribe.MimeForFile(audioPath))
	if err != nil {
		return Result{}, fmt.Errorf("transcribe %s: %w", filepath.Base(path), err)
	}
	return Result{Text: text}, nil
}

// ExtractSegments transcribes pre-cut video segments in order, prefixing each
// transcript with its segment marker. Segment files and intermediate audio
// are deleted as soon as their transcript is in hand.
func (e *Extractor) ExtractSegments(ctx context.Context, segments []models.MediaSegment) (Result, error) {
	if e.transcriber == nil || e.converter == nil {
		return Result{}, fmt.Errorf("extract segments: transcriber and converter required")
	}
	n := len(segments)
	var b strings.Builder
	for _, seg := range segments {
		audioPath, err := e.converter.ExtractAudio(ctx, seg.Path)
		if err != nil {
			return Result{}, fmt.Errorf("segment %d/%d: %w", seg.Index+1, n, err)
		}
		text, err := e.transcriber.Transcribe(ctx, audioPath, transcribe.MimeForFile(audioPath))
		e.removeTemp(audioPath)
		if err != nil {
			return Result{}, fmt.Errorf("segment %d/%d: %w", seg.Index+1, n, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Segment %d/%d] %s", seg.Index+1, n, text)
		e.removeTemp(seg.Path)
	}
	return Result{Text: b.String()}, nil
}

func (e *Extractor) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("remove temp file", zap.String("path", path), zap.Error(err))
	}
}
