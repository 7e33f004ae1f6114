// Package classify maps filenames to content categories and size ceilings.
package classify

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/torikomi/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for extensions outside every allow-list.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrSizeLimitExceeded is returned when an upload exceeds its category ceiling.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
)

// Limits holds the per-category maximum upload size in bytes.
// A zero value means no ceiling for that category.
type Limits struct {
	Text    int64
	Audio   int64
	Video   int64
	Tabular int64
}

// DefaultLimits returns the standard per-category size ceilings.
func DefaultLimits() Limits {
	return Limits{
		Text:    10 << 20,
		Audio:   25 << 20,
		Video:   200 << 20,
		Tabular: 15 << 20,
	}
}

// Extension allow-lists. The four lists are disjoint; anything else is
// unsupported. Text-like covers document formats whose extraction needs no
// media conversion.
var (
	textExts = map[string]bool{
		".txt": true, ".md": true, ".markdown": true, ".rst": true, ".log": true,
		".pdf": true, ".docx": true, ".pptx": true, ".odp": true,
	}
	audioExts = map[string]bool{
		".mp3": true, ".wav": true, ".m4a": true, ".flac": true, ".ogg": true,
	}
	videoExts = map[string]bool{
		".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
	}
	tabularExts = map[string]bool{
		".xlsx": true, ".ods": true, ".csv": true,
	}
)

// Classifier assigns a category and size ceiling to a filename before any
// processing begins.
type Classifier struct {
	limits Limits
}

// NewClassifier creates a classifier with the given size limits.
func NewClassifier(limits Limits) *Classifier {
	return &Classifier{limits: limits}
}

// Classify maps the filename's extension to a Classification. Unknown or
// missing extensions return ErrUnsupportedFormat.
func (c *Classifier) Classify(filename string) (models.Classification, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case textExts[ext]:
		return models.Classification{Category: models.CategoryText, MaxBytes: c.limits.Text}, nil
	case audioExts[ext]:
		return models.Classification{Category: models.CategoryAudio, MaxBytes: c.limits.Audio}, nil
	case videoExts[ext]:
		return models.Classification{Category: models.CategoryVideo, MaxBytes: c.limits.Video}, nil
	case tabularExts[ext]:
		return models.Classification{Category: models.CategoryTabular, MaxBytes: c.limits.Tabular}, nil
	}
	if ext == "" {
		return models.Classification{}, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, filename)
	}
	return models.Classification{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// CheckSize verifies size against the classification's ceiling.
func (c *Classifier) CheckSize(cls models.Classification, size int64) error {
	if cls.MaxBytes > 0 && size > cls.MaxBytes {
		return fmt.Errorf("%w: %d bytes over the %d-byte ceiling for %s",
			ErrSizeLimitExceeded, size, cls.MaxBytes, cls.Category)
	}
	return nil
}

// Extensions returns every supported extension, sorted. Used for watcher
// filters and upload pre-validation.
func (c *Classifier) Extensions() []string {
	var exts []string
	for _, m := range []map[string]bool{textExts, audioExts, videoExts, tabularExts} {
		for ext := range m {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
