// Package extract produces plain text from classified uploads. Document and
// tabular formats are decoded in place; audio and video are routed through
// the transcription client, with video audio tracks pulled out first.
package extract

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/media"
	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/internal/transcribe"
)

// ErrNoText reports an input that decoded cleanly but yielded no text.
var ErrNoText = errors.New("no extractable text")

// Result is one extraction outcome: the text bound for chunking plus, for
// tabular sources, the sheet and row counts recorded in document metadata.
type Result struct {
	Text    string
	Tabular *models.TabularInfo
}

// Extractor turns classified inputs into text. Static formats need no
// collaborators; media extraction requires a transcriber and, for video,
// a converter.
type Extractor struct {
	transcriber transcribe.Transcriber
	converter   media.Converter
	logger      *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTranscriber supplies the transcription client used for audio and video.
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(e *Extractor) { e.transcriber = t }
}

// WithConverter supplies the media converter used to pull audio out of video.
func WithConverter(c media.Converter) Option {
	return func(e *Extractor) { e.converter = c }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns an Extractor with the given options applied.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and extracts text based on its extension.
// Media files go through ExtractMedia instead.
func (e *Extractor) Extract(path string) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (Result, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return textResult(extractPDF(content))
	case ".docx":
		return textResult(extractDOCX(content))
	case ".pptx":
		return textResult(extractPPTX(content))
	case ".odp":
		return textResult(extractODP(content))
	case ".xlsx":
		return extractXLSX(content)
	case ".ods":
		return extractODS(content)
	case ".csv":
		return extractCSV(content)
	case ".txt", ".md", ".markdown", ".rst", ".log", "":
		return textResult(extractPlain(content))
	default:
		// Unknown extension: treat as plain text
		return textResult(extractPlain(content))
	}
}

func textResult(text string, err error) (Result, error) {
	return Result{Text: text}, err
}

// extractPlain returns content as a string, validating it is valid UTF-8.
// Invalid sequences are replaced with the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return string(content), nil
}

// readZipEntry returns the decompressed contents of the named archive entry,
// or nil when the archive has no such entry.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// appendMatches writes the first capture group of each match, space-joined.
func appendMatches(b *strings.Builder, parts [][]string) {
	for _, p := range parts {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(p[1]))
	}
}
