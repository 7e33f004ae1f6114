package e2e

import (
	"strings"
	"testing"

	"github.com/hyperjump/torikomi/internal/extract"
)

func TestWriteMinimalFile_AllExtensionsExtractable(t *testing.T) {
	e := extract.NewExtractor()
	sample := "E2E searchable content"
	tabular := map[string]bool{".xlsx": true, ".ods": true, ".csv": true}
	for _, ext := range SupportedFileExtensions {
		t.Run(ext, func(t *testing.T) {
			content, err := WriteMinimalFile(ext, sample)
			if err != nil {
				t.Fatalf("WriteMinimalFile: %v", err)
			}
			if len(content) == 0 {
				t.Fatal("empty content")
			}
			got, err := e.ExtractBytes(content, ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if !strings.Contains(got.Text, sample) {
				t.Errorf("extracted text %q does not contain %q", got.Text, sample)
			}
			if tabular[ext] && got.Tabular == nil {
				t.Errorf("%s: expected tabular info", ext)
			}
		})
	}
}

func TestWriteMinimalFile_PreservesTextExactly(t *testing.T) {
	// The corpus queries rely on every format reproducing a single-line
	// content byte for byte after extraction and trimming.
	e := extract.NewExtractor()
	sample := "Quarterly revenue forecast shows steady growth"
	for _, ext := range SupportedFileExtensions {
		t.Run(ext, func(t *testing.T) {
			content, err := WriteMinimalFile(ext, sample)
			if err != nil {
				t.Fatalf("WriteMinimalFile: %v", err)
			}
			got, err := e.ExtractBytes(content, ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if strings.TrimSpace(got.Text) != sample {
				t.Errorf("extracted %q, want %q", got.Text, sample)
			}
		})
	}
}
