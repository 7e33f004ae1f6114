package vectorstore

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/torikomi/internal/models"
)

func TestProjectMetadata(t *testing.T) {
	doc := &models.Document{
		ID:       "abc123",
		Filename: "report.pdf",
		Metadata: models.Metadata{
			Category: models.CategoryText,
			Format:   ".pdf",
			Steps:    []string{"classified", "extracted", "chunked"},
		},
	}
	chunk := models.Chunk{Index: 3, Text: "short body"}

	meta := ProjectMetadata(doc, chunk)
	if meta.DocumentID != "abc123" || meta.Filename != "report.pdf" {
		t.Errorf("identity fields: %+v", meta)
	}
	if meta.Category != "text" || meta.Format != ".pdf" {
		t.Errorf("classification fields: %+v", meta)
	}
	if meta.ChunkIndex != 3 {
		t.Errorf("ChunkIndex=%d", meta.ChunkIndex)
	}
	if meta.Content != "short body" {
		t.Errorf("Content=%q", meta.Content)
	}
	if meta.Steps != "classified,extracted,chunked" {
		t.Errorf("Steps=%q", meta.Steps)
	}
}

func TestProjectMetadataTruncatesContent(t *testing.T) {
	doc := &models.Document{ID: "d"}
	chunk := models.Chunk{Text: strings.Repeat("x", MetaContentLimit*2)}

	meta := ProjectMetadata(doc, chunk)
	if len(meta.Content) > MetaContentLimit {
		t.Errorf("Content length %d exceeds limit %d", len(meta.Content), MetaContentLimit)
	}
	if !strings.HasSuffix(meta.Content, "...") {
		t.Errorf("truncated content should end with marker, got %q", meta.Content[len(meta.Content)-8:])
	}
}

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter map[string]string
		want   string
	}{
		{"empty", nil, ""},
		{"single", map[string]string{FieldDocumentID: "doc1"}, `document_id == "doc1"`},
		{"numeric", map[string]string{FieldChunkIndex: "2"}, `chunk_index == 2`},
		{
			"sorted pair",
			map[string]string{FieldFormat: ".pdf", FieldCategory: "document"},
			`category == "document" && format == ".pdf"`,
		},
		{"quoting", map[string]string{FieldFilename: `we"ird.txt`}, `filename == "we\"ird.txt"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterExpr(tt.filter); got != tt.want {
				t.Errorf("filterExpr()=%q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("default backend should be memory, got %T", s)
	}

	s, err = New(ctx, Config{Backend: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("memory backend gave %T", s)
	}

	if _, err := New(ctx, Config{Backend: "pinecone"}); err == nil {
		t.Error("unknown backend should error")
	}
}
