package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/torikomi/internal/models"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	cat, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestSQLiteCatalog_CRUD(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	rec := &models.IngestionRecord{
		ID:         "doc1",
		Filename:   "notes.txt",
		Category:   models.CategoryText,
		Format:     ".txt",
		Status:     "complete",
		ChunkCount: 3,
		Steps:      []string{"classified", "extracted", "chunked", "embedded", "stored"},
	}
	if err := cat.SaveRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := cat.GetRecord(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "notes.txt" || got.Category != models.CategoryText || got.ChunkCount != 3 {
		t.Errorf("got %+v", got)
	}
	if len(got.Steps) != 5 || got.Steps[0] != "classified" {
		t.Errorf("steps did not survive: %v", got.Steps)
	}

	list, err := cat.ListRecords(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 record, got %d", len(list))
	}

	if err := cat.DeleteRecord(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.GetRecord(ctx, "doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err=%v, want ErrNotFound", err)
	}
}

func TestSQLiteCatalog_SaveIsUpsert(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	first := &models.IngestionRecord{
		ID: "doc1", Filename: "a.txt", Category: models.CategoryText, Status: "failed",
		Error: "embedding failed",
	}
	if err := cat.SaveRecord(ctx, first); err != nil {
		t.Fatal(err)
	}
	firstCreated := first.CreatedAt

	second := &models.IngestionRecord{
		ID: "doc1", Filename: "a.txt", Category: models.CategoryText, Status: "complete",
		ChunkCount: 2,
	}
	if err := cat.SaveRecord(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := cat.GetRecord(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "complete" || got.ChunkCount != 2 {
		t.Errorf("row not replaced: %+v", got)
	}
	if got.Error != "" {
		t.Errorf("stale error kept: %q", got.Error)
	}
	if !got.CreatedAt.Equal(firstCreated) {
		t.Errorf("created_at rewritten: %v != %v", got.CreatedAt, firstCreated)
	}

	list, _ := cat.ListRecords(ctx, 0, 10)
	if len(list) != 1 {
		t.Errorf("upsert duplicated the row: %d records", len(list))
	}
}

func TestSQLiteCatalog_Stats(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	st, err := cat.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 0 || st.Chunks != 0 {
		t.Errorf("empty catalog stats: %+v", st)
	}

	records := []*models.IngestionRecord{
		{ID: "a", Filename: "a.txt", Category: models.CategoryText, Status: "complete", ChunkCount: 4},
		{ID: "b", Filename: "b.mp3", Category: models.CategoryAudio, Status: "complete", ChunkCount: 1},
		{ID: "c", Filename: "c.bin", Category: models.CategoryText, Status: "failed"},
	}
	for _, rec := range records {
		if err := cat.SaveRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	st, err = cat.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.Complete != 2 || st.Failed != 1 || st.Chunks != 5 {
		t.Errorf("stats: %+v", st)
	}
}

func TestSQLiteCatalog_ListPagination(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		rec := &models.IngestionRecord{ID: id, Filename: id + ".txt", Category: models.CategoryText, Status: "complete"}
		if err := cat.SaveRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	page, err := cat.ListRecords(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page))
	}
	rest, err := cat.ListRecords(ctx, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 {
		t.Errorf("expected 2 remaining records, got %d", len(rest))
	}
}
