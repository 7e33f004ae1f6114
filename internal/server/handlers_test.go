package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/chunk"
	"github.com/hyperjump/torikomi/internal/classify"
	"github.com/hyperjump/torikomi/internal/config"
	"github.com/hyperjump/torikomi/internal/embedding"
	"github.com/hyperjump/torikomi/internal/extract"
	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/internal/pipeline"
	"github.com/hyperjump/torikomi/internal/storage"
	"github.com/hyperjump/torikomi/internal/transcribe"
	"github.com/hyperjump/torikomi/internal/vectorstore"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type serverFixture struct {
	srv     *Server
	pipe    *pipeline.Pipeline
	catalog storage.Catalog
	store   vectorstore.Store
}

func newTestServer(t *testing.T, limits classify.Limits, watch WatchService) *serverFixture {
	t.Helper()
	dir := t.TempDir()

	catalog, err := storage.NewSQLiteCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { catalog.Close() })

	store, err := vectorstore.NewMemoryStore("")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureIndex(context.Background(), 4, vectorstore.MetricIP); err != nil {
		t.Fatal(err)
	}

	embedder := embedding.NewMockEmbedder(4)
	t.Cleanup(func() { embedder.Close() })
	scheduler := embedding.NewScheduler(embedder,
		embedding.WithBatchSize(2),
		embedding.WithTruncateLimit(64))

	extractor := extract.NewExtractor(extract.WithTranscriber(&transcribe.MockTranscriber{}))
	pipe := pipeline.NewPipeline(
		classify.NewClassifier(limits),
		extractor,
		chunk.NewChunker(64, 8),
		scheduler,
		store,
		pipeline.WithCatalog(catalog),
		pipeline.WithTempDir(filepath.Join(dir, "work")),
	)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Catalog.DatabasePath = filepath.Join(dir, "catalog.db")
	cfg.VectorStore.Path = ""

	srv := NewServer(pipe, scheduler, catalog, store, cfg, zap.NewNop(), watch, "")
	return &serverFixture{srv: srv, pipe: pipe, catalog: catalog, store: store}
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// ingestDoc seeds one document through the real pipeline.
func (f *serverFixture) ingestDoc(t *testing.T, filename, content string) string {
	t.Helper()
	doc, err := f.pipe.Process(context.Background(), &models.RawUpload{Filename: filename, Data: []byte(content)})
	if err != nil {
		t.Fatal(err)
	}
	return doc.ID
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleUpload(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)

	body, contentType := multipartBody(t, "notes.txt", []byte("hello ingestion"))
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	f.srv.handleUpload(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		ID         string `json:"id"`
		ChunkCount int    `json:"chunk_count"`
		Status     string `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ID == "" || out.ChunkCount != 1 || out.Status != "complete" {
		t.Errorf("response: %+v", out)
	}
	if _, err := f.catalog.GetRecord(context.Background(), out.ID); err != nil {
		t.Errorf("catalog row missing: %v", err)
	}
}

func TestHandleUpload_unsupportedFormat(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)

	body, contentType := multipartBody(t, "data.xyz", []byte("junk"))
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	f.srv.handleUpload(w, r)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status: got %d, want 415", w.Code)
	}
	var out struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Kind != string(pipeline.KindUnsupportedFormat) {
		t.Errorf("kind: got %q", out.Kind)
	}
}

func TestHandleUpload_oversized(t *testing.T) {
	f := newTestServer(t, classify.Limits{Text: 8}, nil)

	body, contentType := multipartBody(t, "big.txt", []byte("well over eight bytes"))
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	f.srv.handleUpload(w, r)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", w.Code)
	}
}

func TestHandleUpload_missingFile(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", bytes.NewReader(nil))
	w := httptest.NewRecorder()
	f.srv.handleUpload(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleQuery(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)
	f.ingestDoc(t, "notes.txt", "the quick brown fox")

	body, _ := json.Marshal(map[string]interface{}{"text": "quick fox", "top_k": 5})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.srv.handleQuery(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Results []struct {
			ID       string  `json:"id"`
			Score    float64 `json:"score"`
			Metadata struct {
				DocumentID string `json:"document_id"`
				Filename   string `json:"filename"`
			} `json:"metadata"`
		} `json:"results"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Count < 1 || len(out.Results) != out.Count {
		t.Fatalf("count: %d, results: %d", out.Count, len(out.Results))
	}
	if out.Results[0].Metadata.Filename != "notes.txt" {
		t.Errorf("hit metadata: %+v", out.Results[0].Metadata)
	}
}

func TestHandleQuery_missingText(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	f.srv.handleQuery(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleQuery_documentFilter(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)
	id1 := f.ingestDoc(t, "one.txt", "first document body")
	f.ingestDoc(t, "two.txt", "second document body")

	body, _ := json.Marshal(map[string]interface{}{"text": "document", "top_k": 10, "document_id": id1})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	f.srv.handleQuery(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Results []struct {
			Metadata struct {
				DocumentID string `json:"document_id"`
			} `json:"metadata"`
		} `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) == 0 {
		t.Fatal("no results")
	}
	for _, hit := range out.Results {
		if hit.Metadata.DocumentID != id1 {
			t.Errorf("filter leaked document %s", hit.Metadata.DocumentID)
		}
	}
}

func TestHandleListDocuments(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)
	f.ingestDoc(t, "one.txt", "first")
	f.ingestDoc(t, "two.txt", "second")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents?limit=10", nil)
	w := httptest.NewRecorder()
	f.srv.handleListDocuments(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Documents []models.IngestionRecord `json:"documents"`
		Count     int                      `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || len(out.Documents) != 2 {
		t.Errorf("count: %d, documents: %d", out.Count, len(out.Documents))
	}
}

func TestHandleGetDocument(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)
	id := f.ingestDoc(t, "notes.txt", "hello")

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id, nil), "id", id)
	w := httptest.NewRecorder()
	f.srv.handleGetDocument(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var rec models.IngestionRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != id || rec.Status != "complete" {
		t.Errorf("record: %+v", rec)
	}
}

func TestHandleGetDocument_notFound(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/documents/nope", nil), "id", "nope")
	w := httptest.NewRecorder()
	f.srv.handleGetDocument(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)
	id := f.ingestDoc(t, "notes.txt", "hello")

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+id, nil), "id", id)
	w := httptest.NewRecorder()
	f.srv.handleDeleteDocument(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	if _, err := f.catalog.GetRecord(context.Background(), id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("catalog row survived deletion: %v", err)
	}
	n, _ := f.store.Count(context.Background())
	if n != 0 {
		t.Errorf("store holds %d records after deletion", n)
	}
}

func TestHandleStatus(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)
	f.ingestDoc(t, "notes.txt", "hello")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	f.srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Documents      int64  `json:"documents"`
		Complete       int64  `json:"complete"`
		VectorRecords  int64  `json:"vector_records"`
		DiskUsageBytes *int64 `json:"disk_usage_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Documents != 1 || out.Complete != 1 {
		t.Errorf("documents: %d, complete: %d", out.Documents, out.Complete)
	}
	if out.VectorRecords < 1 {
		t.Errorf("vector_records: got %d, want >= 1", out.VectorRecords)
	}
	if out.DiskUsageBytes == nil || *out.DiskUsageBytes < 1 {
		t.Error("expected positive disk_usage_bytes")
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, &mockWatchService{dirs: []string{"/tmp/docs"}})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	f.srv.handleWatchDirectoriesList(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/docs" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesList_NotEnabled(t *testing.T) {
	f := newTestServer(t, classify.Limits{}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	f.srv.handleWatchDirectoriesList(w, r)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleWatchDirectoriesAdd(t *testing.T) {
	mock := &mockWatchService{}
	f := newTestServer(t, classify.Limits{}, mock)
	dir := t.TempDir()

	body, _ := json.Marshal(map[string]string{"path": dir})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.srv.handleWatchDirectoriesAdd(w, r)
	if w.Code != http.StatusCreated {
		t.Errorf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if len(mock.Directories()) != 1 {
		t.Errorf("expected 1 directory, got %v", mock.Directories())
	}
}

func TestHandleWatchDirectoriesAdd_InvalidPath(t *testing.T) {
	mock := &mockWatchService{}
	f := newTestServer(t, classify.Limits{}, mock)

	body, _ := json.Marshal(map[string]string{"path": filepath.Join(t.TempDir(), "nonexistent")})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.srv.handleWatchDirectoriesAdd(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleWatchDirectoriesRemove(t *testing.T) {
	dir := t.TempDir()
	mock := &mockWatchService{dirs: []string{dir}}
	f := newTestServer(t, classify.Limits{}, mock)

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	w := httptest.NewRecorder()
	f.srv.handleWatchDirectoriesRemove(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if len(mock.Directories()) != 0 {
		t.Errorf("expected 0 directories, got %v", mock.Directories())
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind pipeline.Kind
		want int
	}{
		{pipeline.KindUnsupportedFormat, http.StatusUnsupportedMediaType},
		{pipeline.KindSizeLimitExceeded, http.StatusRequestEntityTooLarge},
		{pipeline.KindEmbeddingFailure, http.StatusBadGateway},
		{pipeline.KindTranscriptionFailure, http.StatusBadGateway},
		{pipeline.KindStoreFailure, http.StatusBadGateway},
		{pipeline.KindConversionFailure, http.StatusInternalServerError},
		{pipeline.Kind(""), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForKind(tt.kind); got != tt.want {
			t.Errorf("statusForKind(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
