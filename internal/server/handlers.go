package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/config"
	"github.com/hyperjump/torikomi/internal/docid"
	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/internal/pipeline"
	"github.com/hyperjump/torikomi/internal/storage"
	"github.com/hyperjump/torikomi/internal/vectorstore"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	// Reject unsupported or oversized uploads before buffering the body.
	if err := s.pipeline.Validate(header.Filename, header.Size); err != nil {
		s.respondKindError(w, err)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}
	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(data)))

	doc, err := s.pipeline.Process(r.Context(), &models.RawUpload{
		Filename: filepath.Base(header.Filename),
		Data:     data,
	})
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondKindError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":          doc.ID,
		"filename":    doc.Filename,
		"category":    doc.Metadata.Category,
		"chunk_count": doc.ChunkCount,
		"status":      "complete",
	})
}

type queryRequest struct {
	Text       string `json:"text"`
	TopK       int    `json:"top_k"`
	Category   string `json:"category,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}
	if topK > 100 {
		topK = 100
	}
	var filter map[string]string
	if req.Category != "" || req.DocumentID != "" {
		filter = make(map[string]string)
		if req.Category != "" {
			filter[vectorstore.FieldCategory] = req.Category
		}
		if req.DocumentID != "" {
			filter[vectorstore.FieldDocumentID] = req.DocumentID
		}
	}

	vectors, err := s.scheduler.EmbedAll(r.Context(), []string{req.Text})
	if err != nil {
		s.logger.Error("query embedding failed", zap.Error(err))
		s.respondKindError(w, err)
		return
	}
	results, err := s.store.Query(r.Context(), vectors[0], topK, filter)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondKindError(w, err)
		return
	}
	if results == nil {
		results = []*vectorstore.QueryResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	records, err := s.catalog.ListRecords(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.IngestionRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": records,
		"count":     len(records),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.catalog.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	rec, err := s.catalog.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec.ChunkCount > 0 {
		ids := make([]string, rec.ChunkCount)
		for i := range ids {
			ids[i] = docid.ChunkID(id, i)
		}
		if err := s.store.Delete(ctx, ids); err != nil {
			s.logger.Error("vector deletion failed", zap.String("id", id), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if err := s.catalog.DeleteRecord(ctx, id); err != nil {
		s.logger.Error("catalog deletion failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := s.catalog.Stats(ctx)
	if err != nil {
		s.logger.Error("status: catalog stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	vecCount, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error("status: vector count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":      stats.Total,
		"complete":       stats.Complete,
		"failed":         stats.Failed,
		"chunks":         stats.Chunks,
		"vector_records": vecCount,
	}

	configInfo := map[string]interface{}{
		"embedding_backend":    s.config.Embedding.Backend,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"chunk_size":           s.config.Chunking.Size,
		"chunk_overlap":        s.config.Chunking.Overlap,
		"vector_store_backend": s.config.VectorStore.Backend,
		"collection":           s.config.VectorStore.Collection,
		"database_path":        s.config.Catalog.DatabasePath,
		"vector_store_path":    s.config.VectorStore.Path,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Catalog.DatabasePath,
		s.config.VectorStore.Path,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	dirs := s.watch.Directories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": dirs})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	s.config.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.config)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// maxUploadBytes is the request body cap: the largest category ceiling plus
// slack for multipart framing.
func (s *Server) maxUploadBytes() int64 {
	l := s.config.Limits
	max := l.TextMB
	for _, mb := range []int64{l.AudioMB, l.VideoMB, l.TabularMB} {
		if mb > max {
			max = mb
		}
	}
	return max<<20 + 1<<20
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// statusForKind maps a pipeline failure kind to an HTTP status. Upstream
// service failures surface as 502 so callers can tell them from bad input.
func statusForKind(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case pipeline.KindSizeLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case pipeline.KindTranscriptionFailure, pipeline.KindEmbeddingFailure, pipeline.KindStoreFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondKindError(w http.ResponseWriter, err error) {
	kind := pipeline.KindOf(err)
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		kind = perr.Kind
	}
	payload := map[string]string{"error": err.Error()}
	if kind != "" {
		payload["kind"] = string(kind)
	}
	s.respondJSON(w, statusForKind(kind), payload)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
