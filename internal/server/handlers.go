package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	if courseID == "" {
		s.respondError(w, models.NewError(models.CodeInvalidInput, "course id is required"))
		return
	}

	// The multipart envelope adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Storage.MaxFileSize+1024*1024)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, models.NewError(models.CodeFileTooLarge,
				"file exceeds the %d byte limit", s.config.Storage.MaxFileSize))
			return
		}
		s.respondError(w, models.NewError(models.CodeInvalidInput, "multipart field %q is required", "file"))
		return
	}
	defer file.Close()

	fileType := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !s.fileTypeAllowed(fileType) {
		s.respondError(w, models.NewError(models.CodeFileNotSupported,
			"file type %q is not supported", fileType).WithDetails("allowed", s.config.Storage.AllowedFileTypes))
		return
	}

	doc := &models.Document{
		ID:       uuid.New().String(),
		CourseID: courseID,
		FileName: header.Filename,
		FileType: fileType,
		Status:   models.DocumentStatusUploaded,
	}
	doc.StoragePath = filepath.Join(s.config.Storage.UploadDir, doc.ID+"."+fileType)

	if err := s.saveUpload(file, doc.StoragePath); err != nil {
		s.logger.Error("save upload failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	if err := s.storage.CreateDocument(r.Context(), doc); err != nil {
		os.Remove(doc.StoragePath)
		s.logger.Error("create document failed", zap.Error(err))
		s.respondError(w, err)
		return
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("course_id", courseID),
		zap.String("file_name", doc.FileName))
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.WrapError(models.CodeInternal, err, "create upload dir")
	}
	dst, err := os.Create(path)
	if err != nil {
		return models.WrapError(models.CodeInternal, err, "create upload file")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return models.WrapError(models.CodeInternal, err, "write upload file")
	}
	return nil
}

func (s *Server) fileTypeAllowed(fileType string) bool {
	for _, t := range s.config.Storage.AllowedFileTypes {
		if strings.EqualFold(t, fileType) {
			return true
		}
	}
	return false
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	docs, err := s.storage.ListDocumentsByCourse(r.Context(), courseID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     len(docs),
	})
}

func (s *Server) handleQAHistory(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, models.NewError(models.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	records, err := s.storage.ListQARecordsByCourse(r.Context(), courseID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	var req models.IngestRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			s.respondError(w, models.NewError(models.CodeInvalidInput, "invalid request body"))
			return
		}
	}

	task, err := s.ingest.Enqueue(r.Context(), documentID, req.ChunkPolicy)
	if err != nil {
		s.logger.Warn("enqueue ingest failed", zap.String("document_id", documentID), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, &models.IngestResponse{
		TaskID: task.TaskID,
		Status: task.Status,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.ingest.GetStatus(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

// handleDeleteDocument removes the document row, its chunks, its vectors,
// and its files. Vector and file cleanup failures are logged but do not keep
// the metadata deletion from completing.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID := chi.URLParam(r, "documentID")

	doc, err := s.storage.GetDocument(ctx, documentID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.storage.DeleteChunksByDocumentID(ctx, documentID); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.vectors.DeleteByDocument(ctx, doc.CourseID, documentID); err != nil {
		s.logger.Error("delete vectors failed", zap.String("document_id", documentID), zap.Error(err))
	}
	if err := s.storage.DeleteDocument(ctx, documentID); err != nil {
		s.respondError(w, err)
		return
	}
	if doc.StoragePath != "" {
		if err := os.Remove(doc.StoragePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove upload file failed", zap.String("path", doc.StoragePath), zap.Error(err))
		}
	}
	parsed := filepath.Join(s.config.Storage.ParsedDir, documentID+".json")
	if err := os.Remove(parsed); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove parsed file failed", zap.String("path", parsed), zap.Error(err))
	}

	s.logger.Info("document deleted", zap.String("document_id", documentID))
	s.respondJSON(w, http.StatusOK, map[string]string{"id": documentID, "status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, models.NewError(models.CodeInvalidInput, "invalid request body"))
		return
	}
	s.logger.Debug("search request", zap.String("course_id", req.CourseID), zap.String("query", req.Query))
	resp, err := s.retriever.Search(r.Context(), &req)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, models.NewError(models.CodeInvalidInput, "invalid request body"))
		return
	}
	s.logger.Debug("ask request", zap.String("course_id", req.CourseID))
	resp, err := s.answerer.Ask(r.Context(), &req)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.respondError(w, err)
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := map[string]interface{}{
		"documents": docCount,
		"chunks":    chunkCount,
		"config": map[string]interface{}{
			"chunk_max_chars":      s.config.RAG.ChunkMaxChars,
			"chunk_overlap":        s.config.RAG.ChunkOverlap,
			"top_k":                s.config.RAG.TopK,
			"rerank_top_n":         s.config.RAG.RerankTopN,
			"confidence_threshold": s.config.RAG.ConfidenceThreshold,
			"embedding_model":      s.config.LLM.EmbeddingModel,
			"chat_model":           s.config.LLM.ChatModel,
		},
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.VectorDir,
		s.config.Storage.UploadDir,
		s.config.Storage.ParsedDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	e := models.AsError(err)
	s.respondJSON(w, e.HTTPStatus(), map[string]interface{}{"error": e})
}
