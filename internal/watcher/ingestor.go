package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

// Ingestor turns watched file events into documents and ingest tasks.
// Watched files are indexed in place; their document IDs are derived from
// course and path, so a rewrite re-ingests the same document.
type Ingestor struct {
	store   storage.Storage
	vectors vectorstore.Store
	manager *ingest.Manager
	cfg     *config.Config
	logger  *zap.Logger
}

// NewIngestor creates a watch ingestor.
func NewIngestor(store storage.Storage, vectors vectorstore.Store, manager *ingest.Manager, cfg *config.Config, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		store:   store,
		vectors: vectors,
		manager: manager,
		cfg:     cfg,
		logger:  logger,
	}
}

// HandleFile registers the file as a course document if needed and queues an
// ingestion. A full queue is logged and skipped; the next change to the file
// tries again.
func (i *Ingestor) HandleFile(courseID, path string) {
	ctx := context.Background()
	docID := fileid.WatchDocID(courseID, path)

	if _, err := i.store.GetDocument(ctx, docID); err != nil {
		var typed *models.Error
		if !errors.As(err, &typed) || typed.Code != models.CodeNotFound {
			i.logger.Error("watch lookup failed", zap.String("path", path), zap.Error(err))
			return
		}
		doc := &models.Document{
			ID:          docID,
			CourseID:    courseID,
			FileName:    filepath.Base(path),
			FileType:    strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			StoragePath: path,
			Status:      models.DocumentStatusUploaded,
		}
		if err := i.store.CreateDocument(ctx, doc); err != nil {
			i.logger.Error("watch create document failed", zap.String("path", path), zap.Error(err))
			return
		}
	}

	task, err := i.manager.Enqueue(ctx, docID, nil)
	if err != nil {
		if errors.Is(err, ingest.ErrQueueFull) {
			i.logger.Warn("watch ingest skipped, queue full", zap.String("path", path))
			return
		}
		i.logger.Error("watch enqueue failed", zap.String("path", path), zap.Error(err))
		return
	}
	i.logger.Info("watched file queued",
		zap.String("course_id", courseID),
		zap.String("path", path),
		zap.String("task_id", task.TaskID))
}

// HandleRemove deletes the document derived from the removed file, along
// with its chunks and vectors. Files never ingested are ignored.
func (i *Ingestor) HandleRemove(courseID, path string) {
	ctx := context.Background()
	docID := fileid.WatchDocID(courseID, path)

	if _, err := i.store.GetDocument(ctx, docID); err != nil {
		return
	}
	if err := i.store.DeleteChunksByDocumentID(ctx, docID); err != nil {
		i.logger.Error("watch delete chunks failed", zap.String("path", path), zap.Error(err))
	}
	if err := i.vectors.DeleteByDocument(ctx, courseID, docID); err != nil {
		i.logger.Error("watch delete vectors failed", zap.String("path", path), zap.Error(err))
	}
	if err := i.store.DeleteDocument(ctx, docID); err != nil {
		i.logger.Error("watch delete document failed", zap.String("path", path), zap.Error(err))
		return
	}
	i.logger.Info("watched file removed",
		zap.String("course_id", courseID),
		zap.String("path", path))
}
