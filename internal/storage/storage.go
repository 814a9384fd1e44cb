// Package storage defines the persistence interface for documents, chunks,
// ingest tasks, and QA logs.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Storage defines metadata persistence operations. Relations are
// unidirectional: chunks and tasks reference documents by ID only, and
// callers join explicitly where needed.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id, status string) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocumentsByCourse(ctx context.Context, courseID string) ([]*models.Document, error)

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.ChunkRecord) error
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.ChunkRecord, error)
	DeleteChunksByDocumentID(ctx context.Context, docID string) error

	// Ingest task operations
	CreateTask(ctx context.Context, task *models.IngestTask) error
	GetTask(ctx context.Context, taskID string) (*models.IngestTask, error)
	// UpdateTask advances a task. Progress never decreases and terminal
	// tasks are left untouched.
	UpdateTask(ctx context.Context, taskID string, status models.TaskStatus, progress float64, errMsg string) error
	// FailStaleTasks marks every non-terminal task failed with the given
	// message and returns how many were affected. Run once at startup so
	// tasks interrupted by a restart are reported instead of staying
	// queued forever.
	FailStaleTasks(ctx context.Context, errMsg string) (int64, error)

	// QA log operations
	CreateQARecord(ctx context.Context, rec *models.QARecord) error
	ListQARecordsByCourse(ctx context.Context, courseID string, limit int) ([]*models.QARecord, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
