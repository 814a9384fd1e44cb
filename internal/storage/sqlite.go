// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_type TEXT NOT NULL,
		storage_path TEXT,
		status TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_course_id ON documents(course_id);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_course_id ON chunks(course_id);

	CREATE TABLE IF NOT EXISTS ingest_tasks (
		task_id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		status TEXT NOT NULL,
		progress REAL NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_document_id ON ingest_tasks(document_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON ingest_tasks(status);

	CREATE TABLE IF NOT EXISTS qa_logs (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		citations TEXT,
		confidence REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_qa_logs_course_id ON qa_logs(course_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, course_id, file_name, file_type, storage_path, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.CourseID, doc.FileName, doc.FileType, doc.StoragePath, doc.Status, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, file_name, file_type, storage_path, status, created_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.CourseID, &doc.FileName, &doc.FileType, &doc.StoragePath, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, models.NewError(models.CodeNotFound, "document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocumentStatus sets a document's readiness status.
func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return models.NewError(models.CodeNotFound, "document not found: %s", id)
	}
	return nil
}

// DeleteDocument removes a document by ID.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListDocumentsByCourse returns all documents of a course, newest first.
func (s *SQLiteStorage) ListDocumentsByCourse(ctx context.Context, courseID string) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, file_name, file_type, storage_path, status, created_at, updated_at
		 FROM documents WHERE course_id = ? ORDER BY created_at DESC`,
		courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.CourseID, &doc.FileName, &doc.FileType, &doc.StoragePath, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// BatchCreateChunks inserts chunks in a single transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, course_id, chunk_index, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.CourseID, chunk.ChunkIndex, chunk.Text, string(metadataJSON), chunk.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksByDocumentID returns all chunks for a document ordered by chunk_index.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, course_id, chunk_index, content, metadata, created_at
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.ChunkRecord
	for rows.Next() {
		var chunk models.ChunkRecord
		var metadataJSON string
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.CourseID, &chunk.ChunkIndex, &chunk.Text, &metadataJSON, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		if metadataJSON != "" {
			_ = json.Unmarshal([]byte(metadataJSON), &chunk.Metadata)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// DeleteChunksByDocumentID removes all chunks for a document.
func (s *SQLiteStorage) DeleteChunksByDocumentID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID)
	return err
}

// CreateTask inserts an ingest task.
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *models.IngestTask) error {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_tasks (task_id, document_id, status, progress, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.TaskID, task.DocumentID, task.Status, task.Progress, task.Error, task.CreatedAt, task.UpdatedAt,
	)
	return err
}

// GetTask returns an ingest task by ID.
func (s *SQLiteStorage) GetTask(ctx context.Context, taskID string) (*models.IngestTask, error) {
	var task models.IngestTask
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, document_id, status, progress, error, created_at, updated_at
		 FROM ingest_tasks WHERE task_id = ?`, taskID,
	).Scan(&task.TaskID, &task.DocumentID, &task.Status, &task.Progress, &task.Error, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, models.NewError(models.CodeTaskNotFound, "task not found: %s", taskID)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask advances a task's status and progress. Progress never
// decreases, and tasks already done or failed are left untouched.
func (s *SQLiteStorage) UpdateTask(ctx context.Context, taskID string, status models.TaskStatus, progress float64, errMsg string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE ingest_tasks
		 SET status = ?, progress = MAX(progress, ?), error = ?, updated_at = ?
		 WHERE task_id = ? AND status NOT IN (?, ?)`,
		status, progress, errMsg, time.Now(), taskID, models.TaskDone, models.TaskFailed,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		// either missing or terminal; terminal is an allowed no-op
		if _, err := s.GetTask(ctx, taskID); err != nil {
			return err
		}
	}
	return nil
}

// FailStaleTasks marks all non-terminal tasks failed with errMsg and returns
// how many were affected.
func (s *SQLiteStorage) FailStaleTasks(ctx context.Context, errMsg string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE ingest_tasks SET status = ?, error = ?, updated_at = ? WHERE status IN (?, ?)`,
		models.TaskFailed, errMsg, time.Now(), models.TaskQueued, models.TaskProcessing,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CreateQARecord inserts a QA log row.
func (s *SQLiteStorage) CreateQARecord(ctx context.Context, rec *models.QARecord) error {
	citationsJSON, err := json.Marshal(rec.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}
	rec.CreatedAt = time.Now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO qa_logs (id, course_id, question, answer, citations, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CourseID, rec.Question, rec.Answer, string(citationsJSON), rec.Confidence, rec.CreatedAt,
	)
	return err
}

// ListQARecordsByCourse returns the newest QA logs of a course.
func (s *SQLiteStorage) ListQARecordsByCourse(ctx context.Context, courseID string, limit int) ([]*models.QARecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, question, answer, citations, confidence, created_at
		 FROM qa_logs WHERE course_id = ? ORDER BY created_at DESC LIMIT ?`,
		courseID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.QARecord
	for rows.Next() {
		var rec models.QARecord
		var citationsJSON string
		if err := rows.Scan(&rec.ID, &rec.CourseID, &rec.Question, &rec.Answer, &citationsJSON, &rec.Confidence, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if citationsJSON != "" {
			_ = json.Unmarshal([]byte(citationsJSON), &rec.Citations)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
