// Package ingest drives background document ingestion: parse, chunk, embed,
// and persist, tracked as a polled task with stepwise progress.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/parser"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Progress checkpoints of one ingestion run. Each step is committed
// individually; a later failure keeps the earlier steps' writes.
const (
	progressStarted  = 0.1
	progressParsed   = 0.3
	progressChunked  = 0.5
	progressEmbedded = 0.7
	progressDone     = 1.0
)

// ErrQueueFull rejects ingestion when the bounded queue has no room.
var ErrQueueFull = models.NewError(models.CodeQueueFull, "ingest queue is full, retry later")

// job is one queued ingestion unit.
type job struct {
	taskID string
	doc    *models.Document
	policy models.ChunkPolicy
}

// Manager runs ingestion jobs on a fixed-size worker pool fed by a bounded
// queue. Admission is controlled at Enqueue; a saturated queue rejects with
// ErrQueueFull instead of blocking the caller.
type Manager struct {
	store    storage.Storage
	vectors  vectorstore.Store
	parser   *parser.Parser
	embedder llm.Embedder
	cfg      *config.Config
	logger   *zap.Logger

	mu    sync.Mutex
	queue chan job
	wg    sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for the manager.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates an ingestion manager. Call Start before enqueueing.
func NewManager(store storage.Storage, vectors vectorstore.Store, embedder llm.Embedder, cfg *config.Config, opts ...Option) *Manager {
	queueSize := cfg.Ingest.QueueSize
	if queueSize <= 0 {
		queueSize = 32
	}
	m := &Manager{
		store:    store,
		vectors:  vectors,
		parser:   parser.New(),
		embedder: embedder,
		cfg:      cfg,
		logger:   zap.NewNop(),
		queue:    make(chan job, queueSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start fails tasks left non-terminal by a previous run, then launches the
// worker pool. Workers exit when ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	n, err := m.store.FailStaleTasks(ctx, "interrupted by restart, re-run ingestion")
	if err != nil {
		return fmt.Errorf("fail stale tasks: %w", err)
	}
	if n > 0 {
		m.logger.Warn("failed stale ingest tasks from previous run", zap.Int64("count", n))
	}

	workers := m.cfg.Ingest.Workers
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	return nil
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	close(m.queue)
	m.mu.Unlock()
	m.wg.Wait()
}

// Enqueue creates a queued task for the document and admits it to the pool.
// It returns immediately; poll GetStatus with the returned task for
// completion. A nil policy uses the configured chunking defaults.
func (m *Manager) Enqueue(ctx context.Context, documentID string, policy *models.ChunkPolicy) (*models.IngestTask, error) {
	doc, err := m.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	p := models.ChunkPolicy{MaxChars: m.cfg.RAG.ChunkMaxChars, Overlap: m.cfg.RAG.ChunkOverlap}
	if policy != nil && policy.MaxChars > 0 {
		p = *policy
	}

	// Admission and enqueue under one lock: workers only drain the queue,
	// so a free slot seen here cannot disappear before the send below.
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == cap(m.queue) {
		return nil, ErrQueueFull
	}

	task := &models.IngestTask{
		TaskID:     uuid.New().String(),
		DocumentID: doc.ID,
		Status:     models.TaskQueued,
		Progress:   0,
	}
	if err := m.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	m.queue <- job{taskID: task.TaskID, doc: doc, policy: p}

	m.logger.Info("ingest task queued",
		zap.String("task_id", task.TaskID),
		zap.String("document_id", doc.ID),
		zap.String("course_id", doc.CourseID))
	return task, nil
}

// GetStatus returns the task's current state. Unknown IDs yield a typed
// task-not-found error.
func (m *Manager) GetStatus(ctx context.Context, taskID string) (*models.IngestTask, error) {
	return m.store.GetTask(ctx, taskID)
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-m.queue:
			if !ok {
				return
			}
			m.process(ctx, j)
		}
	}
}

// process runs one ingestion to completion. Each step commits on its own, so
// a failure keeps prior steps' writes; re-ingesting the document resolves the
// resulting inconsistency because chunk IDs are stable and old rows and
// vectors are replaced in step five.
func (m *Manager) process(ctx context.Context, j job) {
	doc := j.doc
	log := m.logger.With(zap.String("task_id", j.taskID), zap.String("document_id", doc.ID))

	if err := m.store.UpdateTask(ctx, j.taskID, models.TaskProcessing, progressStarted, ""); err != nil {
		log.Error("update task failed", zap.Error(err))
		return
	}

	// parse
	parsed, err := m.parser.Parse(doc.StoragePath, models.DocTypeForFileType(doc.FileType))
	if err != nil {
		m.fail(ctx, j.taskID, doc.ID, models.WrapError(models.CodeParseFailed, err, "parse %s", doc.FileName))
		return
	}
	if err := m.persistParsed(doc.ID, parsed); err != nil {
		m.fail(ctx, j.taskID, doc.ID, models.WrapError(models.CodeParseFailed, err, "persist parsed content"))
		return
	}
	if err := m.store.UpdateTask(ctx, j.taskID, models.TaskProcessing, progressParsed, ""); err != nil {
		log.Error("update task failed", zap.Error(err))
	}

	// chunk
	chunks := chunker.Chunk(parsed, j.policy)
	if len(chunks) == 0 {
		m.fail(ctx, j.taskID, doc.ID, models.NewError(models.CodeChunkingFailed, "no text content in %s", doc.FileName))
		return
	}
	if err := m.store.UpdateTask(ctx, j.taskID, models.TaskProcessing, progressChunked, ""); err != nil {
		log.Error("update task failed", zap.Error(err))
	}

	// embed
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		m.fail(ctx, j.taskID, doc.ID, err)
		return
	}
	if len(embeddings) != len(chunks) {
		m.fail(ctx, j.taskID, doc.ID, models.NewError(models.CodeEmbeddingFailed, "got %d embeddings for %d chunks", len(embeddings), len(chunks)))
		return
	}
	if err := m.store.UpdateTask(ctx, j.taskID, models.TaskProcessing, progressEmbedded, ""); err != nil {
		log.Error("update task failed", zap.Error(err))
	}

	// persist chunks and vectors, replacing any previous ingestion's rows
	if err := m.store.DeleteChunksByDocumentID(ctx, doc.ID); err != nil {
		m.fail(ctx, j.taskID, doc.ID, models.WrapError(models.CodeIngestFailed, err, "clear previous chunks"))
		return
	}
	if err := m.vectors.DeleteByDocument(ctx, doc.CourseID, doc.ID); err != nil {
		m.fail(ctx, j.taskID, doc.ID, err)
		return
	}

	records := make([]*models.ChunkRecord, len(chunks))
	vecs := make([]vectorstore.VectorRecord, len(chunks))
	for i, c := range chunks {
		chunkID := fmt.Sprintf("%s_%d", doc.ID, c.Index)
		records[i] = &models.ChunkRecord{
			ID:         chunkID,
			DocumentID: doc.ID,
			CourseID:   doc.CourseID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			Metadata:   c.Metadata,
		}
		vecs[i] = vectorstore.VectorRecord{
			ChunkID:    chunkID,
			DocumentID: doc.ID,
			CourseID:   doc.CourseID,
			Section:    c.Metadata.Section,
			Page:       c.Metadata.Page,
			Slide:      c.Metadata.Slide,
			ChunkType:  c.Metadata.ChunkType,
			Text:       utils.Truncate(c.Text, m.cfg.RAG.PreviewLength),
			Embedding:  embeddings[i],
		}
	}
	if err := m.store.BatchCreateChunks(ctx, records); err != nil {
		m.fail(ctx, j.taskID, doc.ID, models.WrapError(models.CodeIngestFailed, err, "persist chunks"))
		return
	}
	if err := m.vectors.Upsert(ctx, doc.CourseID, vecs); err != nil {
		m.fail(ctx, j.taskID, doc.ID, err)
		return
	}

	if err := m.store.UpdateDocumentStatus(ctx, doc.ID, models.DocumentStatusReady); err != nil {
		log.Error("update document status failed", zap.Error(err))
	}
	if err := m.store.UpdateTask(ctx, j.taskID, models.TaskDone, progressDone, ""); err != nil {
		log.Error("update task failed", zap.Error(err))
	}
	log.Info("ingestion complete", zap.Int("chunks", len(chunks)))
}

// persistParsed writes the parsed representation next to the raw upload so
// re-chunking does not require re-parsing.
func (m *Manager) persistParsed(docID string, parsed *models.ParsedDocument) error {
	if m.cfg.Storage.ParsedDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.cfg.Storage.ParsedDir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(parsed)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.cfg.Storage.ParsedDir, docID+".json"), data, 0644)
}

// fail records a terminal failure on both the task and the document.
func (m *Manager) fail(ctx context.Context, taskID, docID string, cause error) {
	typed := models.AsError(cause)
	m.logger.Warn("ingestion failed",
		zap.String("task_id", taskID),
		zap.String("document_id", docID),
		zap.Error(typed))
	if err := m.store.UpdateTask(ctx, taskID, models.TaskFailed, 0, typed.Error()); err != nil {
		m.logger.Error("record task failure", zap.Error(err))
	}
	if err := m.store.UpdateDocumentStatus(ctx, docID, models.DocumentStatusFailed); err != nil {
		m.logger.Error("record document failure", zap.Error(err))
	}
}
