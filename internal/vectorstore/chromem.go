package vectorstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// collectionPrefix namespaces course collections in the persisted store.
const collectionPrefix = "chunks_"

// upsertConcurrency bounds parallel document writes within one upsert call.
const upsertConcurrency = 4

// ChromemStore is a Store backed by a persistent chromem-go database under
// a configured directory. The database is opened lazily on first use; an
// unreadable store is moved aside to a timestamped backup directory and
// reinitialized empty rather than overwritten in place.
type ChromemStore struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
	db *chromem.DB
}

// Option configures a ChromemStore.
type Option func(*ChromemStore)

// WithLogger sets the logger for the store.
func WithLogger(logger *zap.Logger) Option {
	return func(s *ChromemStore) {
		s.logger = logger
	}
}

// NewChromemStore creates a store persisting under dir. The directory is not
// touched until the first operation.
func NewChromemStore(dir string, opts ...Option) *ChromemStore {
	s := &ChromemStore{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// connect opens the persistent database, recovering once from an unreadable
// store by backing it up and reinitializing. If the backup move fails the
// error tells the operator to intervene manually; this is never swallowed.
func (s *ChromemStore) connect() (*chromem.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	db, err := chromem.NewPersistentDB(s.dir, false)
	if err != nil {
		backup := fmt.Sprintf("%s_backup_%s", strings.TrimSuffix(s.dir, string(os.PathSeparator)), time.Now().Format("20060102_150405"))
		if mvErr := os.Rename(s.dir, backup); mvErr != nil {
			return nil, models.WrapError(models.CodeVectorStore, err,
				"vector store at %s is unreadable and could not be moved to %s (%v); stop the service and intervene manually", s.dir, backup, mvErr)
		}
		s.logger.Warn("vector store unreadable, backed up and reinitialized",
			zap.String("dir", s.dir),
			zap.String("backup", backup),
			zap.Error(err))
		db, err = chromem.NewPersistentDB(s.dir, false)
		if err != nil {
			return nil, models.WrapError(models.CodeVectorStore, err, "reinitialize vector store at %s", s.dir)
		}
	}
	s.db = db
	return db, nil
}

func collectionName(courseID string) string {
	return collectionPrefix + courseID
}

// collection returns the course collection, creating it on first write.
func (s *ChromemStore) collection(courseID string) (*chromem.Collection, error) {
	db, err := s.connect()
	if err != nil {
		return nil, err
	}
	col, err := db.GetOrCreateCollection(collectionName(courseID), nil, nil)
	if err != nil {
		return nil, models.WrapError(models.CodeVectorStore, err, "get collection for course %s", courseID)
	}
	return col, nil
}

// Upsert writes records into the course collection. chromem overwrites
// documents by ID, which gives idempotent re-ingestion for stable chunk IDs.
func (s *ChromemStore) Upsert(ctx context.Context, courseID string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	col, err := s.collection(courseID)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		meta := map[string]string{
			"document_id": r.DocumentID,
			"course_id":   r.CourseID,
		}
		if r.Section != "" {
			meta["section"] = r.Section
		}
		if r.Page > 0 {
			meta["page"] = strconv.Itoa(r.Page)
		}
		if r.Slide > 0 {
			meta["slide"] = strconv.Itoa(r.Slide)
		}
		if r.ChunkType != "" {
			meta["chunk_type"] = r.ChunkType
		}
		docs[i] = chromem.Document{
			ID:        r.ChunkID,
			Content:   r.Text,
			Metadata:  meta,
			Embedding: r.Embedding,
		}
	}
	if err := col.AddDocuments(ctx, docs, upsertConcurrency); err != nil {
		return models.WrapError(models.CodeVectorStore, err, "upsert %d records for course %s", len(records), courseID)
	}
	return nil
}

// Query searches the course collection for the topK nearest records. The
// similarity chromem reports is already in [0,1] for normalized embeddings;
// it is clamped defensively before use as a score. A section filter is a
// substring match applied after the vector search, since the store only
// supports exact metadata matches.
func (s *ChromemStore) Query(ctx context.Context, courseID string, embedding []float32, topK int, filters *models.SearchFilters) ([]*models.SearchHit, error) {
	db, err := s.connect()
	if err != nil {
		return nil, err
	}
	col := db.GetCollection(collectionName(courseID), nil)
	if col == nil || col.Count() == 0 {
		return nil, nil
	}

	var where map[string]string
	if filters != nil && filters.DocumentID != "" {
		where = map[string]string{"document_id": filters.DocumentID}
	}
	n := topK
	if n <= 0 {
		n = 10
	}
	if count := col.Count(); n > count {
		n = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, models.WrapError(models.CodeVectorStore, err, "query course %s", courseID)
	}

	hits := make([]*models.SearchHit, 0, len(results))
	for _, r := range results {
		if filters != nil && filters.Section != "" &&
			!strings.Contains(strings.ToLower(r.Metadata["section"]), strings.ToLower(filters.Section)) {
			continue
		}
		page, _ := strconv.Atoi(r.Metadata["page"])
		slide, _ := strconv.Atoi(r.Metadata["slide"])
		hits = append(hits, &models.SearchHit{
			ChunkID:    r.ID,
			Score:      clampScore(float64(r.Similarity)),
			DocumentID: r.Metadata["document_id"],
			Meta: models.ChunkMetadata{
				Section:   r.Metadata["section"],
				Page:      page,
				Slide:     slide,
				ChunkType: r.Metadata["chunk_type"],
			},
			Text: r.Content,
		})
	}
	return hits, nil
}

// DeleteByDocument removes every record of documentID from the course
// collection. Missing collections and unmatched documents are no-ops.
func (s *ChromemStore) DeleteByDocument(ctx context.Context, courseID, documentID string) error {
	db, err := s.connect()
	if err != nil {
		return err
	}
	col := db.GetCollection(collectionName(courseID), nil)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return models.WrapError(models.CodeVectorStore, err, "delete document %s from course %s", documentID, courseID)
	}
	return nil
}

// DropCourse removes the whole course collection.
func (s *ChromemStore) DropCourse(ctx context.Context, courseID string) error {
	db, err := s.connect()
	if err != nil {
		return err
	}
	if err := db.DeleteCollection(collectionName(courseID)); err != nil {
		return models.WrapError(models.CodeVectorStore, err, "drop collection for course %s", courseID)
	}
	return nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
