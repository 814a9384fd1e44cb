// Package vectorstore manages per-course vector collections for chunk
// embeddings: upsert, nearest-neighbor query, and deletion by document.
package vectorstore

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// VectorRecord is one persisted chunk embedding with its retrieval metadata.
// ChunkID is the stable external key; upserting the same ChunkID overwrites
// the previous record.
type VectorRecord struct {
	ChunkID    string
	DocumentID string
	CourseID   string
	Section    string
	Page       int
	Slide      int
	ChunkType  string
	// Text is a bounded preview of the chunk text, stored alongside the
	// embedding so query results carry content without a second lookup.
	Text      string
	Embedding []float32
}

// Store is the vector search contract. Implementations keep one logical
// collection per course and establish their backing store lazily on first use.
type Store interface {
	// Upsert writes records into the course collection, idempotent by
	// ChunkID. No-op on empty input.
	Upsert(ctx context.Context, courseID string, records []VectorRecord) error
	// Query returns up to topK nearest hits sorted by descending score.
	// Filters, when set, restrict by document ID or a section substring.
	Query(ctx context.Context, courseID string, embedding []float32, topK int, filters *models.SearchFilters) ([]*models.SearchHit, error)
	// DeleteByDocument removes every record of the document; no-op if none.
	DeleteByDocument(ctx context.Context, courseID, documentID string) error
	// DropCourse removes the whole course collection.
	DropCourse(ctx context.Context, courseID string) error
}
