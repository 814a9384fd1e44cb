package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func testRecords() []VectorRecord {
	return []VectorRecord{
		{
			ChunkID:    "doc1_0",
			DocumentID: "doc1",
			CourseID:   "cs101",
			Section:    "Page 1",
			Page:       1,
			ChunkType:  "page",
			Text:       "B-trees are balanced search trees.",
			Embedding:  []float32{1, 0, 0},
		},
		{
			ChunkID:    "doc1_1",
			DocumentID: "doc1",
			CourseID:   "cs101",
			Section:    "Page 2",
			Page:       2,
			ChunkType:  "page",
			Text:       "Hash indexes support equality lookups.",
			Embedding:  []float32{0, 1, 0},
		},
		{
			ChunkID:    "doc2_0",
			DocumentID: "doc2",
			CourseID:   "cs101",
			Section:    "Slide 1",
			Slide:      1,
			ChunkType:  "slide",
			Text:       "Transactions guarantee atomicity.",
			Embedding:  []float32{0, 0, 1},
		},
	}
}

func TestChromemStore_upsertAndQuery(t *testing.T) {
	s := NewChromemStore(filepath.Join(t.TempDir(), "vectors"))
	ctx := context.Background()

	if err := s.Upsert(ctx, "cs101", testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.Query(ctx, "cs101", []float32{1, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	if hits[0].ChunkID != "doc1_0" {
		t.Errorf("top hit = %s", hits[0].ChunkID)
	}
	for i, h := range hits {
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("hit %d score %f out of [0,1]", i, h.Score)
		}
		if i > 0 && h.Score > hits[i-1].Score {
			t.Errorf("hits not sorted by descending score at %d", i)
		}
	}
	if hits[0].Meta.Page != 1 || hits[0].Meta.Section != "Page 1" {
		t.Errorf("top hit metadata: %+v", hits[0].Meta)
	}
	if hits[0].Text != "B-trees are balanced search trees." {
		t.Errorf("top hit text: %q", hits[0].Text)
	}
}

func TestChromemStore_upsertOverwritesByID(t *testing.T) {
	s := NewChromemStore(filepath.Join(t.TempDir(), "vectors"))
	ctx := context.Background()

	recs := testRecords()
	if err := s.Upsert(ctx, "cs101", recs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	recs[0].Text = "updated text"
	if err := s.Upsert(ctx, "cs101", recs[:1]); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	hits, err := s.Query(ctx, "cs101", []float32{1, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits after re-upsert, want 3", len(hits))
	}
	if hits[0].Text != "updated text" {
		t.Errorf("top hit text = %q, want overwrite", hits[0].Text)
	}
}

func TestChromemStore_queryFilters(t *testing.T) {
	s := NewChromemStore(filepath.Join(t.TempDir(), "vectors"))
	ctx := context.Background()
	if err := s.Upsert(ctx, "cs101", testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.Query(ctx, "cs101", []float32{1, 0, 0}, 3, &models.SearchFilters{DocumentID: "doc2"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "doc2" {
		t.Errorf("document filter: %+v", hits)
	}

	hits, err = s.Query(ctx, "cs101", []float32{1, 0, 0}, 3, &models.SearchFilters{Section: "slide"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "doc2_0" {
		t.Errorf("section filter: %+v", hits)
	}
}

func TestChromemStore_queryTopKClamped(t *testing.T) {
	s := NewChromemStore(filepath.Join(t.TempDir(), "vectors"))
	ctx := context.Background()
	if err := s.Upsert(ctx, "cs101", testRecords()[:2]); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// topK above the collection size must not error
	hits, err := s.Query(ctx, "cs101", []float32{1, 0, 0}, 50, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
}

func TestChromemStore_queryUnknownCourse(t *testing.T) {
	s := NewChromemStore(filepath.Join(t.TempDir(), "vectors"))
	hits, err := s.Query(context.Background(), "nope", []float32{1, 0, 0}, 5, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if hits != nil {
		t.Errorf("got %+v, want nil", hits)
	}
}

func TestChromemStore_deleteByDocument(t *testing.T) {
	s := NewChromemStore(filepath.Join(t.TempDir(), "vectors"))
	ctx := context.Background()
	if err := s.Upsert(ctx, "cs101", testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.DeleteByDocument(ctx, "cs101", "doc1"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	hits, err := s.Query(ctx, "cs101", []float32{1, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "doc2" {
		t.Errorf("after delete: %+v", hits)
	}

	// deleting an unknown document or course is a no-op
	if err := s.DeleteByDocument(ctx, "cs101", "missing"); err != nil {
		t.Errorf("unknown document: %v", err)
	}
	if err := s.DeleteByDocument(ctx, "unknown", "doc1"); err != nil {
		t.Errorf("unknown course: %v", err)
	}
}

func TestChromemStore_persistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vectors")
	ctx := context.Background()

	s := NewChromemStore(dir)
	if err := s.Upsert(ctx, "cs101", testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reopened := NewChromemStore(dir)
	hits, err := reopened.Query(ctx, "cs101", []float32{1, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Query after reopen: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits after reopen, want 3", len(hits))
	}
}

func TestChromemStore_recoversFromUnreadableStore(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "vectors")
	// a regular file where the store directory should be makes the open fail
	if err := os.WriteFile(dir, []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}

	s := NewChromemStore(dir)
	ctx := context.Background()
	if err := s.Upsert(ctx, "cs101", testRecords()[:1]); err != nil {
		t.Fatalf("Upsert after recovery: %v", err)
	}

	// the unreadable store was moved aside, not destroyed
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatal(err)
	}
	foundBackup := false
	for _, e := range entries {
		if e.Name() != "vectors" && len(e.Name()) > len("vectors_backup_") {
			foundBackup = true
		}
	}
	if !foundBackup {
		t.Error("expected a timestamped backup of the unreadable store")
	}
}
