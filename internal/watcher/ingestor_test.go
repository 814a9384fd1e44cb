package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

func newTestIngestor(t *testing.T) (*Ingestor, storage.Storage) {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	dir := t.TempDir()
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "kotae.db")
	cfg.Storage.VectorDir = filepath.Join(dir, "vectors")
	cfg.Storage.UploadDir = filepath.Join(dir, "raw")
	cfg.Storage.ParsedDir = filepath.Join(dir, "parsed")
	cfg.Ingest.Workers = 1

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	vectors := vectorstore.NewChromemStore(cfg.Storage.VectorDir)
	mgr := ingest.NewManager(store, vectors, llm.NewMockEmbedder(32), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		mgr.Stop()
	})

	return NewIngestor(store, vectors, mgr, cfg, zap.NewNop()), store
}

func waitForStatus(t *testing.T, store storage.Storage, docID, want string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := store.GetDocument(context.Background(), docID)
		if err == nil && doc.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("document %s never reached %s", docID, want)
}

func TestIngestorHandleFile(t *testing.T) {
	ing, store := newTestIngestor(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("Photosynthesis converts light into chemical energy."), 0o644); err != nil {
		t.Fatal(err)
	}

	ing.HandleFile("bio101", path)
	docID := fileid.WatchDocID("bio101", path)
	waitForStatus(t, store, docID, models.DocumentStatusReady)

	doc, err := store.GetDocument(context.Background(), docID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.FileName != "notes.txt" || doc.FileType != "txt" || doc.CourseID != "bio101" {
		t.Fatalf("document = %+v", doc)
	}

	// A rewrite re-ingests the same document instead of creating another.
	if err := os.WriteFile(path, []byte("Updated notes."), 0o644); err != nil {
		t.Fatal(err)
	}
	ing.HandleFile("bio101", path)
	waitForStatus(t, store, docID, models.DocumentStatusReady)

	docs, err := store.ListDocumentsByCourse(context.Background(), "bio101")
	if err != nil {
		t.Fatalf("ListDocumentsByCourse: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
}

func TestIngestorHandleRemove(t *testing.T) {
	ing, store := newTestIngestor(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("Photosynthesis converts light into chemical energy."), 0o644); err != nil {
		t.Fatal(err)
	}
	ing.HandleFile("bio101", path)
	docID := fileid.WatchDocID("bio101", path)
	waitForStatus(t, store, docID, models.DocumentStatusReady)

	ing.HandleRemove("bio101", path)

	if _, err := store.GetDocument(context.Background(), docID); err == nil {
		t.Fatal("document still present after remove")
	}
	chunks, err := store.GetChunksByDocumentID(context.Background(), docID)
	if err != nil {
		t.Fatalf("GetChunksByDocumentID: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("got %d chunks after remove, want 0", len(chunks))
	}

	// Removing a file that was never ingested is a no-op.
	ing.HandleRemove("bio101", filepath.Join(dir, "ghost.txt"))
}
