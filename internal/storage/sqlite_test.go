package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDocument() *models.Document {
	return &models.Document{
		ID:          "doc1",
		CourseID:    "cs101",
		FileName:    "syllabus.pdf",
		FileType:    "pdf",
		StoragePath: "/data/raw/doc1.pdf",
		Status:      models.DocumentStatusUploaded,
	}
}

func TestSQLiteStorage_documentLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, testDocument()); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	doc, err := s.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.CourseID != "cs101" || doc.Status != models.DocumentStatusUploaded {
		t.Errorf("got %+v", doc)
	}

	if err := s.UpdateDocumentStatus(ctx, "doc1", models.DocumentStatusReady); err != nil {
		t.Fatalf("UpdateDocumentStatus: %v", err)
	}
	doc, _ = s.GetDocument(ctx, "doc1")
	if doc.Status != models.DocumentStatusReady {
		t.Errorf("status = %q", doc.Status)
	}

	if err := s.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument(ctx, "doc1"); err == nil {
		t.Error("expected not-found after delete")
	}
}

func TestSQLiteStorage_getDocumentNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetDocument(context.Background(), "missing")
	var typed *models.Error
	if !errors.As(err, &typed) || typed.Code != models.CodeNotFound {
		t.Errorf("got %v, want %s", err, models.CodeNotFound)
	}
}

func TestSQLiteStorage_listDocumentsByCourse(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, doc := range []*models.Document{
		{ID: "a", CourseID: "cs101", FileName: "a.pdf", FileType: "pdf", Status: models.DocumentStatusReady},
		{ID: "b", CourseID: "cs101", FileName: "b.md", FileType: "md", Status: models.DocumentStatusUploaded},
		{ID: "c", CourseID: "other", FileName: "c.txt", FileType: "txt", Status: models.DocumentStatusReady},
	} {
		if err := s.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument %s: %v", doc.ID, err)
		}
	}

	docs, err := s.ListDocumentsByCourse(ctx, "cs101")
	if err != nil {
		t.Fatalf("ListDocumentsByCourse: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d documents, want 2", len(docs))
	}
}

func TestSQLiteStorage_chunks(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, testDocument()); err != nil {
		t.Fatal(err)
	}
	chunks := []*models.ChunkRecord{
		{ID: "doc1_0", DocumentID: "doc1", CourseID: "cs101", ChunkIndex: 0, Text: "first",
			Metadata: models.ChunkMetadata{Section: "Page 1", Page: 1, ChunkType: "page"}},
		{ID: "doc1_1", DocumentID: "doc1", CourseID: "cs101", ChunkIndex: 1, Text: "second",
			Metadata: models.ChunkMetadata{Section: "Page 2", Page: 2, ChunkType: "page"}},
	}
	if err := s.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}

	got, err := s.GetChunksByDocumentID(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetChunksByDocumentID: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	if got[0].ChunkIndex != 0 || got[1].ChunkIndex != 1 {
		t.Error("chunks not ordered by index")
	}
	if got[0].Metadata.Page != 1 || got[0].Metadata.ChunkType != "page" {
		t.Errorf("metadata round trip: %+v", got[0].Metadata)
	}

	n, err := s.CountChunks(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountChunks = %d, %v", n, err)
	}

	if err := s.DeleteChunksByDocumentID(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteChunksByDocumentID: %v", err)
	}
	got, _ = s.GetChunksByDocumentID(ctx, "doc1")
	if len(got) != 0 {
		t.Errorf("got %d chunks after delete", len(got))
	}
}

func TestSQLiteStorage_taskLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	task := &models.IngestTask{TaskID: "t1", DocumentID: "doc1", Status: models.TaskQueued, Progress: 0}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := s.UpdateTask(ctx, "t1", models.TaskProcessing, 0.1, ""); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != models.TaskProcessing || got.Progress != 0.1 {
		t.Errorf("got %+v", got)
	}

	// progress never decreases
	if err := s.UpdateTask(ctx, "t1", models.TaskProcessing, 0.05, ""); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	got, _ = s.GetTask(ctx, "t1")
	if got.Progress != 0.1 {
		t.Errorf("progress regressed to %f", got.Progress)
	}

	// terminal states absorb later updates
	if err := s.UpdateTask(ctx, "t1", models.TaskDone, 1.0, ""); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if err := s.UpdateTask(ctx, "t1", models.TaskProcessing, 0.5, ""); err != nil {
		t.Fatalf("UpdateTask after terminal: %v", err)
	}
	got, _ = s.GetTask(ctx, "t1")
	if got.Status != models.TaskDone || got.Progress != 1.0 {
		t.Errorf("terminal state mutated: %+v", got)
	}
}

func TestSQLiteStorage_getTaskNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetTask(context.Background(), "missing")
	var typed *models.Error
	if !errors.As(err, &typed) || typed.Code != models.CodeTaskNotFound {
		t.Errorf("got %v, want %s", err, models.CodeTaskNotFound)
	}
	if err := s.UpdateTask(context.Background(), "missing", models.TaskDone, 1, ""); err == nil {
		t.Error("expected error updating missing task")
	}
}

func TestSQLiteStorage_failStaleTasks(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, task := range []*models.IngestTask{
		{TaskID: "t1", DocumentID: "d1", Status: models.TaskQueued},
		{TaskID: "t2", DocumentID: "d2", Status: models.TaskProcessing, Progress: 0.5},
		{TaskID: "t3", DocumentID: "d3", Status: models.TaskDone, Progress: 1.0},
	} {
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.FailStaleTasks(ctx, "interrupted by restart")
	if err != nil {
		t.Fatalf("FailStaleTasks: %v", err)
	}
	if n != 2 {
		t.Errorf("failed %d tasks, want 2", n)
	}
	t2, _ := s.GetTask(ctx, "t2")
	if t2.Status != models.TaskFailed || t2.Error != "interrupted by restart" {
		t.Errorf("got %+v", t2)
	}
	t3, _ := s.GetTask(ctx, "t3")
	if t3.Status != models.TaskDone {
		t.Errorf("done task touched: %+v", t3)
	}
}

func TestSQLiteStorage_qaRecords(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &models.QARecord{
		ID:       "qa1",
		CourseID: "cs101",
		Question: "what is a b-tree?",
		Answer:   "A balanced tree structure [1].",
		Citations: []*models.Citation{
			{ChunkID: "doc1_0", DocumentID: "doc1", Section: "Page 1", Snippet: "B-trees..."},
		},
		Confidence: 0.92,
	}
	if err := s.CreateQARecord(ctx, rec); err != nil {
		t.Fatalf("CreateQARecord: %v", err)
	}

	recs, err := s.ListQARecordsByCourse(ctx, "cs101", 10)
	if err != nil {
		t.Fatalf("ListQARecordsByCourse: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Confidence != 0.92 || len(recs[0].Citations) != 1 {
		t.Errorf("round trip: %+v", recs[0])
	}
	if recs[0].Citations[0].ChunkID != "doc1_0" {
		t.Errorf("citations: %+v", recs[0].Citations[0])
	}
}
