package models

import "time"

// SearchHit is one transient retrieval result. Score is in [0,1], higher is
// more similar. Snippet is a bounded preview of the chunk text.
type SearchHit struct {
	ChunkID    string        `json:"chunk_id"`
	Score      float64       `json:"score"`
	DocumentID string        `json:"document_id"`
	Meta       ChunkMetadata `json:"meta"`
	Snippet    string        `json:"snippet"`
	// Text is the full chunk text for prompt building; omitted from API
	// responses, which expose Snippet only.
	Text string `json:"-"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Hits      []*SearchHit `json:"hits"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	Query     string       `json:"query"`
}

// Citation links a bracketed reference in a generated answer back to the
// evidence chunk it cites.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Section    string `json:"section,omitempty"`
	Snippet    string `json:"snippet"`
}

// AskResponse is the whole-answer response. QAID is empty when the answer
// was not persisted (no evidence, or confidence below threshold).
type AskResponse struct {
	QAID       string      `json:"qa_id,omitempty"`
	Answer     string      `json:"answer"`
	Confidence float64     `json:"confidence"`
	Citations  []*Citation `json:"citations"`
	Followups  []string    `json:"followups"`
}

// Stream event types for the ask stream channel. Each question produces zero
// or more delta events followed by exactly one final or error event.
const (
	StreamDelta = "delta"
	StreamFinal = "final"
	StreamError = "error"
)

// StreamEvent is one message on the ask stream channel.
type StreamEvent struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	QAID       string      `json:"qa_id,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
	Citations  []*Citation `json:"citations,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// QARecord is a persisted question/answer exchange.
type QARecord struct {
	ID         string      `json:"id"`
	CourseID   string      `json:"course_id"`
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	Citations  []*Citation `json:"citations"`
	Confidence float64     `json:"confidence"`
	CreatedAt  time.Time   `json:"created_at"`
}

// IngestResponse acknowledges a queued ingestion.
type IngestResponse struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
}
