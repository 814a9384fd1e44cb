package models

import "time"

// ChunkPolicy bounds chunk size and overlap, in characters.
type ChunkPolicy struct {
	MaxChars int `json:"max_chars"`
	Overlap  int `json:"overlap"`
}

// ChunkMetadata carries the structural position a chunk came from. Part is
// the 1-based ordinal when a single oversized unit was split, zero otherwise.
type ChunkMetadata struct {
	Section   string `json:"section,omitempty"`
	Page      int    `json:"page,omitempty"`
	Slide     int    `json:"slide,omitempty"`
	Paragraph int    `json:"paragraph,omitempty"`
	ChunkType string `json:"chunk_type,omitempty"`
	Part      int    `json:"part,omitempty"`
}

// Chunk is one bounded retrieval unit produced by the chunker. Index values
// within one document are contiguous starting at 0.
type Chunk struct {
	Index       int           `json:"index"`
	Text        string        `json:"text"`
	Metadata    ChunkMetadata `json:"metadata"`
	StartOffset int           `json:"start_offset"`
	EndOffset   int           `json:"end_offset"`
}

// ChunkRecord is a persisted chunk row. ID is the stable external key used
// for vector records and citations; it is derived from the document ID and
// chunk index so that re-ingesting a document overwrites in place.
type ChunkRecord struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	CourseID   string        `json:"course_id"`
	ChunkIndex int           `json:"chunk_index"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"created_at"`
}
