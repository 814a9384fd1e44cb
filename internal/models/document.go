// Package models defines core data structures for documents, chunks, ingest
// tasks, and question answering.
package models

import (
	"strings"
	"time"
)

// DocType identifies the structural family of a parsed document. It decides
// which chunking strategy is applied.
type DocType string

const (
	DocTypePDF      DocType = "pdf"
	DocTypeDocx     DocType = "docx"
	DocTypePPTX     DocType = "pptx"
	DocTypeMarkdown DocType = "markdown"
	DocTypePlain    DocType = "plain"
)

// DocTypeForFileType maps an uploaded file type (extension without dot) to a
// DocType. Unknown types fall back to plain text.
func DocTypeForFileType(fileType string) DocType {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf":
		return DocTypePDF
	case "docx":
		return DocTypeDocx
	case "pptx":
		return DocTypePPTX
	case "md", "markdown":
		return DocTypeMarkdown
	default:
		return DocTypePlain
	}
}

// ContentBlock is one structural unit of a parsed document: a page, a
// paragraph, a slide, or a markdown section. Position fields are 1-based and
// zero when not applicable.
type ContentBlock struct {
	Text      string `json:"text"`
	Section   string `json:"section"`
	Page      int    `json:"page,omitempty"`
	Slide     int    `json:"slide,omitempty"`
	Paragraph int    `json:"paragraph,omitempty"`
}

// ParsedDocument is the immutable output of parsing one uploaded file.
type ParsedDocument struct {
	Type    DocType        `json:"type"`
	Blocks  []ContentBlock `json:"blocks"`
	RawText string         `json:"raw_text,omitempty"`
}

// Document readiness states.
const (
	DocumentStatusUploaded = "uploaded"
	DocumentStatusReady    = "ready"
	DocumentStatusFailed   = "failed"
)

// Document represents an uploaded course document and its ingestion readiness.
type Document struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	FileName    string    `json:"file_name"`
	FileType    string    `json:"file_type"`
	StoragePath string    `json:"-"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
