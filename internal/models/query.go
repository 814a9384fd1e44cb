package models

import "fmt"

// SearchFilters optionally restricts a search to one document or to chunks
// whose section label contains a substring.
type SearchFilters struct {
	DocumentID string `json:"document_id,omitempty"`
	Section    string `json:"section,omitempty"`
}

// SearchRequest is a knowledge search over one course collection.
type SearchRequest struct {
	CourseID string         `json:"course_id"`
	Query    string         `json:"query"`
	TopK     int            `json:"top_k,omitempty"`
	Filters  *SearchFilters `json:"filters,omitempty"`
}

// Validate checks required fields and normalizes TopK.
func (r *SearchRequest) Validate() error {
	if r.CourseID == "" {
		return fmt.Errorf("course_id cannot be empty")
	}
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.TopK <= 0 {
		r.TopK = 12
	}
	if r.TopK > 50 {
		r.TopK = 50
	}
	return nil
}

// AskRequest is a question against one course's knowledge base.
type AskRequest struct {
	CourseID string `json:"course_id"`
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate checks required fields and normalizes TopK.
func (r *AskRequest) Validate() error {
	if r.CourseID == "" {
		return fmt.Errorf("course_id cannot be empty")
	}
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.TopK <= 0 {
		r.TopK = 12
	}
	if r.TopK > 50 {
		r.TopK = 50
	}
	return nil
}

// IngestRequest optionally overrides the default chunk policy for one
// ingestion run.
type IngestRequest struct {
	ChunkPolicy *ChunkPolicy `json:"chunk_policy,omitempty"`
}
