package models

import "time"

// TaskStatus is the lifecycle state of an ingest task.
type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is absorbing: no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// IngestTask tracks one background ingestion of a document. Progress is
// monotonically non-decreasing until a terminal state; Error is set only
// when Status is failed.
type IngestTask struct {
	TaskID     string     `json:"task_id"`
	DocumentID string     `json:"document_id"`
	Status     TaskStatus `json:"status"`
	Progress   float64    `json:"progress"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
