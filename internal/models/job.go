package models

import "time"

// JobStatus captures generation job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFinished   JobStatus = "FINISHED"
	JobStatusFailed     JobStatus = "FAILED"
)

// GenerationSummary aggregates the outcome of one batch run.
type GenerationSummary struct {
	Sheets         int        `json:"sheets"`
	RowsTotal      int        `json:"rowsTotal"`
	RowsProcessed  int        `json:"rowsProcessed"`
	FormsGenerated int        `json:"formsGenerated"`
	Failures       []RowError `json:"failures,omitempty"`
}

// GenerationJob tracks one user-triggered generation run. Jobs live only in
// memory; nothing survives a process restart.
type GenerationJob struct {
	ID           string             `json:"id"`
	Filename     string             `json:"filename"`
	Status       JobStatus          `json:"status"`
	Progress     int                `json:"progress"`
	Summary      *GenerationSummary `json:"summary,omitempty"`
	ResultURL    *string            `json:"resultUrl,omitempty"`
	ErrorMessage *string            `json:"errorMessage,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	FinishedAt   *time.Time         `json:"finishedAt,omitempty"`
}
