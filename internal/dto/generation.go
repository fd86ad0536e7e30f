package dto

import "github.com/noah-isme/player-forms-api/internal/models"

// GenerateJobResponse is returned when a generation run is accepted.
type GenerateJobResponse struct {
	ID       string           `json:"id"`
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
}

// JobStatusResponse exposes job progress to polling clients.
type JobStatusResponse struct {
	ID        string                    `json:"id"`
	Status    models.JobStatus          `json:"status"`
	Progress  int                       `json:"progress"`
	Summary   *models.GenerationSummary `json:"summary,omitempty"`
	ResultURL *string                   `json:"resultUrl,omitempty"`
	Error     *string                   `json:"error,omitempty"`
}
