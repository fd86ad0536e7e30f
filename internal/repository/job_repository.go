package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/player-forms-api/internal/models"
)

// ErrJobNotFound is returned when no job exists for the given identifier.
var ErrJobNotFound = errors.New("generation job not found")

// JobRepository keeps generation jobs in memory. Jobs are short-lived and
// intentionally do not survive a process restart; the generated archives on
// disk are reaped independently by the cleanup loop.
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*models.GenerationJob
}

// NewJobRepository constructs an empty store.
func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[string]*models.GenerationJob)}
}

// Create registers a new job with generated defaults.
func (r *JobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

// GetByID returns a copy of the stored job.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

// UpdateJobParams defines the mutable fields.
type UpdateJobParams struct {
	Status       *models.JobStatus
	Progress     *int
	Summary      *models.GenerationSummary
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update applies the provided changes to a stored job.
func (r *JobRepository) Update(ctx context.Context, id string, params UpdateJobParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.Summary != nil {
		job.Summary = params.Summary
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		if *params.ErrorMessage == "" {
			job.ErrorMessage = nil
		} else {
			job.ErrorMessage = params.ErrorMessage
		}
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

// ListFinishedBefore retrieves completed jobs whose finish time is before the
// cutoff, oldest first, for cleanup.
func (r *JobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]models.GenerationJob, 0)
	for _, job := range r.jobs {
		if job.Status != models.JobStatusFinished || job.FinishedAt == nil {
			continue
		}
		if job.FinishedAt.Before(cutoff) {
			matched = append(matched, *job)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].FinishedAt.Before(*matched[j].FinishedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Delete removes a job from the store.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}
