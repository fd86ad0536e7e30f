package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/player-forms-api/internal/models"
)

func TestJobRepositoryCreateAndGet(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	job := &models.GenerationJob{Filename: "roster.xlsx"}
	require.NoError(t, repo.Create(ctx, job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.JobStatusQueued, job.Status)
	require.False(t, job.CreatedAt.IsZero())

	loaded, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, loaded.ID)
	require.Equal(t, "roster.xlsx", loaded.Filename)

	// Stored copy is isolated from caller mutations.
	loaded.Filename = "changed.xlsx"
	again, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, "roster.xlsx", again.Filename)
}

func TestJobRepositoryGetUnknown(t *testing.T) {
	repo := NewJobRepository()
	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobRepositoryUpdate(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()
	job := &models.GenerationJob{}
	require.NoError(t, repo.Create(ctx, job))

	status := models.JobStatusFinished
	progress := 100
	url := "/api/v1/forms/download/token"
	msg := "boom"
	now := time.Now().UTC()
	summary := &models.GenerationSummary{RowsTotal: 3, FormsGenerated: 6}
	require.NoError(t, repo.Update(ctx, job.ID, UpdateJobParams{
		Status:       &status,
		Progress:     &progress,
		Summary:      summary,
		ResultURL:    &url,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}))

	loaded, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFinished, loaded.Status)
	require.Equal(t, 100, loaded.Progress)
	require.Equal(t, summary, loaded.Summary)
	require.Equal(t, url, *loaded.ResultURL)
	require.Equal(t, "boom", *loaded.ErrorMessage)

	// An empty error message clears the field.
	clear := ""
	require.NoError(t, repo.Update(ctx, job.ID, UpdateJobParams{ErrorMessage: &clear}))
	loaded, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Nil(t, loaded.ErrorMessage)
}

func TestJobRepositoryUpdateUnknown(t *testing.T) {
	repo := NewJobRepository()
	progress := 10
	err := repo.Update(context.Background(), "missing", UpdateJobParams{Progress: &progress})
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobRepositoryListFinishedBefore(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	mkFinished := func(age time.Duration) string {
		job := &models.GenerationJob{}
		require.NoError(t, repo.Create(ctx, job))
		status := models.JobStatusFinished
		finished := time.Now().UTC().Add(-age)
		require.NoError(t, repo.Update(ctx, job.ID, UpdateJobParams{Status: &status, FinishedAt: &finished}))
		return job.ID
	}

	oldID := mkFinished(3 * time.Hour)
	olderID := mkFinished(5 * time.Hour)
	mkFinished(time.Minute)

	// Still-running jobs never match.
	running := &models.GenerationJob{}
	require.NoError(t, repo.Create(ctx, running))

	expired, err := repo.ListFinishedBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	require.Equal(t, olderID, expired[0].ID)
	require.Equal(t, oldID, expired[1].ID)

	limited, err := repo.ListFinishedBefore(ctx, time.Now().Add(-time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, olderID, limited[0].ID)
}

func TestJobRepositoryDelete(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()
	job := &models.GenerationJob{}
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.Delete(ctx, job.ID))
	_, err := repo.GetByID(ctx, job.ID)
	require.ErrorIs(t, err, ErrJobNotFound)
}
