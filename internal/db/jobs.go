package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bobarin/factshorts/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateJob(ctx context.Context, job *models.GenerationJob) error {
	query := `
		INSERT INTO generation_jobs (id, status, options, attempts)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Status, job.Options, job.Attempts,
	).Scan(&job.CreatedAt)
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	query := `
		SELECT
			id, status, options, video_id, attempts,
			error_message, started_at, finished_at, created_at
		FROM generation_jobs
		WHERE id = $1
	`

	job := &models.GenerationJob{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.Status, &job.Options, &job.VideoID, &job.Attempts,
		&job.ErrorMessage, &job.StartedAt, &job.FinishedAt, &job.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

func (db *DB) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	now := time.Now()
	query := `UPDATE generation_jobs SET status = $1, started_at = $2, attempts = attempts + 1 WHERE id = $3`

	if status == models.JobStatusSucceeded || status == models.JobStatusFailed {
		query = `UPDATE generation_jobs SET status = $1, finished_at = $2 WHERE id = $3`
	}

	_, err := db.ExecContext(ctx, query, status, now, id)
	return err
}

func (db *DB) UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE generation_jobs
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
	return err
}

// CompleteJob marks the job succeeded and links the video it produced.
func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID, videoID string) error {
	query := `
		UPDATE generation_jobs
		SET status = $1, video_id = $2, finished_at = $3, error_message = NULL
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusSucceeded, videoID, time.Now(), id)
	return err
}
