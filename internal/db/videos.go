package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/factshorts/internal/models"
	"github.com/lib/pq"
)

const videoColumns = `
	id, job_id, title, video_path, archive_url, duration,
	hashtags, metadata, external_id, created_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	v := &models.Video{}
	var hashtags pq.StringArray
	err := row.Scan(
		&v.ID, &v.JobID, &v.Title, &v.VideoPath, &v.ArchiveURL, &v.Duration,
		&hashtags, &v.Metadata, &v.ExternalID, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Hashtags = []string(hashtags)
	return v, nil
}

// CreateVideo inserts a catalog row. Re-running the same video id replaces
// the mutable columns so a retried job does not fail on the primary key.
func (db *DB) CreateVideo(ctx context.Context, v *models.Video) error {
	query := `
		INSERT INTO videos (
			id, job_id, title, video_path, archive_url, duration, hashtags, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			video_path = EXCLUDED.video_path,
			archive_url = EXCLUDED.archive_url,
			duration = EXCLUDED.duration,
			hashtags = EXCLUDED.hashtags,
			metadata = EXCLUDED.metadata
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		v.ID, v.JobID, v.Title, v.VideoPath, v.ArchiveURL, v.Duration,
		pq.Array(v.Hashtags), v.Metadata,
	).Scan(&v.CreatedAt)
}

func (db *DB) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	v, err := scanVideo(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return v, nil
}

// ListVideos returns videos newest first.
func (db *DB) ListVideos(ctx context.Context, limit, offset int) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *v)
	}

	return videos, rows.Err()
}

func (db *DB) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count)
	return count, err
}

// SetExternalID records the publish target's id once a video is uploaded.
func (db *DB) SetExternalID(ctx context.Context, videoPath, externalID string) error {
	_, err := db.ExecContext(ctx, `UPDATE videos SET external_id = $1 WHERE video_path = $2`, externalID, videoPath)
	return err
}
