package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bobarin/factshorts/internal/db"
	"github.com/bobarin/factshorts/internal/models"
	"github.com/bobarin/factshorts/internal/queue"
	"github.com/bobarin/factshorts/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Worker struct {
	db        *db.DB
	queue     *queue.Queue
	storage   *storage.Storage // nil when archiving is disabled
	pipeline  *Orchestrator
	uploadSem chan struct{} // Limits concurrent archive uploads
}

func New(database *db.DB, q *queue.Queue, stor *storage.Storage, pipeline *Orchestrator) *Worker {
	return &Worker{
		db:        database,
		queue:     q,
		storage:   stor,
		pipeline:  pipeline,
		uploadSem: make(chan struct{}, 2),
	}
}

// uploadWithLimit wraps an archive upload with a semaphore so parallel jobs
// do not saturate the storage connection.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	log.Printf("[Upload] %s waiting for upload slot...", label)
	select {
	case w.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start runs concurrency consumers of the generation queue until ctx is done.
func (w *Worker) Start(ctx context.Context, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	log.Printf("[Worker] Started with concurrency: %d", concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			w.processQueue(gctx)
			return nil
		})
	}
	err := g.Wait()
	log.Println("[Worker] Shutting down...")
	return err
}

func (w *Worker) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Worker] Error dequeuing: %v", err)
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("[Worker] Processing job %s", job.ID)

			if err := w.db.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
				log.Printf("[Worker] Failed to update job status: %v", err)
			}

			videoID, err := w.handleGenerate(ctx, job)
			if err != nil {
				log.Printf("[Worker] Job %s failed: %v", job.ID, err)
				w.db.UpdateJobError(context.WithoutCancel(ctx), job.ID, err.Error())
				continue
			}

			log.Printf("[Worker] Job %s completed: video %s", job.ID, videoID)
			if err := w.db.CompleteJob(ctx, job.ID, videoID); err != nil {
				log.Printf("[Worker] Failed to complete job %s: %v", job.ID, err)
			}
		}
	}
}

// handleGenerate runs the pipeline for one queued job, archives the result
// when storage is configured and records it in the catalog.
func (w *Worker) handleGenerate(ctx context.Context, job *queue.Job) (string, error) {
	opts := RunOptions{Voice: job.Voice, Publish: job.Publish}
	if job.ScheduleIn != "" {
		d, err := time.ParseDuration(job.ScheduleIn)
		if err != nil {
			return "", fmt.Errorf("invalid schedule_in %q: %w", job.ScheduleIn, err)
		}
		opts.ScheduleIn = d
	}

	result, err := w.pipeline.Run(ctx, opts)
	if err != nil {
		return "", err
	}
	meta := result.Metadata

	video := &models.Video{
		ID:        meta.VideoID,
		JobID:     uuidPtr(job.ID),
		Title:     meta.Title,
		VideoPath: meta.VideoPath,
		Duration:  meta.Duration,
		Hashtags:  meta.Hashtags,
		Metadata: models.JSONB{
			"fact":                meta.Fact,
			"script":              meta.Script,
			"keywords":            meta.Keywords,
			"clip_source":         meta.ClipSource,
			"used_fallback_voice": meta.UsedFallbackVoice,
			"has_captions":        meta.HasCaptions,
			"has_music":           meta.HasMusic,
			"queue_entry_id":      result.QueueEntryID,
			"degraded_stages":     degradedStages(result.Degraded),
		},
	}

	if w.storage != nil {
		var archived *storage.ArchiveResult
		err := w.uploadWithLimit(ctx, meta.VideoID, func() error {
			var err error
			archived, err = w.storage.ArchiveVideo(ctx, meta.VideoID, meta.VideoPath, result.MetadataPath)
			return err
		})
		if err != nil {
			// the local copy is the durable record; archiving is best-effort
			log.Printf("[Worker] Warning: archive of %s failed: %v", meta.VideoID, err)
		} else {
			video.ArchiveURL = &archived.VideoURL
		}
	}

	if err := w.db.CreateVideo(ctx, video); err != nil {
		return "", fmt.Errorf("failed to record video %s: %w", meta.VideoID, err)
	}
	return meta.VideoID, nil
}

// RecordPublished stores the external id of an uploaded video in the catalog.
func (w *Worker) RecordPublished(ctx context.Context, entry models.QueueEntry, externalID string) {
	if err := w.db.SetExternalID(ctx, entry.VideoPath, externalID); err != nil {
		log.Printf("[Worker] Failed to record external id for %s: %v", entry.VideoPath, err)
	}
}

func degradedStages(errs []*StageError) []string {
	stages := make([]string, 0, len(errs))
	for _, se := range errs {
		stages = append(stages, se.Stage)
	}
	return stages
}

// FailureStage returns the pipeline stage an error came from, or "".
func FailureStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
