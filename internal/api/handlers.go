package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/factshorts/internal/db"
	"github.com/bobarin/factshorts/internal/models"
	"github.com/bobarin/factshorts/internal/queue"
	"github.com/bobarin/factshorts/internal/scheduler"
	"github.com/bobarin/factshorts/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Handler struct {
	db         *db.DB
	queue      *queue.Queue
	sched      *scheduler.Scheduler
	purgeAfter time.Duration
}

func NewHandler(database *db.DB, q *queue.Queue, sched *scheduler.Scheduler, purgeAfter time.Duration) *Handler {
	return &Handler{
		db:         database,
		queue:      q,
		sched:      sched,
		purgeAfter: purgeAfter,
	}
}

// CreateVideo handles POST /v1/videos
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVideoRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	// Validate
	if req.Voice != "" && !lo.Contains(services.VoiceIDs(), req.Voice) {
		respondError(w, http.StatusBadRequest, "Unknown voice. Allowed: "+strings.Join(services.VoiceIDs(), ", "))
		return
	}
	if req.ScheduleIn != "" {
		d, err := time.ParseDuration(req.ScheduleIn)
		if err != nil || d < 0 {
			respondError(w, http.StatusBadRequest, "schedule_in must be a non-negative duration such as 2h or 90m")
			return
		}
		if !req.Publish {
			respondError(w, http.StatusBadRequest, "schedule_in requires publish=true")
			return
		}
	}

	job := &models.GenerationJob{
		ID:     uuid.New(),
		Status: models.JobStatusQueued,
		Options: models.JSONB{
			"voice":       req.Voice,
			"publish":     req.Publish,
			"schedule_in": req.ScheduleIn,
		},
	}
	if err := h.db.CreateJob(r.Context(), job); err != nil {
		log.Printf("[API] Failed to create job: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	if err := h.queue.Enqueue(r.Context(), &queue.Job{
		ID:         job.ID,
		Voice:      req.Voice,
		Publish:    req.Publish,
		ScheduleIn: req.ScheduleIn,
	}); err != nil {
		h.db.UpdateJobError(r.Context(), job.ID, "failed to enqueue: "+err.Error())
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateVideoResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// ListVideos handles GET /v1/videos
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.db.CountVideos(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count videos")
		return
	}

	videos, err := h.db.ListVideos(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	respondJSON(w, http.StatusOK, models.ListVideosResponse{
		Videos: videos,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetVideo handles GET /v1/videos/{id}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.db.GetVideo(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get video")
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.db.GetJob(r.Context(), jobID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// ListQueue handles GET /v1/queue, optionally filtered by ?status=
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := models.QueueStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.QueueStatusPending, models.QueueStatusUploaded, models.QueueStatusFailed:
		// valid
	default:
		respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: pending, uploaded, failed")
		return
	}

	entries, err := h.sched.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read upload queue")
		return
	}
	if status != "" {
		entries = lo.Filter(entries, func(e models.QueueEntry, _ int) bool { return e.Status == status })
	}
	respondJSON(w, http.StatusOK, entries)
}

// QueueStats handles GET /v1/queue/stats
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sched.Stats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read upload queue")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// PurgeQueue handles POST /v1/queue/purge
func (h *Handler) PurgeQueue(w http.ResponseWriter, r *http.Request) {
	var req models.PurgeQueueRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	olderThan := h.purgeAfter
	if req.OlderThanDays != nil {
		if *req.OlderThanDays < 0 {
			respondError(w, http.StatusBadRequest, "older_than_days must not be negative")
			return
		}
		olderThan = time.Duration(*req.OlderThanDays) * 24 * time.Hour
	}

	removed, err := h.sched.Purge(olderThan)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to purge upload queue")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ListVoices handles GET /v1/voices
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	voices := lo.Map(services.VoiceIDs(), func(id string, _ int) map[string]string {
		v := services.LookupVoice(id)
		return map[string]string{"id": v.ID, "name": v.Name, "style": v.Style}
	})
	respondJSON(w, http.StatusOK, voices)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
