package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums
type FootageSource string

const (
	SourcePexels  FootageSource = "pexels"
	SourcePixabay FootageSource = "pixabay"
)

type QueueStatus string

const (
	QueueStatusPending  QueueStatus = "pending"
	QueueStatusUploaded QueueStatus = "uploaded"
	QueueStatusFailed   QueueStatus = "failed"
)

// IsTerminal reports whether an entry in this status can no longer change.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusUploaded || s == QueueStatusFailed
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Pipeline values

// WordTiming is one word's caption display interval, in seconds.
type WordTiming struct {
	Word     string  `json:"word"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// NarrationResult describes a synthesized narration track.
type NarrationResult struct {
	AudioPath    string       `json:"audio_path"`
	Duration     float64      `json:"duration"`
	WordTimings  []WordTiming `json:"word_timings"`
	SampleRate   int          `json:"sample_rate"`
	UsedFallback bool         `json:"used_fallback"`
}

// AssetCandidate is a provider search result considered during clip selection.
type AssetCandidate struct {
	Source     FootageSource   `json:"source"`
	ID         string          `json:"id"`
	RawPayload json.RawMessage `json:"raw_payload"`
	Duration   float64         `json:"duration"`
	Keyword    string          `json:"keyword"`
}

type Fact struct {
	Text      string `json:"text"`
	Length    int    `json:"length"`
	WordCount int    `json:"word_count"`
}

// Script is the narration package produced from a fact.
type Script struct {
	Hook        string   `json:"hook"`
	Script      string   `json:"script"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
	Keywords    []string `json:"keywords"`
}

// VideoJob tracks the artifacts of one generation run. Paths are filled in
// stage by stage and never cleared.
type VideoJob struct {
	VideoID            string
	VideoDir           string
	BackgroundClipPath string
	Narration          *NarrationResult
	MusicPath          string
	SubtitlePath       string
	MixedAudioPath     string
	FinalOutputPath    string
	TargetDuration     float64
}

// VideoMetadata is the durable record written next to each finished video.
type VideoMetadata struct {
	VideoID           string    `json:"video_id"`
	VideoPath         string    `json:"video_path"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Hashtags          []string  `json:"hashtags"`
	Fact              string    `json:"fact"`
	Script            string    `json:"script"`
	Keywords          []string  `json:"keywords"`
	Duration          float64   `json:"duration"`
	ClipSource        string    `json:"clip_source,omitempty"`
	UsedFallbackVoice bool      `json:"used_fallback_voice"`
	HasCaptions       bool      `json:"has_captions"`
	HasMusic          bool      `json:"has_music"`
	CreatedAt         time.Time `json:"created_at"`
}

// QueueEntry is one deferred publish request held by the upload scheduler.
type QueueEntry struct {
	ID            int64       `json:"id"`
	VideoPath     string      `json:"video_path"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Tags          []string    `json:"tags"`
	ScheduledTime time.Time   `json:"scheduled_time"`
	Status        QueueStatus `json:"status"`
	AddedAt       time.Time   `json:"added_at"`
	UploadedAt    *time.Time  `json:"uploaded_at,omitempty"`
	FailedAt      *time.Time  `json:"failed_at,omitempty"`
	ExternalID    string      `json:"external_id,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// Catalog models

type GenerationJob struct {
	ID           uuid.UUID  `json:"id"`
	Status       JobStatus  `json:"status"`
	Options      JSONB      `json:"options,omitempty"`
	VideoID      *string    `json:"video_id,omitempty"`
	Attempts     int        `json:"attempts"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Video struct {
	ID         string     `json:"id"`
	JobID      *uuid.UUID `json:"job_id,omitempty"`
	Title      string     `json:"title"`
	VideoPath  string     `json:"video_path"`
	ArchiveURL *string    `json:"archive_url,omitempty"`
	Duration   float64    `json:"duration"`
	Hashtags   []string   `json:"hashtags"`
	Metadata   JSONB      `json:"metadata"`
	ExternalID *string    `json:"external_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// API request/response types

type CreateVideoRequest struct {
	Voice      string `json:"voice,omitempty"`
	Publish    bool   `json:"publish,omitempty"`
	ScheduleIn string `json:"schedule_in,omitempty"` // Go duration, e.g. "2h"
}

type CreateVideoResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type PurgeQueueRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

type ListVideosResponse struct {
	Videos []Video `json:"videos"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
