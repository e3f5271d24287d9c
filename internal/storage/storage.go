package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Supabase Storage archive for finished videos
//
// Each video is stored as <video_id>/final.mp4 and <video_id>/metadata.json
// in the configured bucket. Files are streamed from disk on every attempt.
// ---------------------------------------------------------------------------

const (
	// Upload timeout per attempt; final videos are tens of MB
	uploadTimeout = 300 * time.Second

	// Retry configuration
	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
)

type Storage struct {
	url        string
	serviceKey string
	Bucket     string
	client     *http.Client
	baseDelay  time.Duration
}

func New(url, serviceKey, bucket string) *Storage {
	return &Storage{
		url:        strings.TrimRight(url, "/"),
		serviceKey: serviceKey,
		Bucket:     bucket,
		baseDelay:  baseRetryDelay,
		client: &http.Client{
			Timeout: uploadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// ArchiveResult holds the public URLs of an archived video.
type ArchiveResult struct {
	VideoURL    string
	MetadataURL string
}

// ArchiveVideo uploads the final video and its metadata record.
func (s *Storage) ArchiveVideo(ctx context.Context, videoID, videoPath, metadataPath string) (*ArchiveResult, error) {
	videoKey := path.Join(videoID, "final.mp4")
	if err := s.UploadFile(ctx, videoKey, videoPath, "video/mp4"); err != nil {
		return nil, fmt.Errorf("archive video: %w", err)
	}

	result := &ArchiveResult{VideoURL: s.GetPublicURL(videoKey)}
	if metadataPath != "" {
		metaKey := path.Join(videoID, "metadata.json")
		if err := s.UploadFile(ctx, metaKey, metadataPath, "application/json"); err != nil {
			return nil, fmt.Errorf("archive metadata: %w", err)
		}
		result.MetadataURL = s.GetPublicURL(metaKey)
	}

	log.Printf("[Storage] Archived %s to %s", videoID, result.VideoURL)
	return result, nil
}

// UploadFile uploads a local file to Supabase Storage with retries and
// exponential backoff. PUT with x-upsert makes re-archiving idempotent.
func (s *Storage) UploadFile(ctx context.Context, storagePath, localPath, contentType string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, filepath.ToSlash(storagePath))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay(attempt)
			log.Printf("[Storage] Upload retry %d/%d for %s (waiting %v)...", attempt, maxRetries, storagePath, delay)

			select {
			case <-ctx.Done():
				return fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		retry, err := s.putFile(ctx, url, localPath, info.Size(), contentType)
		if err == nil {
			if attempt > 0 {
				log.Printf("[Storage] Upload succeeded on attempt %d for %s", attempt+1, storagePath)
			}
			return nil
		}
		lastErr = err
		if !retry {
			return lastErr
		}
		log.Printf("[Storage] Upload attempt %d failed (retryable): %v", attempt+1, err)
	}

	return fmt.Errorf("upload failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (s *Storage) putFile(ctx context.Context, url, localPath string, size int64, contentType string) (retryable bool, err error) {
	f, err := os.Open(localPath)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(uploadCtx, "PUT", url, f)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return isRetryableError(err), fmt.Errorf("failed to upload: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return false, nil
	}
	return isRetryableStatus(resp.StatusCode), fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
}

// GetPublicURL returns the public URL for a file
func (s *Storage) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, filepath.ToSlash(storagePath))
}

// retryDelay calculates exponential backoff with jitter: base * 2^(attempt-1) + random jitter
func (s *Storage) retryDelay(attempt int) time.Duration {
	delay := float64(s.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusInternalServerError || // 500
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
