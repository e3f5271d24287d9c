package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/bobarin/factshorts/internal/models"
)

// ---------------------------------------------------------------------------
// Stock footage acquisition
//
// Providers are searched for each of the first few keywords. Every result is
// pooled, anything shorter than the minimum duration is dropped, and one clip
// is picked at random from the longest few so repeated runs on the same fact
// do not always reuse the same footage.
// ---------------------------------------------------------------------------

var (
	ErrNoCandidateFound  = errors.New("no candidate clip found")
	ErrDownloadExhausted = errors.New("download attempts exhausted")
	ErrNoUsableVariant   = errors.New("no usable video variant")
)

const (
	downloadChunkSize = 8192
	downloadUserAgent = "Mozilla/5.0 (compatible; factshorts/1.0)"
)

// FootageProvider is one stock-video search backend.
type FootageProvider interface {
	Source() models.FootageSource
	Search(ctx context.Context, keyword string) ([]models.AssetCandidate, error)
	// ExtractURL picks the downloadable variant out of a candidate's raw payload.
	ExtractURL(candidate models.AssetCandidate) (string, error)
}

type AcquirerOptions struct {
	KeywordLimit     int
	TopCandidates    int
	DownloadAttempts int
	DownloadBackoff  time.Duration
	SearchTimeout    time.Duration
}

type AssetAcquirer struct {
	providers []FootageProvider
	opts      AcquirerOptions
	client    *http.Client

	// overridable in tests
	intn  func(n int) int
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAssetAcquirer(opts AcquirerOptions, providers ...FootageProvider) *AssetAcquirer {
	if opts.KeywordLimit <= 0 {
		opts.KeywordLimit = 3
	}
	if opts.TopCandidates <= 0 {
		opts.TopCandidates = 5
	}
	if opts.DownloadAttempts <= 0 {
		opts.DownloadAttempts = 3
	}
	if opts.DownloadBackoff <= 0 {
		opts.DownloadBackoff = time.Second
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 10 * time.Second
	}
	return &AssetAcquirer{
		providers: lo.Filter(providers, func(p FootageProvider, _ int) bool { return p != nil }),
		opts:      opts,
		client:    &http.Client{Timeout: 60 * time.Second},
		intn:      rand.Intn,
		sleep:     sleepContext,
	}
}

// HasProviders reports whether at least one search backend is configured.
func (a *AssetAcquirer) HasProviders() bool {
	return len(a.providers) > 0
}

// CandidateKey identifies a candidate across providers.
func CandidateKey(c models.AssetCandidate) string {
	return string(c.Source) + ":" + c.ID
}

// FindBestClip searches every provider for the first KeywordLimit keywords and
// returns one of the TopCandidates longest clips that meet minDuration.
// Candidates whose CandidateKey is listed in exclude are skipped.
func (a *AssetAcquirer) FindBestClip(ctx context.Context, keywords []string, minDuration float64, exclude ...string) (*models.AssetCandidate, error) {
	pool := a.search(ctx, keywords)
	if len(exclude) > 0 {
		pool = lo.Reject(pool, func(c models.AssetCandidate, _ int) bool {
			return lo.Contains(exclude, CandidateKey(c))
		})
	}

	top := RankCandidates(pool, minDuration, a.opts.TopCandidates)
	if len(top) == 0 {
		return nil, fmt.Errorf("%w: %d results, none at least %.1fs", ErrNoCandidateFound, len(pool), minDuration)
	}

	picked := top[a.intn(len(top))]
	log.Printf("[Footage] Selected %s clip %s (%.1fs, keyword=%q) from top %d of %d",
		picked.Source, picked.ID, picked.Duration, picked.Keyword, len(top), len(pool))
	return &picked, nil
}

// RankCandidates drops clips shorter than minDuration, sorts the rest by
// duration descending and keeps at most topN.
func RankCandidates(pool []models.AssetCandidate, minDuration float64, topN int) []models.AssetCandidate {
	eligible := lo.Filter(pool, func(c models.AssetCandidate, _ int) bool {
		return c.Duration >= minDuration
	})
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Duration > eligible[j].Duration
	})
	if topN > 0 && len(eligible) > topN {
		eligible = eligible[:topN]
	}
	return eligible
}

func (a *AssetAcquirer) search(ctx context.Context, keywords []string) []models.AssetCandidate {
	keywords = lo.Uniq(lo.Compact(keywords))
	if len(keywords) > a.opts.KeywordLimit {
		keywords = keywords[:a.opts.KeywordLimit]
	}

	var pool []models.AssetCandidate
	for _, keyword := range keywords {
		for _, p := range a.providers {
			searchCtx, cancel := context.WithTimeout(ctx, a.opts.SearchTimeout)
			results, err := p.Search(searchCtx, keyword)
			cancel()
			if err != nil {
				// a failing provider only shrinks the pool
				log.Printf("[Footage] %s search for %q failed: %v", p.Source(), keyword, err)
				continue
			}
			for i := range results {
				results[i].Source = p.Source()
				results[i].Keyword = keyword
			}
			pool = append(pool, results...)
		}
	}
	return pool
}

// ResolveURL asks the candidate's own provider for its download URL.
func (a *AssetAcquirer) ResolveURL(candidate models.AssetCandidate) (string, error) {
	p, ok := lo.Find(a.providers, func(p FootageProvider) bool { return p.Source() == candidate.Source })
	if !ok {
		return "", fmt.Errorf("%w: no provider for source %q", ErrNoUsableVariant, candidate.Source)
	}
	return p.ExtractURL(candidate)
}

// Download fetches url into destPath, retrying any failed attempt with
// exponential backoff. The body is streamed to a sibling temp file and renamed
// into place so destPath never holds a partial download.
func (a *AssetAcquirer) Download(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= a.opts.DownloadAttempts; attempt++ {
		if attempt > 1 {
			delay := a.opts.DownloadBackoff * time.Duration(1<<(attempt-2))
			log.Printf("[Footage] Download attempt %d/%d in %s: %v", attempt, a.opts.DownloadAttempts, delay, lastErr)
			if err := a.sleep(ctx, delay); err != nil {
				return err
			}
		}

		retryable, err := a.downloadOnce(ctx, url, destPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %v", ErrDownloadExhausted, lastErr)
}

func (a *AssetAcquirer) downloadOnce(ctx context.Context, url, destPath string) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	tmpPath := destPath + ".download"
	f, err := os.Create(tmpPath)
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	written, err := io.CopyBuffer(f, resp.Body, make([]byte, downloadChunkSize))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written == 0 {
		err = errors.New("empty response body")
	}
	if err != nil {
		os.Remove(tmpPath)
		return true, fmt.Errorf("download interrupted after %d bytes: %w", written, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to move download into place: %w", err)
	}

	log.Printf("[Footage] Downloaded %d bytes to %s", written, destPath)
	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
