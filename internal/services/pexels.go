package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bobarin/factshorts/internal/models"
)

// ---------------------------------------------------------------------------
// Pexels video search
// GET /videos/search?query=..&orientation=portrait&size=large&per_page=15
// Auth is the raw API key in the Authorization header.
// ---------------------------------------------------------------------------

const (
	pexelsBaseURL = "https://api.pexels.com"
	pexelsPerPage = 15
)

type PexelsProvider struct {
	apiKey   string
	baseURL  string
	minWidth int
	client   *http.Client
}

var _ FootageProvider = (*PexelsProvider)(nil)

func NewPexelsProvider(apiKey string, minWidth int) *PexelsProvider {
	return &PexelsProvider{
		apiKey:   apiKey,
		baseURL:  pexelsBaseURL,
		minWidth: minWidth,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PexelsProvider) Source() models.FootageSource { return models.SourcePexels }

type pexelsSearchResponse struct {
	Videos []json.RawMessage `json:"videos"`
}

type pexelsVideo struct {
	ID         int64             `json:"id"`
	Duration   float64           `json:"duration"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

type pexelsVideoFile struct {
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Link    string `json:"link"`
}

func (p *PexelsProvider) Search(ctx context.Context, keyword string) ([]models.AssetCandidate, error) {
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("orientation", "portrait")
	q.Set("size", "large")
	q.Set("per_page", strconv.Itoa(pexelsPerPage))

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/videos/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pexels request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Pexels request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Pexels response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Pexels returned status %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var parsed pexelsSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse Pexels response: %w", err)
	}

	candidates := make([]models.AssetCandidate, 0, len(parsed.Videos))
	for _, raw := range parsed.Videos {
		var v pexelsVideo
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		candidates = append(candidates, models.AssetCandidate{
			Source:     models.SourcePexels,
			ID:         strconv.FormatInt(v.ID, 10),
			RawPayload: raw,
			Duration:   v.Duration,
			Keyword:    keyword,
		})
	}

	log.Printf("[Pexels] %d videos for %q", len(candidates), keyword)
	return candidates, nil
}

// ExtractURL returns the widest portrait file that meets the minimum width.
func (p *PexelsProvider) ExtractURL(candidate models.AssetCandidate) (string, error) {
	var v pexelsVideo
	if err := json.Unmarshal(candidate.RawPayload, &v); err != nil {
		return "", fmt.Errorf("failed to parse Pexels payload: %w", err)
	}

	var best *pexelsVideoFile
	for i := range v.VideoFiles {
		f := &v.VideoFiles[i]
		if f.Link == "" || f.Width >= f.Height || f.Width < p.minWidth {
			continue
		}
		if best == nil || f.Width > best.Width {
			best = f
		}
	}
	if best == nil {
		return "", fmt.Errorf("%w: Pexels video %s has no portrait file at least %dpx wide", ErrNoUsableVariant, candidate.ID, p.minWidth)
	}
	return best.Link, nil
}
