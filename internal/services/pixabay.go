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
// Pixabay video search
// GET /api/videos/?key=..&q=..&video_type=all&per_page=20
// Each hit carries fixed renditions (large, medium, small, tiny).
// ---------------------------------------------------------------------------

const (
	pixabayBaseURL = "https://pixabay.com"
	pixabayPerPage = 20
)

// Rendition preference when choosing a download.
var pixabayRenditions = []string{"medium", "large", "small"}

type PixabayProvider struct {
	apiKey   string
	baseURL  string
	minWidth int
	client   *http.Client
}

var _ FootageProvider = (*PixabayProvider)(nil)

func NewPixabayProvider(apiKey string, minWidth int) *PixabayProvider {
	return &PixabayProvider{
		apiKey:   apiKey,
		baseURL:  pixabayBaseURL,
		minWidth: minWidth,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PixabayProvider) Source() models.FootageSource { return models.SourcePixabay }

type pixabaySearchResponse struct {
	Hits []json.RawMessage `json:"hits"`
}

type pixabayHit struct {
	ID       int64                       `json:"id"`
	Duration float64                     `json:"duration"`
	Videos   map[string]pixabayRendition `json:"videos"`
}

type pixabayRendition struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (p *PixabayProvider) Search(ctx context.Context, keyword string) ([]models.AssetCandidate, error) {
	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("q", keyword)
	q.Set("video_type", "all")
	q.Set("per_page", strconv.Itoa(pixabayPerPage))

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/api/videos/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pixabay request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Pixabay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Pixabay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Pixabay returned status %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var parsed pixabaySearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse Pixabay response: %w", err)
	}

	candidates := make([]models.AssetCandidate, 0, len(parsed.Hits))
	for _, raw := range parsed.Hits {
		var h pixabayHit
		if err := json.Unmarshal(raw, &h); err != nil {
			continue
		}
		candidates = append(candidates, models.AssetCandidate{
			Source:     models.SourcePixabay,
			ID:         strconv.FormatInt(h.ID, 10),
			RawPayload: raw,
			Duration:   h.Duration,
			Keyword:    keyword,
		})
	}

	log.Printf("[Pixabay] %d videos for %q", len(candidates), keyword)
	return candidates, nil
}

// ExtractURL prefers the medium rendition, then large, then small, skipping
// any narrower than the minimum width.
func (p *PixabayProvider) ExtractURL(candidate models.AssetCandidate) (string, error) {
	var h pixabayHit
	if err := json.Unmarshal(candidate.RawPayload, &h); err != nil {
		return "", fmt.Errorf("failed to parse Pixabay payload: %w", err)
	}

	for _, name := range pixabayRenditions {
		r, ok := h.Videos[name]
		if !ok || r.URL == "" || r.Width < p.minWidth {
			continue
		}
		return r.URL, nil
	}
	return "", fmt.Errorf("%w: Pixabay video %s has no rendition at least %dpx wide", ErrNoUsableVariant, candidate.ID, p.minWidth)
}
