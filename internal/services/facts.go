package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"github.com/bobarin/factshorts/internal/models"
)

var ErrNoFact = errors.New("no fact available")

// FactSource supplies the raw fact a video is built around.
type FactSource interface {
	Name() string
	FetchFact(ctx context.Context) (*models.Fact, error)
}

// ---------------------------------------------------------------------------
// API Ninjas facts
// GET /v1/facts with X-Api-Key; the response is [{"fact": "..."}].
// ---------------------------------------------------------------------------

const apiNinjasBaseURL = "https://api.api-ninjas.com"

type APINinjasFactSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ FactSource = (*APINinjasFactSource)(nil)

func NewAPINinjasFactSource(apiKey string) *APINinjasFactSource {
	return &APINinjasFactSource{
		apiKey:  apiKey,
		baseURL: apiNinjasBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *APINinjasFactSource) Name() string { return "api_ninjas" }

func (s *APINinjasFactSource) FetchFact(ctx context.Context) (*models.Fact, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/v1/facts", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create facts request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facts request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facts API returned status %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var facts []struct {
		Fact string `json:"fact"`
	}
	if err := json.Unmarshal(body, &facts); err != nil {
		return nil, fmt.Errorf("failed to parse facts response: %w", err)
	}
	if len(facts) == 0 {
		return nil, ErrNoFact
	}

	log.Printf("[Facts] Fetched fact: %s", truncateString(facts[0].Fact, 50))
	return ParseFact(facts[0].Fact)
}

// ---------------------------------------------------------------------------
// Reddit "today I learned" facts
// Reads the day's top posts through the read-only client and uses the first
// title that survives ParseFact.
// ---------------------------------------------------------------------------

var tilPrefix = regexp.MustCompile(`(?i)^\s*TIL\b\s*(?:(?:that|about|of)\b)?\s*[:,-]?\s*`)

type redditPosts interface {
	TopPosts(ctx context.Context, subreddit string, opts *reddit.ListPostOptions) ([]*reddit.Post, *reddit.Response, error)
}

type RedditFactSource struct {
	subreddit string
	posts     redditPosts
}

var _ FactSource = (*RedditFactSource)(nil)

func NewRedditFactSource(subreddit string) (*RedditFactSource, error) {
	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create reddit client: %w", err)
	}
	if subreddit == "" {
		subreddit = "todayilearned"
	}
	return &RedditFactSource{subreddit: subreddit, posts: client.Subreddit}, nil
}

func (s *RedditFactSource) Name() string { return "reddit" }

func (s *RedditFactSource) FetchFact(ctx context.Context) (*models.Fact, error) {
	posts, _, err := s.posts.TopPosts(ctx, s.subreddit, &reddit.ListPostOptions{
		ListOptions: reddit.ListOptions{Limit: 25},
		Time:        "day",
	})
	if err != nil {
		return nil, fmt.Errorf("reddit top posts for r/%s failed: %w", s.subreddit, err)
	}

	for _, post := range posts {
		if post == nil || post.NSFW {
			continue
		}
		fact, err := ParseFact(CleanFactText(StripTILPrefix(post.Title)))
		if err != nil {
			continue
		}
		log.Printf("[Facts] Using r/%s post %s: %s", s.subreddit, post.ID, truncateString(fact.Text, 50))
		return fact, nil
	}
	return nil, fmt.Errorf("%w: none of %d posts in r/%s was usable", ErrNoFact, len(posts), s.subreddit)
}

// StripTILPrefix removes a leading "TIL" / "TIL that" from a post title.
func StripTILPrefix(title string) string {
	return tilPrefix.ReplaceAllString(title, "")
}
