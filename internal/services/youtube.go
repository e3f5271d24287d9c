package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// ---------------------------------------------------------------------------
// YouTube Data API v3 publisher
// Uploads with snippet + status parts using the stored OAuth token. A token
// refreshed during the call is written back to the token file.
// ---------------------------------------------------------------------------

const (
	youtubeMaxTitle       = 100
	youtubeMaxDescription = 5000
	youtubeMaxTagChars    = 500
)

type UploadRequest struct {
	VideoPath   string
	Title       string
	Description string
	Tags        []string
}

// VideoPublisher uploads a finished video and returns the platform's id for it.
type VideoPublisher interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

type YouTubePublisher struct {
	oauth      *oauth2.Config
	tokenFile  string
	privacy    string
	categoryID string

	// extra client options; tests point the service at a local server
	options []option.ClientOption
	now     func() time.Time
}

var _ VideoPublisher = (*YouTubePublisher)(nil)

func NewYouTubePublisher(clientID, clientSecret, tokenFile, privacy, categoryID string) *YouTubePublisher {
	if privacy == "" {
		privacy = "public"
	}
	if categoryID == "" {
		categoryID = "28"
	}
	return &YouTubePublisher{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{youtube.YoutubeUploadScope},
		},
		tokenFile:  tokenFile,
		privacy:    privacy,
		categoryID: categoryID,
		now:        time.Now,
	}
}

// CredentialState reports whether the stored token can be used to publish.
func (p *YouTubePublisher) CredentialState() (CredentialState, error) {
	rec, err := LoadCredentials(p.tokenFile)
	if err != nil {
		return CredentialsAbsent, err
	}
	return rec.State(p.now()), nil
}

func (p *YouTubePublisher) Upload(ctx context.Context, req UploadRequest) (string, error) {
	rec, err := LoadCredentials(p.tokenFile)
	if err != nil {
		return "", err
	}
	if rec.State(p.now()) == CredentialsAbsent {
		return "", fmt.Errorf("%w: token expired and no refresh token stored", ErrCredentialsAbsent)
	}

	f, err := os.Open(req.VideoPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	ts := p.oauth.TokenSource(ctx, rec.Token())
	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, p.options...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       truncateRunes(req.Title, youtubeMaxTitle),
			Description: truncateRunes(req.Description, youtubeMaxDescription),
			Tags:        LimitTags(req.Tags, youtubeMaxTagChars),
			CategoryId:  p.categoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           p.privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	if fi, err := f.Stat(); err == nil {
		log.Printf("[YouTube] Uploading %q (%.1f MB, privacy=%s)", video.Snippet.Title, float64(fi.Size())/1024/1024, p.privacy)
	}

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(f).Context(ctx).Do()

	// persist whatever token the transport ended up with, even on failure
	if tok, tokErr := ts.Token(); tokErr == nil && tok.AccessToken != rec.AccessToken {
		if saveErr := SaveCredentials(p.tokenFile, CredentialFromToken(tok, rec)); saveErr != nil {
			log.Printf("[YouTube] WARNING: failed to persist refreshed token: %v", saveErr)
		} else {
			log.Printf("[YouTube] Refreshed token saved to %s", p.tokenFile)
		}
	}

	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	if uploaded.Id == "" {
		return "", fmt.Errorf("youtube upload returned no video id")
	}

	log.Printf("[YouTube] Uploaded https://www.youtube.com/watch?v=%s", uploaded.Id)
	return uploaded.Id, nil
}

// LimitTags strips leading '#' and keeps tags in order while their combined
// length stays within maxChars.
func LimitTags(tags []string, maxChars int) []string {
	var out []string
	total := 0
	for _, tag := range tags {
		tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		n := utf8.RuneCountInString(tag)
		if total+n > maxChars {
			break
		}
		total += n
		out = append(out, tag)
	}
	return out
}
