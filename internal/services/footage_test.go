package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobarin/factshorts/internal/models"
)

type fakeProvider struct {
	source  models.FootageSource
	results map[string][]float64
	err     error
	queried []string
}

func (f *fakeProvider) Source() models.FootageSource { return f.source }

func (f *fakeProvider) Search(ctx context.Context, keyword string) ([]models.AssetCandidate, error) {
	f.queried = append(f.queried, keyword)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.AssetCandidate
	for i, d := range f.results[keyword] {
		out = append(out, models.AssetCandidate{ID: fmt.Sprintf("%s-%d", keyword, i), Duration: d})
	}
	return out, nil
}

func (f *fakeProvider) ExtractURL(c models.AssetCandidate) (string, error) {
	return "https://cdn.example/" + c.ID + ".mp4", nil
}

func candidatesWithDurations(durations ...float64) []models.AssetCandidate {
	out := make([]models.AssetCandidate, len(durations))
	for i, d := range durations {
		out[i] = models.AssetCandidate{Source: models.SourcePexels, ID: fmt.Sprint(i), Duration: d}
	}
	return out
}

func TestRankCandidates(t *testing.T) {
	top := RankCandidates(candidatesWithDurations(5, 20, 15, 30, 25, 10), 10, 5)

	want := []float64{30, 25, 20, 15, 10}
	if len(top) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(top))
	}
	for i, c := range top {
		if c.Duration != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], c.Duration)
		}
	}
}

func TestFindBestClipPicksFromTopCandidates(t *testing.T) {
	p := &fakeProvider{
		source:  models.SourcePexels,
		results: map[string][]float64{"ocean": {5, 20, 15, 30, 25, 10}},
	}
	a := NewAssetAcquirer(AcquirerOptions{}, p)

	for i := 0; i < 200; i++ {
		c, err := a.FindBestClip(context.Background(), []string{"ocean"}, 10)
		if err != nil {
			t.Fatalf("FindBestClip: %v", err)
		}
		if c.Duration < 10 {
			t.Fatalf("picked a clip below the minimum: %v", c.Duration)
		}
		if c.Source != models.SourcePexels || c.Keyword != "ocean" {
			t.Fatalf("candidate not tagged with source and keyword: %+v", c)
		}
	}
}

func TestFindBestClipSearchesLimitedKeywordsAcrossProviders(t *testing.T) {
	pexels := &fakeProvider{source: models.SourcePexels, results: map[string][]float64{"space": {12}}}
	pixabay := &fakeProvider{source: models.SourcePixabay, err: errors.New("rate limited")}
	a := NewAssetAcquirer(AcquirerOptions{KeywordLimit: 3}, pexels, pixabay)
	a.intn = func(int) int { return 0 }

	c, err := a.FindBestClip(context.Background(), []string{"planet", "space", "star", "galaxy"}, 10)
	if err != nil {
		t.Fatalf("FindBestClip: %v", err)
	}
	if c.ID != "space-0" {
		t.Errorf("unexpected candidate %+v", c)
	}
	if strings.Join(pexels.queried, ",") != "planet,space,star" {
		t.Errorf("expected first three keywords, got %v", pexels.queried)
	}
	if len(pixabay.queried) != 3 {
		t.Errorf("failing provider should still be asked for each keyword")
	}
}

func TestFindBestClipExcludesTriedCandidates(t *testing.T) {
	p := &fakeProvider{source: models.SourcePixabay, results: map[string][]float64{"moon": {40, 30}}}
	a := NewAssetAcquirer(AcquirerOptions{TopCandidates: 1}, p)

	first, err := a.FindBestClip(context.Background(), []string{"moon"}, 10)
	if err != nil || first.Duration != 40 {
		t.Fatalf("expected the 40s clip first, got %+v, %v", first, err)
	}
	second, err := a.FindBestClip(context.Background(), []string{"moon"}, 10, CandidateKey(*first))
	if err != nil || second.Duration != 30 {
		t.Fatalf("expected the 30s clip after excluding the first, got %+v, %v", second, err)
	}
}

func TestFindBestClipNoCandidate(t *testing.T) {
	p := &fakeProvider{source: models.SourcePexels, results: map[string][]float64{"ant": {3, 4}}}
	a := NewAssetAcquirer(AcquirerOptions{}, p)

	if _, err := a.FindBestClip(context.Background(), []string{"ant"}, 10); !errors.Is(err, ErrNoCandidateFound) {
		t.Fatalf("expected ErrNoCandidateFound, got %v", err)
	}
}

func testDownloader() (*AssetAcquirer, *[]time.Duration) {
	a := NewAssetAcquirer(AcquirerOptions{DownloadAttempts: 3, DownloadBackoff: time.Second})
	var delays []time.Duration
	a.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return a, &delays
}

func TestDownloadRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("download should send a User-Agent")
		}
		w.Write([]byte("mp4-bytes"))
	}))
	defer srv.Close()

	a, delays := testDownloader()
	dest := filepath.Join(t.TempDir(), "background.mp4")
	if err := a.Download(context.Background(), srv.URL+"/clip.mp4", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(*delays) != 2 || (*delays)[0] != time.Second || (*delays)[1] != 2*time.Second {
		t.Errorf("expected 1s then 2s backoff, got %v", *delays)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "mp4-bytes" {
		t.Errorf("unexpected file contents %q", data)
	}
}

func TestDownloadExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a, _ := testDownloader()
	dest := filepath.Join(t.TempDir(), "background.mp4")
	err := a.Download(context.Background(), srv.URL, dest)
	if !errors.Is(err, ErrDownloadExhausted) {
		t.Fatalf("expected ErrDownloadExhausted, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 calls, got %d", calls)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("no file should be left behind")
	}
}

func TestDownloadRetriesClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusGone} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			a, delays := testDownloader()
			err := a.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x.mp4"))
			if !errors.Is(err, ErrDownloadExhausted) {
				t.Fatalf("expected ErrDownloadExhausted, got %v", err)
			}
			if calls != 3 {
				t.Errorf("expected 3 calls, got %d", calls)
			}
			if len(*delays) != 2 || (*delays)[0] != time.Second || (*delays)[1] != 2*time.Second {
				t.Errorf("unexpected backoff %v", *delays)
			}
		})
	}
}

func TestPexelsSearchAndExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "pexels-key" {
			t.Errorf("missing API key header")
		}
		if r.URL.Path != "/videos/search" || r.URL.Query().Get("orientation") != "portrait" || r.URL.Query().Get("query") != "ocean" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, `{"videos":[{"id":42,"duration":18,"video_files":[
			{"quality":"hd","width":1920,"height":1080,"link":"https://v/landscape.mp4"},
			{"quality":"sd","width":360,"height":640,"link":"https://v/small.mp4"},
			{"quality":"hd","width":1080,"height":1920,"link":"https://v/portrait-hd.mp4"},
			{"quality":"sd","width":720,"height":1280,"link":"https://v/portrait-sd.mp4"}]}]}`)
	}))
	defer srv.Close()

	p := NewPexelsProvider("pexels-key", 540)
	p.baseURL = srv.URL

	got, err := p.Search(context.Background(), "ocean")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "42" || got[0].Duration != 18 || got[0].Source != models.SourcePexels {
		t.Fatalf("unexpected candidates %+v", got)
	}

	link, err := p.ExtractURL(got[0])
	if err != nil {
		t.Fatalf("ExtractURL: %v", err)
	}
	if link != "https://v/portrait-hd.mp4" {
		t.Errorf("expected widest portrait file, got %q", link)
	}
}

func TestPexelsExtractURLNoUsableVariant(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"id": 1, "duration": 12,
		"video_files": []map[string]any{
			{"width": 1920, "height": 1080, "link": "https://v/landscape.mp4"},
			{"width": 360, "height": 640, "link": "https://v/tiny.mp4"},
		},
	})
	p := NewPexelsProvider("k", 540)
	_, err := p.ExtractURL(models.AssetCandidate{Source: models.SourcePexels, ID: "1", RawPayload: raw})
	if !errors.Is(err, ErrNoUsableVariant) {
		t.Fatalf("expected ErrNoUsableVariant, got %v", err)
	}
}

func TestPixabayExtractURLPreference(t *testing.T) {
	p := NewPixabayProvider("k", 540)

	cases := []struct {
		name   string
		videos map[string]any
		want   string
	}{
		{
			name: "medium first",
			videos: map[string]any{
				"large":  map[string]any{"url": "https://p/large.mp4", "width": 1920, "height": 1080},
				"medium": map[string]any{"url": "https://p/medium.mp4", "width": 1280, "height": 720},
			},
			want: "https://p/medium.mp4",
		},
		{
			name: "narrow medium skipped",
			videos: map[string]any{
				"large":  map[string]any{"url": "https://p/large.mp4", "width": 1920, "height": 1080},
				"medium": map[string]any{"url": "https://p/medium.mp4", "width": 480, "height": 270},
			},
			want: "https://p/large.mp4",
		},
		{
			name: "small last",
			videos: map[string]any{
				"small": map[string]any{"url": "https://p/small.mp4", "width": 960, "height": 540},
				"tiny":  map[string]any{"url": "https://p/tiny.mp4", "width": 640, "height": 360},
			},
			want: "https://p/small.mp4",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, _ := json.Marshal(map[string]any{"id": 7, "duration": 20, "videos": tc.videos})
			got, err := p.ExtractURL(models.AssetCandidate{Source: models.SourcePixabay, ID: "7", RawPayload: raw})
			if err != nil {
				t.Fatalf("ExtractURL: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}

	raw, _ := json.Marshal(map[string]any{"id": 8, "videos": map[string]any{
		"tiny": map[string]any{"url": "https://p/tiny.mp4", "width": 640, "height": 360},
	}})
	if _, err := p.ExtractURL(models.AssetCandidate{ID: "8", RawPayload: raw}); !errors.Is(err, ErrNoUsableVariant) {
		t.Errorf("expected ErrNoUsableVariant for tiny-only hit, got %v", err)
	}
}

func TestPixabaySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "pix-key" || r.URL.Query().Get("q") != "galaxy" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, `{"total":2,"hits":[{"id":1,"duration":9,"videos":{}},{"id":2,"duration":31,"videos":{}}]}`)
	}))
	defer srv.Close()

	p := NewPixabayProvider("pix-key", 540)
	p.baseURL = srv.URL
	got, err := p.Search(context.Background(), "galaxy")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[1].ID != "2" || got[1].Duration != 31 {
		t.Fatalf("unexpected candidates %+v", got)
	}
}

func TestResolveURLDispatchesBySource(t *testing.T) {
	a := NewAssetAcquirer(AcquirerOptions{}, &fakeProvider{source: models.SourcePixabay})
	got, err := a.ResolveURL(models.AssetCandidate{Source: models.SourcePixabay, ID: "abc"})
	if err != nil || got != "https://cdn.example/abc.mp4" {
		t.Fatalf("unexpected %q, %v", got, err)
	}
	if _, err := a.ResolveURL(models.AssetCandidate{Source: models.SourcePexels}); !errors.Is(err, ErrNoUsableVariant) {
		t.Errorf("unknown source should be ErrNoUsableVariant, got %v", err)
	}
}

func TestPickMusic(t *testing.T) {
	dir := t.TempDir()
	if got := PickMusic(dir); got != "" {
		t.Errorf("empty dir should yield no music, got %q", got)
	}
	if got := PickMusic(filepath.Join(dir, "missing")); got != "" {
		t.Errorf("missing dir should yield no music, got %q", got)
	}

	for _, name := range []string{"notes.txt", "b.MP3", "a.ogg"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644)
	}
	if got := pickMusic(dir, func(int) int { return 0 }); got != filepath.Join(dir, "a.ogg") {
		t.Errorf("expected a.ogg, got %q", got)
	}
	if got := pickMusic(dir, func(n int) int { return n - 1 }); got != filepath.Join(dir, "b.MP3") {
		t.Errorf("expected b.MP3, got %q", got)
	}
}
