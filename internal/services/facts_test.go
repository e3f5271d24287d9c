package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vartanbeno/go-reddit/v2/reddit"
)

func TestAPINinjasFetchFact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "ninja" || r.URL.Path != "/v1/facts" {
			t.Errorf("unexpected request %s %v", r.URL.Path, r.Header)
		}
		fmt.Fprint(w, `[{"fact":"A group of flamingos is called a flamboyance"}]`)
	}))
	defer srv.Close()

	src := NewAPINinjasFactSource("ninja")
	src.baseURL = srv.URL

	fact, err := src.FetchFact(context.Background())
	if err != nil {
		t.Fatalf("FetchFact: %v", err)
	}
	if fact.Text != "A group of flamingos is called a flamboyance" || fact.WordCount != 8 {
		t.Errorf("unexpected fact %+v", fact)
	}
}

func TestAPINinjasErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "empty list", status: 200, body: `[]`, want: ErrNoFact},
		{name: "too short", status: 200, body: `[{"fact":"tiny"}]`, want: ErrFactRejected},
		{name: "server error", status: 502, body: `bad gateway`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			src := NewAPINinjasFactSource("k")
			src.baseURL = srv.URL
			_, err := src.FetchFact(context.Background())
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

type fakeRedditPosts struct {
	posts []*reddit.Post
	opts  *reddit.ListPostOptions
	sub   string
}

func (f *fakeRedditPosts) TopPosts(ctx context.Context, subreddit string, opts *reddit.ListPostOptions) ([]*reddit.Post, *reddit.Response, error) {
	f.sub = subreddit
	f.opts = opts
	return f.posts, nil, nil
}

func TestRedditFetchFact(t *testing.T) {
	posts := &fakeRedditPosts{posts: []*reddit.Post{
		{ID: "a", Title: "TIL", NSFW: false},
		{ID: "b", Title: "TIL something spicy happened", NSFW: true},
		{ID: "c", Title: "TIL that sea otters hold hands while they sleep"},
	}}
	src := &RedditFactSource{subreddit: "todayilearned", posts: posts}

	fact, err := src.FetchFact(context.Background())
	if err != nil {
		t.Fatalf("FetchFact: %v", err)
	}
	if fact.Text != "sea otters hold hands while they sleep." {
		t.Errorf("unexpected fact %q", fact.Text)
	}
	if posts.sub != "todayilearned" || posts.opts.Time != "day" || posts.opts.Limit != 25 {
		t.Errorf("unexpected listing request r/%s %+v", posts.sub, posts.opts)
	}
}

func TestRedditNoUsablePost(t *testing.T) {
	src := &RedditFactSource{subreddit: "todayilearned", posts: &fakeRedditPosts{posts: []*reddit.Post{{Title: "TIL hi"}}}}
	if _, err := src.FetchFact(context.Background()); !errors.Is(err, ErrNoFact) {
		t.Fatalf("expected ErrNoFact, got %v", err)
	}
}

func TestStripTILPrefix(t *testing.T) {
	cases := map[string]string{
		"TIL that cows have best friends": "cows have best friends",
		"TIL: honey never spoils":         "honey never spoils",
		"til about the moon":              "the moon",
		"Tilapia are fish":                "Tilapia are fish",
	}
	for in, want := range cases {
		if got := StripTILPrefix(in); got != want {
			t.Errorf("StripTILPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
