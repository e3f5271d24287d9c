package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobarin/factshorts/internal/models"
	"github.com/bobarin/factshorts/internal/scheduler"
)

// The queue routes only need the scheduler, so the database and Redis
// handles stay nil in these tests.
func newTestRouter(t *testing.T, apiKey string) (http.Handler, *scheduler.Scheduler) {
	t.Helper()
	sched := scheduler.New(filepath.Join(t.TempDir(), "upload_queue.json"))
	h := NewHandler(nil, nil, sched, 7*24*time.Hour)
	return NewRouter(h, RouterConfig{BackendAPIKey: apiKey}), sched
}

func do(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, "secret")
	rec := do(t, router, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	router, _ := newTestRouter(t, "secret")

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
		{"header", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, "GET", "/v1/queue/stats", "", tt.headers)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateVideoValidation(t *testing.T) {
	router, _ := newTestRouter(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"voice":`},
		{"unknown voice", `{"voice":"robot"}`},
		{"bad duration", `{"publish":true,"schedule_in":"soon"}`},
		{"schedule without publish", `{"schedule_in":"2h"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, "POST", "/v1/videos", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetJobRejectsBadID(t *testing.T) {
	router, _ := newTestRouter(t, "")
	rec := do(t, router, "GET", "/v1/jobs/not-a-uuid", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestQueueRoutes(t *testing.T) {
	router, sched := newTestRouter(t, "")

	done, _ := sched.Enqueue(scheduler.Item{VideoPath: "/v/a.mp4", Title: "a"}, time.Time{})
	sched.Enqueue(scheduler.Item{VideoPath: "/v/b.mp4", Title: "b"}, time.Now().Add(time.Hour))
	sched.MarkUploaded(done, "yt-a")

	rec := do(t, router, "GET", "/v1/queue?status=pending", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var entries []models.QueueEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Title != "b" {
		t.Errorf("expected only the pending entry, got %+v", entries)
	}

	if rec := do(t, router, "GET", "/v1/queue?status=bogus", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter: expected 400, got %d", rec.Code)
	}

	rec = do(t, router, "GET", "/v1/queue/stats", "", nil)
	var stats scheduler.Stats
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats != (scheduler.Stats{Total: 2, Pending: 1, Uploaded: 1}) {
		t.Errorf("unexpected stats %+v", stats)
	}

	if rec := do(t, router, "POST", "/v1/queue/purge", `{"older_than_days":-1}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("negative age: expected 400, got %d", rec.Code)
	}

	rec = do(t, router, "POST", "/v1/queue/purge", `{"older_than_days":0}`, nil)
	var purged map[string]int
	json.Unmarshal(rec.Body.Bytes(), &purged)
	if rec.Code != http.StatusOK || purged["removed"] != 1 {
		t.Errorf("purge: %d %v", rec.Code, purged)
	}
}

func TestListVoices(t *testing.T) {
	router, _ := newTestRouter(t, "")
	rec := do(t, router, "GET", "/v1/voices", "", nil)
	var voices []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &voices); err != nil {
		t.Fatal(err)
	}
	if len(voices) != 4 || voices[0]["id"] != "default" {
		t.Errorf("unexpected voices %v", voices)
	}
}
