package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobarin/factshorts/internal/models"
	"github.com/bobarin/factshorts/internal/scheduler"
	"github.com/bobarin/factshorts/internal/services"
)

type fakeTarget struct {
	fail  map[string]error
	calls []services.UploadRequest
}

func (f *fakeTarget) Upload(ctx context.Context, req services.UploadRequest) (string, error) {
	f.calls = append(f.calls, req)
	if err := f.fail[req.Title]; err != nil {
		return "", err
	}
	return "yt-" + req.Title, nil
}

func newTestPublisher(t *testing.T, target services.VideoPublisher) (*Publisher, *scheduler.Scheduler, string) {
	t.Helper()
	dir := t.TempDir()
	sched := scheduler.New(filepath.Join(dir, "upload_queue.json"))
	return NewPublisher(sched, target), sched, dir
}

func writeVideo(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".mp4")
	if err := os.WriteFile(path, []byte("mp4"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPublishDueMarksOutcomes(t *testing.T) {
	target := &fakeTarget{fail: map[string]error{"bad": errors.New("quota exceeded")}}
	pub, sched, dir := newTestPublisher(t, target)

	good, _ := sched.Enqueue(scheduler.Item{VideoPath: writeVideo(t, dir, "good"), Title: "good"}, time.Time{})
	bad, _ := sched.Enqueue(scheduler.Item{VideoPath: writeVideo(t, dir, "bad"), Title: "bad"}, time.Time{})
	missing, _ := sched.Enqueue(scheduler.Item{VideoPath: filepath.Join(dir, "gone.mp4"), Title: "gone"}, time.Time{})
	later, _ := sched.Enqueue(scheduler.Item{VideoPath: writeVideo(t, dir, "later"), Title: "later"}, time.Now().Add(time.Hour))

	var published []string
	pub.OnPublish(func(ctx context.Context, e models.QueueEntry, externalID string) {
		published = append(published, externalID)
	})

	report, err := pub.PublishDue(context.Background())
	if err != nil {
		t.Fatalf("PublishDue: %v", err)
	}
	if report != (PublishReport{Uploaded: 1, Failed: 2}) {
		t.Errorf("unexpected report %+v", report)
	}
	if len(target.calls) != 2 {
		t.Errorf("missing file must not reach the target, got %d uploads", len(target.calls))
	}
	if len(published) != 1 || published[0] != "yt-good" {
		t.Errorf("callback got %v", published)
	}

	checks := map[int64]models.QueueStatus{
		good:    models.QueueStatusUploaded,
		bad:     models.QueueStatusFailed,
		missing: models.QueueStatusFailed,
		later:   models.QueueStatusPending,
	}
	for id, want := range checks {
		e, err := sched.Get(id)
		if err != nil {
			t.Fatalf("Get %d: %v", id, err)
		}
		if e.Status != want {
			t.Errorf("entry %d (%s) is %s, want %s", id, e.Title, e.Status, want)
		}
	}

	// a second drain has nothing left to do
	report, err = pub.PublishDue(context.Background())
	if err != nil || report != (PublishReport{}) {
		t.Errorf("second drain: %+v %v", report, err)
	}
}

func TestPublishDueStopsWithoutCredentials(t *testing.T) {
	target := &fakeTarget{fail: map[string]error{"a": services.ErrCredentialsAbsent}}
	pub, sched, dir := newTestPublisher(t, target)

	a, _ := sched.Enqueue(scheduler.Item{VideoPath: writeVideo(t, dir, "a"), Title: "a"}, time.Time{})
	sched.Enqueue(scheduler.Item{VideoPath: writeVideo(t, dir, "b"), Title: "b"}, time.Time{})

	_, err := pub.PublishDue(context.Background())
	if !errors.Is(err, services.ErrCredentialsAbsent) {
		t.Fatalf("expected ErrCredentialsAbsent, got %v", err)
	}
	if len(target.calls) != 1 {
		t.Errorf("drain should stop at the first credential failure, got %d calls", len(target.calls))
	}
	if e, _ := sched.Get(a); e.Status != models.QueueStatusPending {
		t.Errorf("entry should stay pending for a later run, got %s", e.Status)
	}
}

func TestPublishEntryUploadsOnlyThatEntry(t *testing.T) {
	target := &fakeTarget{}
	pub, sched, dir := newTestPublisher(t, target)

	older, _ := sched.Enqueue(scheduler.Item{VideoPath: writeVideo(t, dir, "older"), Title: "older"}, time.Time{})
	fresh, _ := sched.Enqueue(scheduler.Item{VideoPath: writeVideo(t, dir, "fresh"), Title: "fresh"}, time.Time{})

	report, err := pub.PublishEntry(context.Background(), fresh)
	if err != nil {
		t.Fatalf("PublishEntry: %v", err)
	}
	if report != (PublishReport{Uploaded: 1}) {
		t.Errorf("unexpected report %+v", report)
	}
	if len(target.calls) != 1 || target.calls[0].Title != "fresh" {
		t.Fatalf("expected only the requested entry to upload, got %+v", target.calls)
	}
	if e, _ := sched.Get(older); e.Status != models.QueueStatusPending {
		t.Errorf("other due entry should stay pending, got %s", e.Status)
	}

	if _, err := pub.PublishEntry(context.Background(), fresh); !errors.Is(err, scheduler.ErrEntryFinal) {
		t.Errorf("republishing an uploaded entry: expected ErrEntryFinal, got %v", err)
	}
	if len(target.calls) != 1 {
		t.Errorf("finished entry must not upload again")
	}
}
