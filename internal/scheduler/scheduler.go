package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/samber/lo"

	"github.com/bobarin/factshorts/internal/models"
)

// ---------------------------------------------------------------------------
// Upload scheduler
//
// The queue is one JSON document holding every entry. Each mutation loads the
// whole document, changes it and rewrites it through a temp file + rename.
// A mutex serialises callers in this process and an advisory lock file next
// to the queue serialises separate processes (API worker and CLI).
//
// Entry lifecycle: pending -> uploaded | failed. Both are terminal.
// ---------------------------------------------------------------------------

var (
	ErrEntryNotFound = errors.New("queue entry not found")
	ErrEntryFinal    = errors.New("queue entry already finalised")
)

// Item is a publish request to be queued.
type Item struct {
	VideoPath   string
	Title       string
	Description string
	Tags        []string
}

type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Uploaded int `json:"uploaded"`
	Failed   int `json:"failed"`
	Due      int `json:"due"`
}

type Scheduler struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

func New(path string) *Scheduler {
	return &Scheduler{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
}

func (s *Scheduler) Path() string { return s.path }

// Enqueue adds a pending entry. A zero scheduledTime means now.
func (s *Scheduler) Enqueue(item Item, scheduledTime time.Time) (int64, error) {
	ids, err := s.enqueue([]Item{item}, func(int) time.Time { return scheduledTime })
	if err != nil {
		return 0, err
	}
	log.Printf("[Scheduler] Queued %q as %d for %s", item.Title, ids[0], formatWhen(scheduledTime))
	return ids[0], nil
}

// ScheduleBatch queues items spaced interval apart starting at start.
func (s *Scheduler) ScheduleBatch(items []Item, start time.Time, interval time.Duration) ([]int64, error) {
	if start.IsZero() {
		start = s.now()
	}
	ids, err := s.enqueue(items, func(i int) time.Time {
		return start.Add(time.Duration(i) * interval)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Scheduler] Scheduled %d videos every %s from %s", len(items), interval, start.Format(time.RFC3339))
	return ids, nil
}

func (s *Scheduler) enqueue(items []Item, when func(i int) time.Time) ([]int64, error) {
	var ids []int64
	err := s.update(func(entries []models.QueueEntry) ([]models.QueueEntry, error) {
		now := s.now()
		last := lo.Reduce(entries, func(max int64, e models.QueueEntry, _ int) int64 {
			if e.ID > max {
				return e.ID
			}
			return max
		}, int64(0))

		for i, item := range items {
			id := now.UnixMilli()
			if id <= last {
				id = last + 1
			}
			last = id

			scheduled := when(i)
			if scheduled.IsZero() {
				scheduled = now
			}
			entries = append(entries, models.QueueEntry{
				ID:            id,
				VideoPath:     item.VideoPath,
				Title:         item.Title,
				Description:   item.Description,
				Tags:          lo.Uniq(item.Tags),
				ScheduledTime: scheduled.UTC(),
				Status:        models.QueueStatusPending,
				AddedAt:       now.UTC(),
			})
			ids = append(ids, id)
		}
		return entries, nil
	})
	return ids, err
}

// DueEntries returns pending entries scheduled at or before now, earliest first.
func (s *Scheduler) DueEntries(now time.Time) ([]models.QueueEntry, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	due := lo.Filter(entries, func(e models.QueueEntry, _ int) bool {
		return isDue(e, now)
	})
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].ScheduledTime.Equal(due[j].ScheduledTime) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	return due, nil
}

func isDue(e models.QueueEntry, now time.Time) bool {
	return e.Status == models.QueueStatusPending && !e.ScheduledTime.After(now)
}

// MarkUploaded moves a pending entry to uploaded.
func (s *Scheduler) MarkUploaded(id int64, externalID string) error {
	return s.transition(id, func(e *models.QueueEntry, now time.Time) {
		e.Status = models.QueueStatusUploaded
		e.ExternalID = externalID
		e.UploadedAt = &now
	})
}

// MarkFailed moves a pending entry to failed. Failed entries are not retried;
// re-enqueue the video to try again.
func (s *Scheduler) MarkFailed(id int64, reason string) error {
	return s.transition(id, func(e *models.QueueEntry, now time.Time) {
		e.Status = models.QueueStatusFailed
		e.Error = reason
		e.FailedAt = &now
	})
}

func (s *Scheduler) transition(id int64, apply func(e *models.QueueEntry, now time.Time)) error {
	return s.update(func(entries []models.QueueEntry) ([]models.QueueEntry, error) {
		_, idx, ok := lo.FindIndexOf(entries, func(e models.QueueEntry) bool { return e.ID == id })
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrEntryNotFound, id)
		}
		if entries[idx].Status.IsTerminal() {
			return nil, fmt.Errorf("%w: %d is %s", ErrEntryFinal, id, entries[idx].Status)
		}
		apply(&entries[idx], s.now().UTC())
		log.Printf("[Scheduler] Entry %d -> %s", id, entries[idx].Status)
		return entries, nil
	})
}

// Purge drops terminal entries that finished more than olderThan ago and
// returns how many were removed. Pending entries are never purged.
func (s *Scheduler) Purge(olderThan time.Duration) (int, error) {
	removed := 0
	err := s.update(func(entries []models.QueueEntry) ([]models.QueueEntry, error) {
		cutoff := s.now().Add(-olderThan)
		kept := lo.Reject(entries, func(e models.QueueEntry, _ int) bool {
			finished := finishedAt(e)
			return finished != nil && finished.Before(cutoff)
		})
		removed = len(entries) - len(kept)
		if removed == 0 {
			return nil, nil
		}
		if kept == nil {
			kept = []models.QueueEntry{}
		}
		return kept, nil
	})
	if err == nil && removed > 0 {
		log.Printf("[Scheduler] Purged %d entries older than %s", removed, olderThan)
	}
	return removed, err
}

func finishedAt(e models.QueueEntry) *time.Time {
	switch e.Status {
	case models.QueueStatusUploaded:
		return e.UploadedAt
	case models.QueueStatusFailed:
		return e.FailedAt
	}
	return nil
}

func (s *Scheduler) Stats() (Stats, error) {
	entries, err := s.List()
	if err != nil {
		return Stats{}, err
	}
	now := s.now()
	st := Stats{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case models.QueueStatusPending:
			st.Pending++
			if isDue(e, now) {
				st.Due++
			}
		case models.QueueStatusUploaded:
			st.Uploaded++
		case models.QueueStatusFailed:
			st.Failed++
		}
	}
	return st, nil
}

// List returns every entry in id order.
func (s *Scheduler) List() ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile(true); err != nil {
		return nil, err
	}
	defer s.lock.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Get returns a single entry by id.
func (s *Scheduler) Get(id int64) (*models.QueueEntry, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	e, ok := lo.Find(entries, func(e models.QueueEntry) bool { return e.ID == id })
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEntryNotFound, id)
	}
	return &e, nil
}

// update runs fn on the current entries under both locks and persists the
// returned slice. A nil slice with a nil error means nothing changed.
func (s *Scheduler) update(fn func([]models.QueueEntry) ([]models.QueueEntry, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile(false); err != nil {
		return err
	}
	defer s.lock.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	next, err := fn(entries)
	if err != nil || next == nil {
		return err
	}
	return s.store(next)
}

func (s *Scheduler) lockFile(shared bool) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	var err error
	if shared {
		err = s.lock.RLock()
	} else {
		err = s.lock.Lock()
	}
	if err != nil {
		return fmt.Errorf("failed to lock queue %s: %w", s.path, err)
	}
	return nil
}

func (s *Scheduler) load() ([]models.QueueEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.QueueEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if len(data) == 0 {
		return []models.QueueEntry{}, nil
	}

	var entries []models.QueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse queue %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Scheduler) store(entries []models.QueueEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".queue-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp queue file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write queue: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close queue: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace queue: %w", err)
	}
	return nil
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "now"
	}
	return t.Format(time.RFC3339)
}
