package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bobarin/factshorts/internal/models"
	"github.com/bobarin/factshorts/internal/scheduler"
	"github.com/bobarin/factshorts/internal/services"
)

// PublishReport summarises one drain of the upload queue.
type PublishReport struct {
	Uploaded int
	Failed   int
}

// Publisher drains due queue entries through a publish target.
type Publisher struct {
	sched     *scheduler.Scheduler
	target    services.VideoPublisher
	onPublish func(ctx context.Context, entry models.QueueEntry, externalID string)
	now       func() time.Time
}

func NewPublisher(sched *scheduler.Scheduler, target services.VideoPublisher) *Publisher {
	return &Publisher{sched: sched, target: target, now: time.Now}
}

// OnPublish registers a callback run after each successful upload.
func (p *Publisher) OnPublish(fn func(ctx context.Context, entry models.QueueEntry, externalID string)) {
	p.onPublish = fn
}

// PublishDue uploads every entry due now, oldest schedule first. Each entry
// ends up uploaded or failed; missing credentials stop the drain without
// touching the remaining entries.
func (p *Publisher) PublishDue(ctx context.Context) (PublishReport, error) {
	var report PublishReport

	due, err := p.sched.DueEntries(p.now())
	if err != nil {
		return report, err
	}
	if len(due) == 0 {
		return report, nil
	}
	log.Printf("[Publish] %d entries due", len(due))

	for _, entry := range due {
		if err := p.publish(ctx, entry, &report); err != nil {
			return report, err
		}
	}

	return report, nil
}

// PublishEntry uploads a single pending entry regardless of its schedule,
// leaving the rest of the queue alone.
func (p *Publisher) PublishEntry(ctx context.Context, id int64) (PublishReport, error) {
	var report PublishReport

	entry, err := p.sched.Get(id)
	if err != nil {
		return report, err
	}
	if entry.Status.IsTerminal() {
		return report, fmt.Errorf("%w: entry %d is %s", scheduler.ErrEntryFinal, id, entry.Status)
	}

	err = p.publish(ctx, *entry, &report)
	return report, err
}

// publish moves one entry to uploaded or failed. The returned error means the
// caller must stop: cancellation or missing credentials.
func (p *Publisher) publish(ctx context.Context, entry models.QueueEntry, report *PublishReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Stat(entry.VideoPath); err != nil {
		p.fail(entry, fmt.Sprintf("video file unavailable: %v", err), report)
		return nil
	}

	externalID, err := p.target.Upload(ctx, services.UploadRequest{
		VideoPath:   entry.VideoPath,
		Title:       entry.Title,
		Description: entry.Description,
		Tags:        entry.Tags,
	})
	if errors.Is(err, services.ErrCredentialsAbsent) {
		return err
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.fail(entry, err.Error(), report)
		return nil
	}

	if err := p.sched.MarkUploaded(entry.ID, externalID); err != nil {
		log.Printf("[Publish] Uploaded %d as %s but could not record it: %v", entry.ID, externalID, err)
		return nil
	}
	report.Uploaded++
	log.Printf("[Publish] Entry %d published as %s", entry.ID, externalID)
	if p.onPublish != nil {
		p.onPublish(ctx, entry, externalID)
	}
	return nil
}

func (p *Publisher) fail(entry models.QueueEntry, reason string, report *PublishReport) {
	log.Printf("[Publish] Entry %d failed: %s", entry.ID, reason)
	if err := p.sched.MarkFailed(entry.ID, reason); err != nil {
		log.Printf("[Publish] Could not mark entry %d failed: %v", entry.ID, err)
		return
	}
	report.Failed++
}

// Run drains the queue every interval until ctx is cancelled, purging
// finished entries older than purgeAfter on each tick.
func (p *Publisher) Run(ctx context.Context, interval, purgeAfter time.Duration) error {
	log.Printf("[Publish] Loop started (every %s)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.PublishDue(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, services.ErrCredentialsAbsent) {
				return err
			}
			log.Printf("[Publish] Drain failed: %v", err)
		}
		if purgeAfter > 0 {
			if _, err := p.sched.Purge(purgeAfter); err != nil {
				log.Printf("[Publish] Purge failed: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			log.Println("[Publish] Loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}
