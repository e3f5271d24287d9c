package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/bobarin/factshorts/internal/models"
	"github.com/bobarin/factshorts/internal/scheduler"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueuePurgeCommand(ctx))
	queueCmd.AddCommand(newQueueScheduleCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show queued uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := ctx.scheduler()
			if err != nil {
				return err
			}
			entries, err := sched.List()
			if err != nil {
				return err
			}
			if status != "" {
				entries = lo.Filter(entries, func(e models.QueueEntry, _ int) bool {
					return string(e.Status) == status
				})
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Upload queue is empty")
				return nil
			}

			const stampLayout = "2006-01-02 15:04"
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				detail := e.ExternalID
				if e.Status == models.QueueStatusFailed {
					detail = e.Error
				}
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					string(e.Status),
					e.ScheduledTime.Local().Format(stampLayout),
					e.Title,
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Scheduled", "Title", "Result"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show entries with this status (pending, uploaded, failed)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the upload queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := ctx.scheduler()
			if err != nil {
				return err
			}
			st, err := sched.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:    %d\n", st.Total)
			fmt.Fprintf(out, "Pending:  %d (%d due)\n", st.Pending, st.Due)
			fmt.Fprintf(out, "Uploaded: %d\n", st.Uploaded)
			fmt.Fprintf(out, "Failed:   %d\n", st.Failed)
			return nil
		},
	}
}

func newQueuePurgeCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove finished entries older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.PurgeAfter
			}
			sched, err := ctx.scheduler()
			if err != nil {
				return err
			}
			removed, err := sched.Purge(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff (defaults to QUEUE_PURGE_DAYS)")
	return cmd
}

// newQueueScheduleCommand queues already generated videos, spaced apart,
// using the metadata.json written next to each one.
func newQueueScheduleCommand(ctx *commandContext) *cobra.Command {
	var (
		startIn  time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "schedule VIDEO_DIR...",
		Short: "Queue generated videos for upload at a fixed interval",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			items := make([]scheduler.Item, 0, len(args))
			for _, dir := range args {
				item, err := itemFromVideoDir(dir)
				if err != nil {
					return err
				}
				items = append(items, item)
			}

			sched, err := ctx.scheduler()
			if err != nil {
				return err
			}
			ids, err := sched.ScheduleBatch(items, time.Now().Add(startIn), interval)
			if err != nil {
				return err
			}
			for i, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as %d\n", items[i].Title, id)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&startIn, "start-in", 0, "Delay before the first upload")
	cmd.Flags().DurationVar(&interval, "interval", 4*time.Hour, "Spacing between uploads")
	return cmd
}

func itemFromVideoDir(dir string) (scheduler.Item, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return scheduler.Item{}, fmt.Errorf("read metadata for %s: %w", dir, err)
	}
	var meta models.VideoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return scheduler.Item{}, fmt.Errorf("parse metadata for %s: %w", dir, err)
	}
	if meta.VideoPath == "" {
		meta.VideoPath = filepath.Join(dir, "final.mp4")
	}
	return scheduler.Item{
		VideoPath:   meta.VideoPath,
		Title:       meta.Title,
		Description: meta.Description,
		Tags:        meta.Hashtags,
	}, nil
}
