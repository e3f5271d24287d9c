package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobarin/factshorts/internal/services"
	"github.com/bobarin/factshorts/internal/worker"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		fact       string
		voice      string
		publish    bool
		scheduleIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one video, optionally queueing it for upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if scheduleIn < 0 {
				return fmt.Errorf("--schedule-in must not be negative")
			}

			statuses := services.CheckBinaries(services.MediaRequirements(cfg.FFmpegPath, cfg.FFprobePath, cfg.EdgeTTSPath))
			if err := services.MissingRequired(statuses); err != nil {
				return err
			}

			// Immediate publishing needs credentials before any work starts
			var publisher *worker.Publisher
			sched, err := ctx.scheduler()
			if err != nil {
				return err
			}
			if publish && scheduleIn == 0 {
				yt, err := worker.BuildPublisher(cfg)
				if err != nil {
					return err
				}
				publisher = worker.NewPublisher(sched, yt)
			}

			pipeline, err := worker.BuildOrchestrator(cfg, sched)
			if err != nil {
				return err
			}

			result, err := pipeline.Run(cmd.Context(), worker.RunOptions{
				Fact:       fact,
				Voice:      voice,
				Publish:    publish,
				ScheduleIn: scheduleIn,
			})
			if err != nil {
				if stage := worker.FailureStage(err); stage != "" {
					return fmt.Errorf("generation failed at %s: %w", stage, err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			meta := result.Metadata
			fmt.Fprintf(out, "Video:    %s\n", meta.VideoPath)
			fmt.Fprintf(out, "Title:    %s\n", meta.Title)
			fmt.Fprintf(out, "Duration: %.2fs\n", meta.Duration)
			for _, se := range result.Degraded {
				fmt.Fprintf(out, "Warning:  %s skipped: %v\n", se.Stage, se.Err)
			}

			if result.QueueEntryID != 0 {
				fmt.Fprintf(out, "Queued:   entry %d\n", result.QueueEntryID)
			}
			if publisher != nil && result.QueueEntryID != 0 {
				report, err := publisher.PublishEntry(cmd.Context(), result.QueueEntryID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Published %d, failed %d\n", report.Uploaded, report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fact, "fact", "", "Use this fact instead of fetching one")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice profile (default, energetic, calm, authoritative)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Queue the video for upload")
	cmd.Flags().DurationVar(&scheduleIn, "schedule-in", 0, "Delay before the upload is due (0 uploads this video right away)")

	return cmd
}
