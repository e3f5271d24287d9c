package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobarin/factshorts/internal/worker"
)

func newPublishDueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish-due",
		Short: "Upload every queued video whose scheduled time has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sched, err := ctx.scheduler()
			if err != nil {
				return err
			}
			yt, err := worker.BuildPublisher(cfg)
			if err != nil {
				return err
			}

			report, err := worker.NewPublisher(sched, yt).PublishDue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d, failed %d\n", report.Uploaded, report.Failed)
			return nil
		},
	}
}
