package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobarin/factshorts/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tools, configuration and publishing credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := services.CheckBinaries(services.MediaRequirements(cfg.FFmpegPath, cfg.FFprobePath, cfg.EdgeTTSPath))
			rows := make([][]string, 0, len(statuses)+2)
			for _, st := range statuses {
				state := "ok"
				if !st.Available {
					state = "missing"
					if st.Optional {
						state = "missing (optional)"
					}
				}
				rows = append(rows, []string{st.Name, st.Command, state, st.Description})
			}

			pipeline := "ok"
			if err := cfg.ValidatePipeline(); err != nil {
				pipeline = err.Error()
			}
			rows = append(rows, []string{"Pipeline config", cfg.FactSource + "/" + cfg.ScriptProvider, pipeline, "fact, script and footage keys"})

			creds := "not configured"
			if cfg.YouTubeClientID != "" {
				yt := services.NewYouTubePublisher(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenFile, cfg.YouTubePrivacy, cfg.YouTubeCategoryID)
				state, _ := yt.CredentialState()
				creds = string(state)
			}
			rows = append(rows, []string{"YouTube", cfg.YouTubeTokenFile, creds, "publishing credentials"})

			fmt.Fprintln(out, renderTable([]string{"Check", "Target", "Status", "Purpose"}, rows, nil))

			if err := services.MissingRequired(statuses); err != nil {
				return err
			}
			return cfg.ValidatePipeline()
		},
	}
}
