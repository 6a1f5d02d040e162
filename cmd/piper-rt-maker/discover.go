package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mush42/piper-rt-maker/internal/hub"
	"github.com/mush42/piper-rt-maker/internal/voice"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List all voices discovered in the upstream repo as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			client := hub.New(hub.Options{
				BaseURL: cfg.Hub.BaseURL,
				Token:   cfg.Hub.Token,
			})

			files, err := client.ListRepoFiles(ctx, cfg.Source.Repo)
			if err != nil {
				return fmt.Errorf("list source repo: %w", err)
			}
			voices, err := voice.Discover(ctx, cfg.Source.Repo, files, client, slog.Default())
			if err != nil {
				return fmt.Errorf("discover voices: %w", err)
			}
			if voices == nil {
				voices = []voice.Voice{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(voices)
		},
	}
}
