package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mush42/piper-rt-maker/internal/hub"
	"github.com/mush42/piper-rt-maker/internal/pipeline"
	"github.com/mush42/piper-rt-maker/internal/voice"
)

func newDeltaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delta",
		Short: "List voices that are new relative to the published index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := slog.Default()

			client := hub.New(hub.Options{
				BaseURL: cfg.Hub.BaseURL,
				Token:   cfg.Hub.Token,
			})

			files, err := client.ListRepoFiles(ctx, cfg.Source.Repo)
			if err != nil {
				return fmt.Errorf("list source repo: %w", err)
			}
			discovered, err := voice.Discover(ctx, cfg.Source.Repo, files, client, logger)
			if err != nil {
				return fmt.Errorf("discover voices: %w", err)
			}

			var published []voice.Voice
			metadataURL := client.ResolveURL(cfg.Dest.Repo, "dataset", pipeline.MetadataFile)
			err = client.GetJSON(ctx, metadataURL, &published)
			if err != nil && !errors.Is(err, hub.ErrNotFound) {
				return fmt.Errorf("fetch published index: %w", err)
			}

			delta := voice.Delta(discovered, published)
			if delta == nil {
				delta = []voice.Voice{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(delta)
		},
	}
}
