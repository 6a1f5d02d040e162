package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mush42/piper-rt-maker/internal/bootstrap"
	"github.com/mush42/piper-rt-maker/internal/export"
	"github.com/mush42/piper-rt-maker/internal/hub"
	"github.com/mush42/piper-rt-maker/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full release pipeline",
		Long: "Run the full release pipeline: bootstrap the export toolchain, discover\n" +
			"upstream voices, resolve the delta against the published index, export and\n" +
			"package each new voice, and republish the metadata index and catalog.",
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

			opts := pipeline.Options{
				Hub:        client,
				SourceRepo: cfg.Source.Repo,
				DestRepo:   cfg.Dest.Repo,
				CatalogURL: cfg.Source.CatalogURL,
				DryRun:     dryRun,
				Logger:     logger,
			}

			if !dryRun {
				if !cfg.Export.SkipBootstrap {
					err := bootstrap.Ensure(ctx, bootstrap.Options{
						PiperDir: cfg.Paths.PiperDir,
						RepoURL:  cfg.Export.PiperRepoURL,
						Branch:   cfg.Export.PiperBranch,
						Stdout:   os.Stdout,
						Stderr:   os.Stderr,
						Logger:   logger,
					})
					if err != nil {
						return fmt.Errorf("bootstrap export toolchain: %w", err)
					}
				}

				ws, err := export.OpenWorkspace(cfg.Paths.WorkingDir)
				if err != nil {
					return fmt.Errorf("open workspace: %w", err)
				}

				exporter, err := export.New(export.Options{
					Hub:        client,
					SourceRepo: cfg.Source.Repo,
					DestRepo:   cfg.Dest.Repo,
					ScriptDir:  bootstrap.ScriptDir(cfg.Paths.PiperDir),
					PythonBin:  cfg.Export.PythonBin,
					Workspace:  ws,
					Logger:     logger,
					Stdout:     os.Stdout,
					Stderr:     os.Stderr,
				})
				if err != nil {
					return fmt.Errorf("configure exporter: %w", err)
				}

				opts.Transformer = exporter
				opts.Workspace = ws
			}

			p, err := pipeline.New(opts)
			if err != nil {
				return err
			}

			report, err := p.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "discovered=%d new=%d published=%d failed=%d\n",
				report.Discovered, report.New, report.Published, report.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve the delta and report what would be processed without exporting or publishing")

	return cmd
}
