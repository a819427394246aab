package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"snapback/internal/catalog"
	"snapback/internal/config"
	"snapback/internal/ingest"
	"snapback/internal/preflight"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var workersFlag int
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "ingest <manifest.json>",
		Short: "Ingest a memories manifest into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				if workersFlag > 0 {
					cfg.Ingest.Workers = workersFlag
				}
				if !skipPreflight {
					results := preflight.RunAll(cfg)
					if preflight.Failed(results) {
						printPreflight(cmd, results)
						return fmt.Errorf("preflight checks failed")
					}
				}

				logger, err := ctx.newLogger()
				if err != nil {
					return err
				}
				pipeline, err := ingest.New(cfg, store, logger)
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				summary, err := pipeline.Run(runCtx, args[0])
				if err != nil {
					return err
				}

				cmd.Printf("Run %s %s: %d attempted, %d succeeded, %d failed\n",
					summary.RunID,
					summary.Status,
					summary.Counts.Attempted,
					summary.Counts.Succeeded,
					summary.Counts.Failed)
				if summary.Counts.Failed > 0 {
					cmd.Printf("Inspect failures with: snapback runs errors %s\n", summary.RunID)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&workersFlag, "workers", 0, "Override the configured worker count")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks before ingesting")
	return cmd
}
