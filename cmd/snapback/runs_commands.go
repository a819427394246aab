package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"snapback/internal/catalog"
	"snapback/internal/config"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect ingest run history",
	}
	cmd.AddCommand(newRunsListCommand(ctx))
	cmd.AddCommand(newRunsErrorsCommand(ctx))
	return cmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent ingest runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limitFlag)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					cmd.Println("No ingest runs recorded.")
					return nil
				}

				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ID,
						statusLabel(string(run.Status)),
						formatTime(&run.StartedAt),
						formatTime(run.FinishedAt),
						strconv.Itoa(run.Attempted),
						strconv.Itoa(run.Succeeded),
						strconv.Itoa(run.Failed),
					})
				}
				cmd.Println(renderTable(
					[]string{"Run", "Status", "Started (UTC)", "Finished (UTC)", "Attempted", "Succeeded", "Failed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum runs to show")
	return cmd
}

func newRunsErrorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "errors <run-id>",
		Short: "Show the error ledger for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				run, err := store.RunByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("no run with id %q", args[0])
				}

				itemErrors, err := store.ErrorsForRun(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if len(itemErrors) == 0 {
					cmd.Println("No errors recorded for this run.")
					return nil
				}

				rows := make([][]string, 0, len(itemErrors))
				for _, itemError := range itemErrors {
					rows = append(rows, []string{
						orDash(itemError.StableID),
						itemError.Stage,
						itemError.Message,
					})
				}
				cmd.Println(renderTable([]string{"Item", "Stage", "Error"}, rows, nil))
				return nil
			})
		},
	}
}
