package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"snapback/internal/catalog"
	"snapback/internal/config"
	"snapback/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show environment checks and catalog totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				results := preflight.RunAll(cfg)
				printPreflight(cmd, results)

				count, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Println()
				cmd.Println("Catalog records: " + strconv.Itoa(count))
				return nil
			})
		},
	}
}

func printPreflight(cmd *cobra.Command, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		state := "FAIL"
		if result.Passed {
			state = "OK"
		}
		rows = append(rows, []string{result.Name, state, result.Detail})
	}
	cmd.Println(renderTable([]string{"Check", "State", "Detail"}, rows, nil))
}
