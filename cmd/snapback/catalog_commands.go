package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snapback/internal/catalog"
	"snapback/internal/config"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and curate the media catalog",
	}
	cmd.AddCommand(newCatalogListCommand(ctx))
	cmd.AddCommand(newCatalogShowCommand(ctx))
	cmd.AddCommand(newCatalogFavoriteCommand(ctx))
	cmd.AddCommand(newCatalogTagCommand(ctx))
	return cmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var favoritesFlag bool
	var yearFlag, monthFlag, limitFlag, offsetFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cataloged media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				filter := catalog.ListFilter{
					FavoritesOnly: favoritesFlag,
					Year:          yearFlag,
					Month:         monthFlag,
					Limit:         limitFlag,
					Offset:        offsetFlag,
				}
				switch strings.ToLower(strings.TrimSpace(kindFlag)) {
				case "":
				case "photo":
					filter.Kind = catalog.MediaPhoto
				case "video":
					filter.Kind = catalog.MediaVideo
				default:
					return fmt.Errorf("unknown kind %q (want photo or video)", kindFlag)
				}

				records, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					cmd.Println("No records match.")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						record.StableID,
						kindLabel(record.Kind),
						formatTime(record.CapturedAt),
						formatCoords(record.Latitude, record.Longitude),
						yesNo(record.Favorite),
						formatBytes(record.SizeBytes),
					})
				}
				cmd.Println(renderTable(
					[]string{"ID", "Kind", "Captured (UTC)", "Location", "Fav", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "Filter by media kind (photo or video)")
	cmd.Flags().BoolVar(&favoritesFlag, "favorites", false, "Only show favorites")
	cmd.Flags().IntVar(&yearFlag, "year", 0, "Filter by capture year")
	cmd.Flags().IntVar(&monthFlag, "month", 0, "Filter by capture month (requires --year)")
	cmd.Flags().IntVar(&limitFlag, "limit", 50, "Maximum rows to show")
	cmd.Flags().IntVar(&offsetFlag, "offset", 0, "Rows to skip")
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <stable-id>",
		Short: "Show one catalog record in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				record, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("no catalog record for %q", args[0])
				}

				rows := [][]string{
					{"Stable ID", record.StableID},
					{"Kind", kindLabel(record.Kind)},
					{"Path", record.OrganizedPath},
					{"Captured", formatTime(record.CapturedAt)},
					{"Location", formatCoords(record.Latitude, record.Longitude)},
					{"Favorite", yesNo(record.Favorite)},
					{"Tags", formatTags(record.Tags)},
					{"Size", formatBytes(record.SizeBytes)},
					{"Checksum", orDash(record.Checksum)},
					{"Duration", formatDuration(record.DurationSec)},
					{"First seen", formatTime(&record.CreatedAt)},
					{"Last ingested", formatTime(&record.UpdatedAt)},
				}
				cmd.Println(renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func newCatalogFavoriteCommand(ctx *commandContext) *cobra.Command {
	var clearFlag bool

	cmd := &cobra.Command{
		Use:   "favorite <stable-id>",
		Short: "Mark or unmark a record as favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				if err := store.SetFavorite(cmd.Context(), args[0], !clearFlag); err != nil {
					return err
				}
				if clearFlag {
					cmd.Printf("Unfavorited %s\n", args[0])
				} else {
					cmd.Printf("Favorited %s\n", args[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearFlag, "clear", false, "Remove the favorite flag instead of setting it")
	return cmd
}

func newCatalogTagCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <stable-id> [tag ...]",
		Short: "Replace a record's tags",
		Long:  "Replace a record's tags with the given list. With no tags, clears them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				tags := args[1:]
				if err := store.SetTags(cmd.Context(), args[0], tags); err != nil {
					return err
				}
				if len(tags) == 0 {
					cmd.Printf("Cleared tags on %s\n", args[0])
				} else {
					cmd.Printf("Tagged %s: %s\n", args[0], strings.Join(tags, ", "))
				}
				return nil
			})
		},
	}
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fs", *seconds)
}
