package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"snapback/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the snapback configuration",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var pathFlag string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := pathFlag
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			cmd.Printf("Wrote sample configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&pathFlag, "path", "", "Destination path (defaults to the standard config location)")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Library directory", cfg.Paths.LibraryDir},
				{"Cache directory", cfg.Paths.CacheDir},
				{"Scratch directory", cfg.Paths.ScratchDir},
				{"Log directory", cfg.Paths.LogDir},
				{"Database", cfg.Paths.DatabasePath},
				{"Export root", orDash(cfg.Paths.ExportRoot)},
				{"Network timeout", cfg.NetworkTimeout().String()},
				{"Retry attempts", strconv.Itoa(cfg.Network.RetryAttempts)},
				{"Workers", strconv.Itoa(cfg.Ingest.Workers)},
				{"Compute checksums", yesNo(cfg.Ingest.ComputeChecksums)},
				{"Keep scratch", yesNo(cfg.Ingest.KeepScratch)},
				{"FFmpeg", cfg.FFmpeg.FFmpegBin},
				{"FFprobe", cfg.FFmpeg.FFprobeBin},
				{"Flatten timeout", cfg.FlattenTimeout().String()},
				{"Log format", cfg.Logging.Format},
				{"Log level", cfg.Logging.Level},
			}
			cmd.Println(renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}
}
