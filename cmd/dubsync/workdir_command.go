package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dubsync/internal/workdir"
)

func newWorkdirCommand(ctx *commandContext) *cobra.Command {
	workdirCmd := &cobra.Command{
		Use:   "workdir",
		Short: "Inspect and prune per-job scratch directories",
	}
	workdirCmd.AddCommand(newWorkdirListCommand(ctx))
	workdirCmd.AddCommand(newWorkdirCleanCommand(ctx))
	return workdirCmd
}

func newWorkdirListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List job directories, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := workdir.List(cfg.Paths.WorkDir)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, dirs)
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintf(out, "No job directories under %s\n", cfg.Paths.WorkDir)
				return nil
			}
			rows := make([][]string, 0, len(dirs))
			var total int64
			for _, dir := range dirs {
				total += dir.Size
				rows = append(rows, []string{dir.Name, humanize.Time(dir.ModTime), humanize.IBytes(uint64(dir.Size)), yesNo(dir.Busy)})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Job dir", "Modified", "Size", "In use"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Total: %s\n", humanize.IBytes(uint64(total)))
			return nil
		},
	}
}

func newWorkdirCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove job directories not modified within --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			result := workdir.CleanStale(cmd.Context(), cfg.Paths.WorkDir, maxAge, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d director(ies)\n", len(result.Removed))
			for _, path := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s (in use)\n", path)
			}
			if len(result.Errors) > 0 {
				first := result.Errors[0]
				return fmt.Errorf("%d director(ies) could not be removed; first: %s: %w", len(result.Errors), first.Path, first.Error)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "older-than", 7*24*time.Hour, "Minimum age of directories to remove")
	return cmd
}
