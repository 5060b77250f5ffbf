package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubsync/internal/logging"
	"dubsync/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var raw bool
	var level string
	var slot int

	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Show a job's log by job ID or unique prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := logs.Filter{Slot: slot}
			if strings.TrimSpace(level) != "" {
				if err := filter.MinLevel.UnmarshalText([]byte(level)); err != nil {
					return fmt.Errorf("invalid --level %q: %w", level, err)
				}
			}

			jobID, err := resolveJobID(ctx, cmd, args[0])
			if err != nil {
				return err
			}
			path := logging.JobLogPath(cfg.Paths.LogDir, jobID)
			if _, err := os.Stat(path); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no log for job %s at %s", jobID, path)
				}
				return err
			}

			out := cmd.OutOrStdout()
			emit := func(batch []string) {
				for _, line := range batch {
					if raw {
						fmt.Fprintln(out, line)
						continue
					}
					entry, ok := logs.ParseEntry(line)
					if !ok {
						fmt.Fprintln(out, line)
						continue
					}
					if filter.Match(entry) {
						fmt.Fprintln(out, logs.Format(entry))
					}
				}
			}

			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			emit(result.Lines)
			for follow {
				result, err = logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: result.Offset, Wait: 5 * time.Second})
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				emit(result.Lines)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON lines unmodified")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().IntVar(&slot, "slot", 0, "Only show lines for this slot")
	return cmd
}

// resolveJobID expands a prefix through the history ledger. Without a
// ledger the argument is taken as the full ID.
func resolveJobID(ctx *commandContext, cmd *cobra.Command, arg string) (string, error) {
	store, err := ctx.openHistory(cmd.Context())
	if err != nil || store == nil {
		return arg, nil
	}
	defer store.Close()
	run, err := store.Get(cmd.Context(), arg)
	if err != nil {
		return "", err
	}
	if run == nil {
		return arg, nil
	}
	return run.JobID, nil
}
