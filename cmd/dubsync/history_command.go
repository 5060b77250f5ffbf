package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dubsync/internal/history"
	"dubsync/internal/srt"
)

var errHistoryDisabled = errors.New("history ledger is disabled (history.enabled = false)")

type runView struct {
	JobID        string    `json:"job_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Subtitle     string    `json:"subtitle"`
	Output       string    `json:"output,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	Slots        int       `json:"slots"`
	Failures     int       `json:"segment_failures"`
	TargetMS     int64     `json:"target_ms"`
	ActualMS     int64     `json:"actual_ms"`
	DiffMS       int64     `json:"diff_ms"`
	Status       string    `json:"status"`
	Corrected    bool      `json:"corrected"`
	Error        string    `json:"error,omitempty"`
	ElapsedMilli int64     `json:"elapsed_ms"`
}

func viewOf(run history.Run) runView {
	return runView{
		JobID:        run.JobID,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Subtitle:     run.SubtitlePath,
		Output:       run.OutputPath,
		Strategy:     run.Strategy,
		Slots:        run.SlotCount,
		Failures:     run.FailureCount,
		TargetMS:     run.Target.Milliseconds(),
		ActualMS:     run.Actual.Milliseconds(),
		DiffMS:       run.Diff.Milliseconds(),
		Status:       run.Status,
		Corrected:    run.Corrected,
		Error:        run.Error,
		ElapsedMilli: run.Elapsed().Milliseconds(),
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past reconciliation runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func withHistory(ctx *commandContext, cmd *cobra.Command, fn func(*history.Store) error) error {
	store, err := ctx.openHistory(cmd.Context())
	if err != nil {
		return err
	}
	if store == nil {
		return errHistoryDisabled
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, cmd, func(store *history.Store) error {
				runs, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					views := make([]runView, 0, len(runs))
					for _, run := range runs {
						views = append(views, viewOf(run))
					}
					return writeJSON(cmd, views)
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortJobID(run.JobID),
						humanize.Time(run.FinishedAt),
						run.Status,
						run.Strategy,
						strconv.Itoa(run.SlotCount),
						strconv.FormatInt(run.Diff.Milliseconds(), 10),
						run.SubtitlePath,
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Job", "Finished", "Status", "Strategy", "Slots", "Diff ms", "Subtitles"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one run by job ID or unique prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, cmd, func(store *history.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("no run matches %q", args[0])
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, viewOf(*run))
				}

				rows := [][]string{
					{"Job", run.JobID},
					{"Status", run.Status},
					{"Started", run.StartedAt.Local().Format(time.RFC3339)},
					{"Elapsed", run.Elapsed().Round(time.Millisecond).String()},
					{"Subtitles", run.SubtitlePath},
					{"Output", run.OutputPath},
					{"Strategy", run.Strategy},
					{"Slots", strconv.Itoa(run.SlotCount)},
					{"Silent substitutes", strconv.Itoa(run.FailureCount)},
					{"Target", srt.FormatTimestamp(run.Target)},
					{"Actual", srt.FormatTimestamp(run.Actual)},
					{"Diff", fmt.Sprintf("%dms", run.Diff.Milliseconds())},
					{"Corrected", yesNo(run.Corrected)},
				}
				if run.Error != "" {
					rows = append(rows, []string{"Error", run.Error})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--older-than must be positive, got %d", days)
			}
			return withHistory(ctx, cmd, func(store *history.Store) error {
				cutoff := time.Now().AddDate(0, 0, -days)
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s) finished before %s\n", removed, cutoff.Format("2006-01-02"))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "older-than", 90, "Age in days")
	return cmd
}

func shortJobID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
