package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"dubsync/internal/reconcile"
	"dubsync/internal/srt"
)

func newAdjustCommand(ctx *commandContext) *cobra.Command {
	var req reconcile.Request

	cmd := &cobra.Command{
		Use:   "adjust <subtitles.srt>",
		Short: "Plan the adjusted timeline without rendering anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Subtitle = args[0]
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			service := reconcile.NewService(cfg, ctx.prober(logger), nil, logger)
			job, err := service.Prepare(req)
			if err != nil {
				return err
			}
			layout, err := service.Plan(cmd.Context(), job)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, layout.Adjust)
			}

			out := cmd.OutOrStdout()
			result := layout.Adjust
			fmt.Fprintf(out, "Strategy: %s\n", result.Strategy)
			fmt.Fprintf(out, "Target %s, natural %s, diff %dms\n",
				srt.FormatTimestamp(result.TargetTotal), srt.FormatTimestamp(result.ActualTotal), result.Diff.Milliseconds())
			fmt.Fprintf(out, "Gaps %dms -> %dms, retimed slots %d\n",
				result.GapsBefore.Milliseconds(), result.GapsAfter.Milliseconds(), result.Retimed())

			rows := make([][]string, 0, len(result.Slots))
			for i, slot := range result.Slots {
				clip := "-"
				if path := layout.Clips[i].Path; path != "" {
					clip = filepath.Base(path)
				}
				if layout.Clips[i].Silent {
					clip += " (silent)"
				}
				rows = append(rows, []string{
					strconv.Itoa(slot.Index),
					srt.FormatTimestamp(slot.Start),
					srt.FormatTimestamp(slot.End),
					strconv.FormatInt(slot.Clip.Milliseconds(), 10),
					slot.Plan.String(),
					clip,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Slot", "Start", "End", "Clip ms", "Plan", "Clip"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ClipDir, "clips", "", "Directory of clips named by slot index")
	cmd.Flags().StringSliceVar(&req.Clips, "clip", nil, "Explicit clip per slot, in order (repeatable)")
	return cmd
}
