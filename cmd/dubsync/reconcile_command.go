package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dubsync/internal/assemble"
	"dubsync/internal/deps"
	"dubsync/internal/logging"
	"dubsync/internal/preflight"
	"dubsync/internal/reconcile"
	"dubsync/internal/srt"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var req reconcile.Request
	var strict bool
	var muxMode string
	var embedSubtitles bool

	cmd := &cobra.Command{
		Use:   "reconcile <subtitles.srt>",
		Short: "Fit clips onto the subtitle timeline and assemble the dubbed track",
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

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s (run `dubsync deps`)", strings.Join(missing, ", "))
			}
			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
				return fmt.Errorf("preflight failed: %s: %s", failed[0].Name, failed[0].Detail)
			}

			runCfg := *cfg
			if cmd.Flags().Changed("mux-mode") {
				mode, err := assemble.ParseMuxMode(muxMode)
				if err != nil {
					return err
				}
				runCfg.Mux.Mode = string(mode)
			}
			if cmd.Flags().Changed("embed-subtitles") {
				runCfg.Mux.EmbedSubtitles = embedSubtitles
			}
			if caps, err := deps.DetectFFmpeg(cmd.Context(), cfg.FFmpegBinary()); err == nil {
				runCfg.Transform.AudioBackends = deps.OrderAudioBackends(cfg.Transform.AudioBackends, caps)
			} else {
				logging.WarnWithContext(logger, "ffmpeg capability detection failed", "ffmpeg_detect_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "backends are tried in configured order"),
				)
			}

			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				logging.WarnWithContext(logger, "history ledger unavailable", "history_open_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "this run will not appear in `dubsync history`"),
				)
				store = nil
			}
			if store != nil {
				defer store.Close()
			}

			service := reconcile.NewService(&runCfg, ctx.prober(logger), store, logger)
			report, err := service.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printReport(cmd, report)
			}
			if strict && reconcile.IsWarn(report) {
				return fmt.Errorf("verification ended in warn (diff %dms, %d failed segments)",
					report.Verification.Diff.Milliseconds(), len(report.Verification.SegmentFailures))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ClipDir, "clips", "", "Directory of clips named by slot index (0001.wav, 12_line.mp3)")
	cmd.Flags().StringSliceVar(&req.Clips, "clip", nil, "Explicit clip per slot, in order (repeatable)")
	cmd.Flags().StringVar(&req.Video, "video", "", "Video to stretch to the dubbed track and mux")
	cmd.Flags().StringVarP(&req.Output, "output", "o", "", "Assembled audio track path (.wav)")
	cmd.Flags().StringVar(&req.WorkDir, "work-dir", "", "Scratch directory for this job")
	cmd.Flags().StringVar(&muxMode, "mux-mode", "", "Audio of the muxed video: replace, mix, or remove (default from config)")
	cmd.Flags().BoolVar(&embedSubtitles, "embed-subtitles", false, "Embed the adjusted subtitles in the muxed video")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when verification ends in warn")
	return cmd
}

func printReport(cmd *cobra.Command, report *reconcile.Report) {
	out := cmd.OutOrStdout()
	v := report.Verification
	fmt.Fprintf(out, "Job %s: %s\n", report.JobID, strings.ToUpper(string(v.Status)))
	fmt.Fprintf(out, "Strategy: %s", report.Strategy)
	if report.SpeedupRatio > 0 {
		fmt.Fprintf(out, " (speedup %.3f)", report.SpeedupRatio)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Target %s, actual %s, diff %dms, corrected %s\n",
		srt.FormatTimestamp(v.TargetTotal), srt.FormatTimestamp(v.ActualTotal), v.Diff.Milliseconds(), yesNo(v.Corrected))
	if len(v.SegmentFailures) > 0 {
		fmt.Fprintf(out, "Silent substitutes: %v\n", v.SegmentFailures)
	}
	if report.VideoPlan != nil {
		fmt.Fprintf(out, "Video plan: %s\n", report.VideoPlan.String())
	}

	rows := [][]string{
		{"Track", report.Outputs.Track},
		{"Subtitles", report.Outputs.Subtitles},
		{"Report", report.Outputs.Report},
	}
	if report.Outputs.Video != "" {
		rows = append(rows, []string{"Video", report.Outputs.Video})
	}
	if report.Outputs.Log != "" {
		rows = append(rows, []string{"Log", report.Outputs.Log})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Output", "Path"}, rows, nil))
}
