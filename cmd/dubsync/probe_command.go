package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dubsync/internal/probe"
	"dubsync/internal/services"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>...",
		Short: "Report duration and codec profile of media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			prober := ctx.prober(logger)

			infos := make([]probe.Info, 0, len(args))
			var failures []error
			for _, path := range args {
				info, err := prober.Inspect(cmd.Context(), path)
				if err != nil {
					if !errors.Is(err, services.ErrProbeFailed) {
						return err
					}
					failures = append(failures, err)
					continue
				}
				infos = append(infos, info)
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, infos); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(infos))
				for _, info := range infos {
					rows = append(rows, probeRow(info))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"File", "Duration ms", "Audio", "Video", "Pixel format", "FPS"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				))
			}
			return errors.Join(failures...)
		},
	}
}

func probeRow(info probe.Info) []string {
	audio, video, pixFmt, fps := "-", "-", "-", "-"
	if info.Audio != nil {
		audio = fmt.Sprintf("%s %dHz/%dch", info.Audio.Codec, info.Audio.SampleRate, info.Audio.Channels)
	}
	if info.Video != nil {
		video = fmt.Sprintf("%s %dx%d", info.Video.CodecFamily, info.Video.Width, info.Video.Height)
		pixFmt = info.Video.PixelFormat
		fps = strconv.FormatFloat(info.Video.FrameRate, 'f', 3, 64)
	}
	return []string{info.Path, strconv.FormatInt(info.Duration.Milliseconds(), 10), audio, video, pixFmt, fps}
}
