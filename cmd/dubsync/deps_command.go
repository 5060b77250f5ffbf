package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dubsync/internal/deps"
	"dubsync/internal/preflight"
	"dubsync/internal/transform"
)

type depsOutput struct {
	Tools         []deps.Status      `json:"tools"`
	AudioBackends []string           `json:"audio_backends"`
	Encoders      map[string]bool    `json:"encoders,omitempty"`
	Checks        []preflight.Result `json:"checks"`
	Detection     string             `json:"detection_error,omitempty"`
}

var probedEncoders = []string{"libx264", "libx265", "libvpx-vp9", "libsvtav1", "mpeg4", "h264_nvenc", "hevc_nvenc", "av1_nvenc", "aac"}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check ffmpeg/ffprobe, their features, and the working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			result := depsOutput{
				Tools:         deps.CheckBinaries(deps.Requirements(cfg)),
				AudioBackends: cfg.Transform.AudioBackends,
				Checks:        preflight.RunAll(cmd.Context(), cfg),
			}
			if caps, err := deps.DetectFFmpeg(cmd.Context(), cfg.FFmpegBinary()); err != nil {
				result.Detection = err.Error()
			} else {
				result.AudioBackends = deps.OrderAudioBackends(cfg.Transform.AudioBackends, caps)
				result.Encoders = make(map[string]bool, len(probedEncoders))
				for _, name := range probedEncoders {
					result.Encoders[name] = caps.HasEncoder(name)
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			toolRows := make([][]string, 0, len(result.Tools))
			for _, s := range result.Tools {
				state := "ok"
				if !s.Available {
					state = "missing"
				}
				toolRows = append(toolRows, []string{s.Name, state, s.Command, s.Detail})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Tool", "Status", "Command", "Detail"}, toolRows, nil))

			if result.Detection != "" {
				fmt.Fprintf(out, "Feature detection failed: %s\n", result.Detection)
			} else {
				fmt.Fprintf(out, "Audio backends: %s\n", strings.Join(result.AudioBackends, ", "))
				encoderRows := make([][]string, 0, len(probedEncoders))
				for _, name := range probedEncoders {
					encoderRows = append(encoderRows, []string{name, yesNo(result.Encoders[name])})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Encoder", "Available"}, encoderRows, nil))
				fmt.Fprintf(out, "Software video encoder for h264: %s\n", transform.EncoderFor("h264", false))
			}

			checkRows := make([][]string, 0, len(result.Checks))
			for _, c := range result.Checks {
				checkRows = append(checkRows, []string{c.Name, yesNo(c.Passed), c.Detail})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Check", "Passed", "Detail"}, checkRows, nil))

			if missing := deps.MissingRequired(result.Tools); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
