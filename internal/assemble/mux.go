package assemble

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dubsync/internal/fileutil"
	"dubsync/internal/logging"
	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/services"
)

// MuxBitrate is the audio bitrate of muxed deliverables.
const MuxBitrate = "192k"

// MuxMode selects the audio carried by the muxed deliverable.
type MuxMode string

const (
	// MuxReplace carries only the dubbed track.
	MuxReplace MuxMode = "replace"
	// MuxMix lays the dubbed track over the source audio.
	MuxMix MuxMode = "mix"
	// MuxRemove drops audio entirely.
	MuxRemove MuxMode = "remove"
)

// ParseMuxMode maps a configured mode name, defaulting to MuxReplace.
func ParseMuxMode(value string) (MuxMode, error) {
	switch MuxMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", MuxReplace:
		return MuxReplace, nil
	case MuxMix:
		return MuxMix, nil
	case MuxRemove:
		return MuxRemove, nil
	default:
		return "", services.Wrap(services.ErrValidation, "assemble", "mux mode", fmt.Sprintf("unsupported mode %q", value), nil)
	}
}

// MuxOptions shapes a Mux call.
type MuxOptions struct {
	Mode MuxMode
	// Original supplies the source audio in mix mode. Empty uses the video input.
	Original string
	// OriginalTempo is the rate applied to the source audio so it follows a
	// stretched video; 0 and 1 leave it untouched.
	OriginalTempo  float64
	OriginalVolume float64
	// Subtitles is embedded as a soft subtitle stream when set.
	Subtitles string
}

// Mux combines the video stream of video with track into output. The video
// is copied untouched and must already match the track length.
func (a *Assembler) Mux(ctx context.Context, video string, track Track, output string, opts MuxOptions) error {
	ctx = services.WithStage(ctx, "mux")
	if strings.TrimSpace(video) == "" || strings.TrimSpace(track.Path) == "" {
		return services.Wrap(services.ErrValidation, "assemble", "mux", "video and track are required", nil)
	}
	if opts.Mode == "" {
		opts.Mode = MuxReplace
	}

	format := ffmpeg.ContainerFormat(output)
	part := fileutil.PartPath(output)
	args, err := muxArgs(video, track, format, opts)
	if err != nil {
		return err
	}
	args = append(args, "-f", format, part)

	if err := a.invoke(ctx, maxDuration(track.Duration, time.Second), args, part, output); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrAssemblyFailed, "assemble", "mux",
			fmt.Sprintf("%s mode, expected %dms", opts.Mode, track.Duration.Milliseconds()), err)
	}
	logging.WithContext(ctx, a.logger).Info("muxed deliverable",
		logging.String("output", output),
		logging.String("mode", string(opts.Mode)),
		logging.Bool("subtitles", opts.Subtitles != ""),
		logging.Millis("duration_ms", track.Duration),
	)
	return nil
}

func muxArgs(video string, track Track, format string, opts MuxOptions) ([]string, error) {
	inputs := []string{"-i", video}
	next := 1
	addInput := func(path string) int {
		inputs = append(inputs, "-i", path)
		next++
		return next - 1
	}

	var maps, codecs []string
	maps = append(maps, "-map", "0:v:0")
	codecs = append(codecs, "-c:v", "copy")

	switch opts.Mode {
	case MuxReplace:
		dub := addInput(track.Path)
		maps = append(maps, "-map", strconv.Itoa(dub)+":a:0")
		codecs = append(codecs, audioCodecArgs(format)...)
	case MuxMix:
		dub := addInput(track.Path)
		original := 0
		if src := strings.TrimSpace(opts.Original); src != "" && src != video {
			original = addInput(src)
		}
		maps = append(maps, "-filter_complex", mixFilter(original, dub, opts), "-map", "[aout]")
		codecs = append(codecs, audioCodecArgs(format)...)
	case MuxRemove:
		codecs = append(codecs, "-an")
	default:
		return nil, services.Wrap(services.ErrValidation, "assemble", "mux mode", fmt.Sprintf("unsupported mode %q", opts.Mode), nil)
	}

	if opts.Subtitles != "" {
		codec := subtitleCodec(format)
		if codec == "" {
			return nil, services.Wrap(services.ErrValidation, "assemble", "mux subtitles",
				fmt.Sprintf("%s container cannot carry subtitles", format), nil)
		}
		subs := addInput(opts.Subtitles)
		maps = append(maps, "-map", strconv.Itoa(subs)+":s:0")
		codecs = append(codecs, "-c:s", codec)
	}

	args := ffmpeg.Args(inputs...)
	args = append(args, maps...)
	args = append(args, codecs...)
	args = append(args, "-t", ffmpeg.Seconds(track.Duration))
	if format == "mp4" || format == "mov" {
		args = append(args, "-movflags", "+faststart")
	}
	return args, nil
}

// mixFilter keeps the dub at full level over the scaled source audio and
// ends with the dub.
func mixFilter(original, dub int, opts MuxOptions) string {
	chain := []string{}
	if opts.OriginalTempo > 0 && opts.OriginalTempo != 1 {
		chain = append(chain, ffmpeg.AtempoChain(opts.OriginalTempo))
	}
	chain = append(chain, "volume="+ffmpeg.FormatNumber(opts.OriginalVolume))
	return fmt.Sprintf("[%d:a:0]%s[orig];[%d:a:0][orig]amix=inputs=2:duration=first:dropout_transition=2[aout]",
		original, strings.Join(chain, ","), dub)
}

func audioCodecArgs(format string) []string {
	if format == "webm" {
		return []string{"-c:a", "libopus", "-b:a", MuxBitrate}
	}
	return []string{"-c:a", "aac", "-b:a", MuxBitrate}
}

// subtitleCodec returns the soft subtitle codec a container accepts, or "".
func subtitleCodec(format string) string {
	switch format {
	case "mp4", "mov":
		return "mov_text"
	case "matroska":
		return "srt"
	case "webm":
		return "webvtt"
	default:
		return ""
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
