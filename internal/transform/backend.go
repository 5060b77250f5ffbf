package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/timeline"
)

// Backend renders one Request as ffmpeg arguments.
type Backend interface {
	Name() string
	Args(req Request) ([]string, error)
}

// errUnsupported marks a backend that cannot handle a request at all; the
// next backend is tried without running anything.
var errUnsupported = errors.New("unsupported by backend")

const (
	BackendRubberband = "rubberband"
	BackendAtempo     = "atempo"
	BackendConform    = "conform"
	BackendResample   = "aresample"
	BackendSoftware   = "software"
	BackendNVENC      = "nvenc"
)

// AudioFormat is the canonical PCM layout of audio segments.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

type rubberbandBackend struct{ format AudioFormat }

func (rubberbandBackend) Name() string { return BackendRubberband }

func (b rubberbandBackend) Args(req Request) ([]string, error) {
	filter := "apad"
	if req.Plan.IsRateChange() {
		filter = "rubberband=tempo=" + ffmpeg.FormatNumber(req.Plan.Ratio) + ",apad"
	}
	return audioArgs(req, filter, b.format), nil
}

type atempoBackend struct{ format AudioFormat }

func (atempoBackend) Name() string { return BackendAtempo }

func (b atempoBackend) Args(req Request) ([]string, error) {
	filter := "apad"
	if req.Plan.IsRateChange() {
		filter = ffmpeg.AtempoChain(req.Plan.Ratio) + ",apad"
	}
	return audioArgs(req, filter, b.format), nil
}

// conformArgs pads or trims audio to the target without a rate change.
func conformArgs(req Request, format AudioFormat) []string {
	return audioArgs(req, "apad", format)
}

// conformBackend renders Hold plans. The resample variant regenerates
// timestamps first, for clips whose stream timing confuses a plain pad.
type conformBackend struct {
	format   AudioFormat
	resample bool
}

func (b conformBackend) Name() string {
	if b.resample {
		return BackendResample
	}
	return BackendConform
}

func (b conformBackend) Args(req Request) ([]string, error) {
	if req.Plan.IsRateChange() {
		return nil, fmt.Errorf("%w: %s cannot change rate", errUnsupported, b.Name())
	}
	if b.resample {
		return audioArgs(req, "aresample=async=1:first_pts=0,apad", b.format), nil
	}
	return conformArgs(req, b.format), nil
}

// ConformBackends returns the ordered Hold backends: [conform, aresample].
func ConformBackends(format AudioFormat) []Backend {
	return []Backend{conformBackend{format: format}, conformBackend{format: format, resample: true}}
}

func audioArgs(req Request, filter string, format AudioFormat) []string {
	args := ffmpeg.Args("-i", req.Input, "-vn", "-af", filter, "-t", ffmpeg.Seconds(req.Target))
	args = append(args, ffmpeg.PCMArgs(format.SampleRate, format.Channels)...)
	return append(args, req.Output)
}

// AudioBackends builds the ordered audio backend list from names.
// Unknown names are skipped.
func AudioBackends(names []string, format AudioFormat) []Backend {
	out := make([]Backend, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case BackendRubberband:
			out = append(out, rubberbandBackend{format: format})
		case BackendAtempo:
			out = append(out, atempoBackend{format: format})
		}
	}
	if len(out) == 0 {
		out = append(out, atempoBackend{format: format})
	}
	return out
}

// VideoEncoding holds the quality knobs for re-encoding video.
type VideoEncoding struct {
	CRF    int
	Preset string
}

type videoBackend struct {
	hardware bool
	encoding VideoEncoding
}

// VideoBackends returns [nvenc, software] when hardware is set, else [software].
func VideoBackends(hardware bool, encoding VideoEncoding) []Backend {
	if hardware {
		return []Backend{videoBackend{hardware: true, encoding: encoding}, videoBackend{encoding: encoding}}
	}
	return []Backend{videoBackend{encoding: encoding}}
}

func (b videoBackend) Name() string {
	if b.hardware {
		return BackendNVENC
	}
	return BackendSoftware
}

func (b videoBackend) Args(req Request) ([]string, error) {
	if req.Source.Video == nil {
		return nil, fmt.Errorf("%w: input has no video stream", errUnsupported)
	}
	encoder, err := b.encoderArgs(req.Source.Video.CodecFamily)
	if err != nil {
		return nil, err
	}
	filters := VideoFilters(req.Plan, req.Source.Video.FrameRate, req.Source.Duration, req.Target)

	args := ffmpeg.Args("-i", req.Input, "-an", "-map", "0:v:0")
	if filters != "" {
		args = append(args, "-vf", filters)
	}
	args = append(args, encoder...)
	args = append(args, "-pix_fmt", req.Source.Video.PixelFormat, "-t", ffmpeg.Seconds(req.Target))
	if req.Format != "" {
		args = append(args, "-f", req.Format)
	}
	return append(args, req.Output), nil
}

// VideoFilters builds the -vf chain. A rate change becomes
// setpts=<stretch>*PTS,fps=<source*ratio>; a source shorter than the target
// gets its last frame cloned for the difference.
func VideoFilters(plan timeline.Plan, sourceRate float64, source, target time.Duration) string {
	var filters []string
	stretched := source
	if plan.IsRateChange() {
		stretch := plan.Stretch()
		filters = append(filters,
			"setpts="+ffmpeg.FormatNumber(stretch)+"*PTS",
			"fps="+ffmpeg.FormatNumber(sourceRate*plan.Ratio),
		)
		stretched = time.Duration(float64(source) * stretch)
	}
	if short := target - stretched; short > 0 {
		filters = append(filters, "tpad=stop_mode=clone:stop_duration="+ffmpeg.Seconds(short))
	}
	return strings.Join(filters, ",")
}

func (b videoBackend) encoderArgs(family string) ([]string, error) {
	crf := strconv.Itoa(b.encoding.CRF)
	preset := b.encoding.Preset
	if preset == "" {
		preset = "fast"
	}
	family = strings.ToLower(strings.TrimSpace(family))

	if b.hardware {
		switch family {
		case "h264", "hevc", "av1":
			return []string{"-c:v", family + "_nvenc", "-preset", "p4", "-rc", "vbr", "-cq", crf}, nil
		default:
			return nil, fmt.Errorf("%w: no nvenc encoder for %q", errUnsupported, family)
		}
	}

	switch family {
	case "h264":
		return []string{"-c:v", "libx264", "-preset", preset, "-crf", crf}, nil
	case "hevc":
		return []string{"-c:v", "libx265", "-preset", preset, "-crf", crf}, nil
	case "vp9":
		return []string{"-c:v", "libvpx-vp9", "-crf", crf, "-b:v", "0"}, nil
	case "av1":
		return []string{"-c:v", "libsvtav1", "-crf", crf, "-preset", "8"}, nil
	case "mpeg4":
		return []string{"-c:v", "mpeg4", "-q:v", "3"}, nil
	default:
		return nil, fmt.Errorf("%w: no software encoder for %q", errUnsupported, family)
	}
}

// EncoderFor reports the encoder name used for a codec family, or "" when
// none is known.
func EncoderFor(family string, hardware bool) string {
	args, err := videoBackend{hardware: hardware}.encoderArgs(family)
	if err != nil || len(args) < 2 {
		return ""
	}
	return args[1]
}
