package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"dubsync/internal/logging"
	"dubsync/internal/media/ffprobe"
	"dubsync/internal/services"
)

const (
	// DefaultCodecFamily is assumed when ffprobe reports no video codec.
	DefaultCodecFamily = "h264"
	// DefaultPixelFormat is assumed when ffprobe reports no pixel format.
	DefaultPixelFormat = "yuv420p"
	// DefaultFrameRate is assumed when ffprobe reports no usable frame rate.
	DefaultFrameRate = 30.0
)

// CodecProfile describes a video stream closely enough to pick a compatible encoder.
type CodecProfile struct {
	CodecFamily string  `json:"codec_family"`
	PixelFormat string  `json:"pixel_format"`
	BitDepth    int     `json:"bit_depth,omitempty"`
	FrameRate   float64 `json:"frame_rate"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
}

// AudioFormat describes the first audio stream of a file.
type AudioFormat struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Info is the result of probing one media file.
type Info struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
	Audio    *AudioFormat  `json:"audio,omitempty"`
	Video    *CodecProfile `json:"video,omitempty"`
	// Fallback lists profile fields that were replaced by defaults.
	Fallback []string `json:"fallback,omitempty"`
}

// HasVideo reports whether a video stream was found.
func (i Info) HasVideo() bool { return i.Video != nil }

// IsCanonicalAudio reports whether the audio stream is already 16-bit PCM at
// the given sample rate and channel count.
func (i Info) IsCanonicalAudio(sampleRate, channels int) bool {
	if i.Audio == nil {
		return false
	}
	return i.Audio.Codec == "pcm_s16le" && i.Audio.SampleRate == sampleRate && i.Audio.Channels == channels
}

// Prober inspects media files through ffprobe.
type Prober struct {
	binary           string
	defaultFrameRate float64
	logger           *slog.Logger
}

// New constructs a Prober. A non-positive defaultFrameRate uses DefaultFrameRate.
func New(binary string, defaultFrameRate float64, logger *slog.Logger) *Prober {
	if defaultFrameRate <= 0 {
		defaultFrameRate = DefaultFrameRate
	}
	return &Prober{
		binary:           strings.TrimSpace(binary),
		defaultFrameRate: defaultFrameRate,
		logger:           logging.NewComponentLogger(logger, "probe"),
	}
}

// Inspect probes path and returns its duration and stream facts.
func (p *Prober) Inspect(ctx context.Context, path string) (Info, error) {
	info := Info{Path: path}
	if _, err := os.Stat(path); err != nil {
		return info, services.Wrap(services.ErrProbeFailed, "probe", "stat", fmt.Sprintf("media file %q", path), err)
	}

	result, err := inspect(ctx, p.binary, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return info, err
		}
		return info, services.Wrap(services.ErrProbeFailed, "probe", "ffprobe", fmt.Sprintf("inspect %q", path), err)
	}

	seconds := result.BestDurationSeconds()
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return info, services.Wrap(services.ErrProbeFailed, "probe", "duration", fmt.Sprintf("no usable duration for %q", path), nil)
	}
	info.Duration = secondsToDuration(seconds)

	if stream, ok := result.FirstStream("audio"); ok {
		info.Audio = &AudioFormat{
			Codec:      stream.CodecName,
			SampleRate: stream.SampleRateHz(),
			Channels:   stream.Channels,
		}
	}
	if stream, ok := result.FirstStream("video"); ok && !isAttachedPicture(stream) {
		profile, fallback := p.videoProfile(stream)
		info.Video = &profile
		info.Fallback = fallback
		if len(fallback) > 0 {
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "video profile incomplete; using defaults", "probe_fallback",
				logging.String("path", path),
				logging.String("defaulted", strings.Join(fallback, ",")),
				logging.String(logging.FieldImpact, "retimed video may use an assumed frame rate or codec"),
				logging.String(logging.FieldErrorHint, "verify the file with ffprobe"),
			)
		}
	}
	return info, nil
}

// Duration probes path and returns only its duration.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	info, err := p.Inspect(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

func (p *Prober) videoProfile(stream ffprobe.Stream) (CodecProfile, []string) {
	profile := CodecProfile{
		CodecFamily: strings.ToLower(strings.TrimSpace(stream.CodecName)),
		PixelFormat: strings.TrimSpace(stream.PixFmt),
		BitDepth:    stream.BitDepth(),
		FrameRate:   stream.FrameRate(),
		Width:       stream.Width,
		Height:      stream.Height,
	}
	var fallback []string
	if profile.CodecFamily == "" {
		profile.CodecFamily = DefaultCodecFamily
		fallback = append(fallback, "codec")
	}
	if profile.PixelFormat == "" {
		profile.PixelFormat = DefaultPixelFormat
		fallback = append(fallback, "pix_fmt")
	}
	if profile.FrameRate <= 0 || profile.FrameRate > 1000 {
		profile.FrameRate = p.defaultFrameRate
		fallback = append(fallback, "frame_rate")
	}
	if profile.BitDepth == 0 {
		profile.BitDepth = bitDepthFromPixelFormat(profile.PixelFormat)
	}
	return profile, fallback
}

// Cover art is reported as a video stream with a single frame.
func isAttachedPicture(stream ffprobe.Stream) bool {
	switch strings.ToLower(stream.CodecName) {
	case "mjpeg", "png", "bmp":
		return ffprobe.ParseRate(stream.AvgFrameRate) == 0
	}
	return false
}

func bitDepthFromPixelFormat(pixFmt string) int {
	switch {
	case strings.Contains(pixFmt, "12"):
		return 12
	case strings.Contains(pixFmt, "10"):
		return 10
	case pixFmt == "":
		return 0
	default:
		return 8
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}
