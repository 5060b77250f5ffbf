package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"dubsync/internal/config"
	"dubsync/internal/fileutil"
	"dubsync/internal/logging"
	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/probe"
	"dubsync/internal/services"
	"dubsync/internal/timeline"
)

// Prober reports media facts for a file.
type Prober interface {
	Inspect(ctx context.Context, path string) (probe.Info, error)
}

// Options configures a Transformer.
type Options struct {
	FFmpeg        string
	Audio         AudioFormat
	AudioBackends []string
	Hardware      bool
	Video         VideoEncoding
	// Tolerance is the post-transform correction threshold.
	Tolerance time.Duration
	// TimeoutFloor and TimeoutPerSecond bound each invocation at
	// max(floor, perSecond * clip seconds).
	TimeoutFloor     time.Duration
	TimeoutPerSecond float64
}

// OptionsFromConfig maps configuration onto transformer options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FFmpeg:           cfg.FFmpegBinary(),
		Audio:            AudioFormat{SampleRate: cfg.Transform.AudioSampleRate, Channels: cfg.Transform.AudioChannels},
		AudioBackends:    append([]string(nil), cfg.Transform.AudioBackends...),
		Hardware:         cfg.Transform.HardwareEncoding,
		Video:            VideoEncoding{CRF: cfg.Transform.VideoCRF, Preset: cfg.Transform.VideoPreset},
		Tolerance:        cfg.CorrectionTolerance(),
		TimeoutFloor:     time.Duration(cfg.Transform.TimeoutFloorSeconds) * time.Second,
		TimeoutPerSecond: float64(cfg.Transform.TimeoutPerClipSecond),
	}
}

// Transformer executes plans against segments. It holds no per-segment state
// and is safe for concurrent use.
type Transformer struct {
	opts    Options
	prober  Prober
	run     ffmpeg.Runner
	audio   []Backend
	conform []Backend
	video   []Backend
	logger  *slog.Logger
}

// New constructs a Transformer.
func New(opts Options, prober Prober, logger *slog.Logger) *Transformer {
	if strings.TrimSpace(opts.FFmpeg) == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.Audio.SampleRate <= 0 {
		opts.Audio.SampleRate = 44100
	}
	if opts.Audio.Channels <= 0 {
		opts.Audio.Channels = 2
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 10 * time.Millisecond
	}
	if opts.TimeoutFloor <= 0 {
		opts.TimeoutFloor = time.Minute
	}
	return &Transformer{
		opts:    opts,
		prober:  prober,
		run:     ffmpeg.Run,
		audio:   AudioBackends(opts.AudioBackends, opts.Audio),
		conform: ConformBackends(opts.Audio),
		video:   VideoBackends(opts.Hardware, opts.Video),
		logger:  logging.NewComponentLogger(logger, "transform"),
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (t *Transformer) WithCommandRunner(r ffmpeg.Runner) {
	if t != nil && r != nil {
		t.run = r
	}
}

// AudioFormat returns the canonical audio layout segments are rendered to.
func (t *Transformer) AudioFormat() AudioFormat { return t.opts.Audio }

// Transform renders seg under plan so that its output lasts target.
func (t *Transformer) Transform(ctx context.Context, seg Segment, plan timeline.Plan, target time.Duration) (Result, error) {
	ctx = services.WithStage(services.WithSlot(ctx, seg.Slot), "transform")
	logger := logging.WithContext(ctx, t.logger)
	result := Result{Slot: seg.Slot, Output: seg.Output, Target: target, Plan: plan}

	if target <= 0 {
		return result, services.Wrap(services.ErrValidation, "transform", "target", fmt.Sprintf("slot %d has no duration", seg.Slot), nil)
	}
	if strings.TrimSpace(seg.Output) == "" {
		return result, services.Wrap(services.ErrValidation, "transform", "output", fmt.Sprintf("slot %d has no output path", seg.Slot), nil)
	}

	if strings.TrimSpace(seg.Input) == "" {
		if seg.Media == Video {
			return result, services.Wrap(services.ErrValidation, "transform", "input", "video segment without input", nil)
		}
		if err := t.Silence(ctx, seg.Output, target); err != nil {
			return result, err
		}
		result.Backend = "silence"
		result.Duration = target
		return result, nil
	}

	source := seg.Source
	if source.Duration <= 0 {
		info, err := t.prober.Inspect(ctx, seg.Input)
		if err != nil {
			return result, err
		}
		source = info
	}

	backend, err := t.render(ctx, seg, source, plan, target)
	if err != nil {
		return result, err
	}
	result.Backend = backend

	measured, corrected, err := t.verify(ctx, seg, target)
	if err != nil {
		return result, err
	}
	result.Duration = measured
	result.Corrected = corrected
	if residual := absDuration(measured - target); residual > t.opts.Tolerance {
		result.Residual = residual
		logging.WarnWithContext(logger, "segment still off target after correction", "segment_mismatch",
			logging.Millis("target_ms", target),
			logging.Millis("actual_ms", measured),
			logging.String(logging.FieldImpact, "assembler will absorb the residual in the tail correction"),
			logging.Error(services.Wrap(services.ErrDurationMismatch, "transform", "verify", fmt.Sprintf("slot %d", seg.Slot), nil)),
		)
	}

	logger.Debug("segment transformed",
		logging.String("plan", plan.String()),
		logging.String("backend", backend),
		logging.Millis("target_ms", target),
		logging.Millis("actual_ms", measured),
		logging.Bool("corrected", corrected),
	)
	return result, nil
}

// render runs the first backend that succeeds. Hold audio already in the
// canonical format and within tolerance is copied untouched.
func (t *Transformer) render(ctx context.Context, seg Segment, source probe.Info, plan timeline.Plan, target time.Duration) (string, error) {
	logger := logging.WithContext(ctx, t.logger)

	backends := t.audio
	switch {
	case seg.Media == Video:
		backends = t.video
	case !plan.IsRateChange():
		format := t.opts.Audio
		if source.IsCanonicalAudio(format.SampleRate, format.Channels) && absDuration(source.Duration-target) <= t.opts.Tolerance {
			if err := fileutil.CopyAtomic(seg.Input, seg.Output); err != nil {
				return "", services.Wrap(services.ErrTransformFailed, "transform", "copy", fmt.Sprintf("slot %d", seg.Slot), err)
			}
			return "copy", nil
		}
		backends = t.conform
	}
	var failures []error
	for _, backend := range backends {
		req := t.request(seg, source, plan, target)
		args, err := backend.Args(req)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		err = t.invoke(ctx, maxDuration(source.Duration, target), args, req.Output, seg.Output)
		if err == nil {
			return backend.Name(), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		failures = append(failures, fmt.Errorf("%s: %w", backend.Name(), err))
		logging.WarnWithContext(logger, "backend failed; trying next", "backend_fallback",
			logging.String("backend", backend.Name()),
			logging.String("media", seg.Media.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "segment will use the next backend if one remains"),
			logging.String(logging.FieldErrorHint, "run `dubsync deps` to check ffmpeg filters and encoders"),
		)
	}
	return "", services.Wrap(services.ErrTransformFailed, "transform", seg.Media.String(),
		fmt.Sprintf("slot %d: all %d backends failed", seg.Slot, len(backends)), errors.Join(failures...))
}

func (t *Transformer) request(seg Segment, source probe.Info, plan timeline.Plan, target time.Duration) Request {
	return Request{
		Input:  seg.Input,
		Output: fileutil.PartPath(seg.Output),
		Format: ffmpeg.ContainerFormat(seg.Output),
		Plan:   plan,
		Target: target,
		Source: source,
	}
}

// verify re-probes the output and applies at most one trim/pad pass.
func (t *Transformer) verify(ctx context.Context, seg Segment, target time.Duration) (time.Duration, bool, error) {
	info, err := t.prober.Inspect(ctx, seg.Output)
	if err != nil {
		return 0, false, services.Wrap(services.ErrTransformFailed, "transform", "verify", fmt.Sprintf("slot %d output unreadable", seg.Slot), err)
	}
	if absDuration(info.Duration-target) <= t.opts.Tolerance {
		return info.Duration, false, nil
	}

	logging.WithContext(ctx, t.logger).Debug("correcting segment duration",
		logging.Millis("target_ms", target),
		logging.Millis("actual_ms", info.Duration),
	)

	staged := seg.Output + ".src"
	if err := os.Rename(seg.Output, staged); err != nil {
		return info.Duration, false, services.Wrap(services.ErrTransformFailed, "transform", "correct", "stage output", err)
	}
	defer os.Remove(staged)

	req := Request{
		Input:  staged,
		Output: fileutil.PartPath(seg.Output),
		Format: ffmpeg.ContainerFormat(seg.Output),
		Plan:   timeline.HoldPlan(),
		Target: target,
		Source: info,
	}
	var args []string
	if seg.Media == Video {
		args, err = t.video[len(t.video)-1].Args(req)
		if err != nil {
			return info.Duration, false, services.Wrap(services.ErrTransformFailed, "transform", "correct", fmt.Sprintf("slot %d", seg.Slot), err)
		}
	} else {
		args = conformArgs(req, t.opts.Audio)
	}
	if err := t.invoke(ctx, target, args, req.Output, seg.Output); err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		// Keep the uncorrected output; the residual is reported as a mismatch.
		if restoreErr := os.Rename(staged, seg.Output); restoreErr != nil {
			return 0, false, services.Wrap(services.ErrTransformFailed, "transform", "correct", fmt.Sprintf("slot %d", seg.Slot), errors.Join(err, restoreErr))
		}
		logging.WarnWithContext(logging.WithContext(ctx, t.logger), "duration correction failed; keeping uncorrected segment", "correction_failed",
			logging.Error(err),
		)
		return info.Duration, false, nil
	}

	corrected, err := t.prober.Inspect(ctx, seg.Output)
	if err != nil {
		return 0, true, services.Wrap(services.ErrTransformFailed, "transform", "verify", fmt.Sprintf("slot %d corrected output unreadable", seg.Slot), err)
	}
	return corrected.Duration, true, nil
}

// Silence writes target of canonical PCM silence to output.
func (t *Transformer) Silence(ctx context.Context, output string, target time.Duration) error {
	part := fileutil.PartPath(output)
	args := ffmpeg.SilenceArgs(part, target, t.opts.Audio.SampleRate, t.opts.Audio.Channels)
	if err := t.invoke(ctx, target, args, part, output); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransformFailed, "transform", "silence", output, err)
	}
	return nil
}

// invoke runs ffmpeg with a per-call timeout and commits part onto final.
func (t *Transformer) invoke(ctx context.Context, clip time.Duration, args []string, part, final string) error {
	timeout := t.timeout(clip)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.run(callCtx, t.opts.FFmpeg, args...); err != nil {
		fileutil.Discard(part)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %w", services.ErrTimeout, timeout, err)
		}
		return err
	}
	if _, err := os.Stat(part); err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	return fileutil.Commit(part, final)
}

func (t *Transformer) timeout(clip time.Duration) time.Duration {
	scaled := time.Duration(t.opts.TimeoutPerSecond * clip.Seconds() * float64(time.Second))
	if scaled > t.opts.TimeoutFloor {
		return scaled
	}
	return t.opts.TimeoutFloor
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
