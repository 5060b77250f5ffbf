package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
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

// Segment is one rendered slot handed to the assembler. An empty Path means
// the slot is filled with silence; Failure records why, when the silence
// replaces a segment that could not be transformed.
type Segment struct {
	Slot     int
	Path     string
	Duration time.Duration
	Failure  error
}

// Track is the concatenated output.
type Track struct {
	Path     string
	Duration time.Duration
	Pieces   int
}

// Options configures an Assembler.
type Options struct {
	FFmpeg     string
	WorkDir    string
	SampleRate int
	Channels   int
	// Tolerance bounds the final |actual - target| before a tail correction.
	Tolerance        time.Duration
	TimeoutFloor     time.Duration
	TimeoutPerSecond float64
}

// OptionsFromConfig maps configuration onto assembler options for workDir.
func OptionsFromConfig(cfg *config.Config, workDir string) Options {
	return Options{
		FFmpeg:           cfg.FFmpegBinary(),
		WorkDir:          workDir,
		SampleRate:       cfg.Transform.AudioSampleRate,
		Channels:         cfg.Transform.AudioChannels,
		Tolerance:        cfg.Tolerance(),
		TimeoutFloor:     time.Duration(cfg.Transform.TimeoutFloorSeconds) * time.Second,
		TimeoutPerSecond: float64(cfg.Transform.TimeoutPerClipSecond),
	}
}

// Assembler joins segments in slot order. It runs single-threaded after all
// transforms have finished.
type Assembler struct {
	opts   Options
	prober Prober
	run    ffmpeg.Runner
	logger *slog.Logger
}

// New constructs an Assembler.
func New(opts Options, prober Prober, logger *slog.Logger) *Assembler {
	if strings.TrimSpace(opts.FFmpeg) == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	if opts.Channels <= 0 {
		opts.Channels = 2
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = timeline.DefaultTolerance
	}
	if opts.TimeoutFloor <= 0 {
		opts.TimeoutFloor = time.Minute
	}
	return &Assembler{
		opts:   opts,
		prober: prober,
		run:    ffmpeg.Run,
		logger: logging.NewComponentLogger(logger, "assemble"),
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (a *Assembler) WithCommandRunner(r ffmpeg.Runner) {
	if a != nil && r != nil {
		a.run = r
	}
}

type piece struct {
	slot     int
	path     string
	expected time.Duration
}

// Assemble concatenates segments into output following slots.
func (a *Assembler) Assemble(ctx context.Context, output string, slots []timeline.AdjustedSlot, segments []Segment) (Track, Verification, error) {
	ctx = services.WithStage(ctx, "assemble")
	logger := logging.WithContext(ctx, a.logger)

	if len(slots) == 0 {
		return Track{}, Verification{}, services.Wrap(services.ErrValidation, "assemble", "slots", "no slots to assemble", nil)
	}
	if err := os.MkdirAll(a.opts.WorkDir, 0o755); err != nil {
		return Track{}, Verification{}, services.Wrap(services.ErrAssemblyFailed, "assemble", "workdir", a.opts.WorkDir, err)
	}

	pieces, failures, err := a.collect(ctx, slots, segments)
	if err != nil {
		return Track{}, Verification{}, err
	}
	target := slots[len(slots)-1].End

	if err := a.concat(ctx, output, pieces, target); err != nil {
		return Track{}, Verification{}, err
	}

	info, err := a.prober.Inspect(ctx, output)
	if err != nil {
		return Track{}, Verification{}, services.Wrap(services.ErrAssemblyFailed, "assemble", "verify",
			fmt.Sprintf("expected %dms", target.Milliseconds()), err)
	}
	actual := info.Duration
	corrected := false
	if absDuration(actual-target) > a.opts.Tolerance {
		logger.Info("correcting assembled track tail",
			logging.Millis("target_ms", target),
			logging.Millis("actual_ms", actual),
		)
		actual, err = a.correctTail(ctx, output, target)
		if err != nil {
			return Track{}, Verification{}, err
		}
		corrected = true
	}

	v := verify(target, actual, a.opts.Tolerance, corrected, failures)
	track := Track{Path: output, Duration: actual, Pieces: len(pieces)}
	if v.Status == StatusWarn {
		attrs := []logging.Attr{
			logging.Millis("target_ms", v.TargetTotal),
			logging.Millis("actual_ms", v.ActualTotal),
			logging.Millis("diff_ms", v.Diff),
			logging.Int("segment_failures", len(v.SegmentFailures)),
			logging.String(logging.FieldImpact, "track timing may drift from the subtitles"),
		}
		if absDuration(v.Diff) > a.opts.Tolerance {
			attrs = append(attrs, logging.Error(services.Wrap(services.ErrDurationMismatch, "assemble", "verify", "track", nil)))
		}
		logging.WarnWithContext(logger, "assembled track verification warning", "verification_warn", attrs...)
	} else {
		logger.Info("assembled track verified",
			logging.Millis("target_ms", v.TargetTotal),
			logging.Millis("actual_ms", v.ActualTotal),
			logging.Int("pieces", len(pieces)),
			logging.Bool("corrected", corrected),
		)
	}
	return track, v, nil
}

// collect lays out gap silence and segment files in slot order.
func (a *Assembler) collect(ctx context.Context, slots []timeline.AdjustedSlot, segments []Segment) ([]piece, []int, error) {
	bySlot := make(map[int]Segment, len(segments))
	for _, seg := range segments {
		bySlot[seg.Slot] = seg
	}

	var (
		pieces   []piece
		failures []int
		cursor   time.Duration
	)
	for _, slot := range slots {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if gap := slot.Start - cursor; gap > 0 {
			path := filepath.Join(a.opts.WorkDir, fmt.Sprintf("gap_%04d.wav", slot.Index))
			if err := a.silence(ctx, path, gap); err != nil {
				return nil, nil, assemblyError("gap", slot.Index, gap, 0, err)
			}
			pieces = append(pieces, piece{slot: slot.Index, path: path, expected: gap})
		}
		cursor = slot.End

		window := slot.Window()
		seg, ok := bySlot[slot.Index]
		if ok && seg.Failure != nil {
			failures = append(failures, slot.Index)
		}
		if !ok || strings.TrimSpace(seg.Path) == "" {
			if window <= 0 {
				continue
			}
			path := filepath.Join(a.opts.WorkDir, fmt.Sprintf("silence_%04d.wav", slot.Index))
			if err := a.silence(ctx, path, window); err != nil {
				return nil, nil, assemblyError("silence", slot.Index, window, 0, err)
			}
			pieces = append(pieces, piece{slot: slot.Index, path: path, expected: window})
			continue
		}
		if _, err := os.Stat(seg.Path); err != nil {
			return nil, nil, assemblyError("segment", slot.Index, window, 0, err)
		}
		pieces = append(pieces, piece{slot: slot.Index, path: seg.Path, expected: window})
	}
	return pieces, failures, nil
}

func (a *Assembler) concat(ctx context.Context, output string, pieces []piece, target time.Duration) error {
	listPath := filepath.Join(a.opts.WorkDir, "concat.txt")
	if err := writeConcatList(listPath, pieces); err != nil {
		return services.Wrap(services.ErrAssemblyFailed, "assemble", "concat list", listPath, err)
	}

	part := fileutil.PartPath(output)
	args := ffmpeg.Args("-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", "-f", ffmpeg.ContainerFormat(output), part)
	if err := a.invoke(ctx, target, args, part, output); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		last := pieces[len(pieces)-1]
		return services.Wrap(services.ErrAssemblyFailed, "assemble", "concat",
			fmt.Sprintf("%d pieces through slot %d, expected %dms", len(pieces), last.slot, target.Milliseconds()), err)
	}
	return nil
}

// correctTail pads or trims the end of output so it lasts target.
func (a *Assembler) correctTail(ctx context.Context, output string, target time.Duration) (time.Duration, error) {
	staged := output + ".src"
	if err := os.Rename(output, staged); err != nil {
		return 0, services.Wrap(services.ErrAssemblyFailed, "assemble", "correct", "stage track", err)
	}
	defer os.Remove(staged)

	part := fileutil.PartPath(output)
	args := ffmpeg.Args("-i", staged, "-af", "apad", "-t", ffmpeg.Seconds(target))
	args = append(args, ffmpeg.PCMArgs(a.opts.SampleRate, a.opts.Channels)...)
	args = append(args, part)
	if err := a.invoke(ctx, target, args, part, output); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, services.Wrap(services.ErrAssemblyFailed, "assemble", "correct",
			fmt.Sprintf("tail correction to %dms", target.Milliseconds()), err)
	}
	info, err := a.prober.Inspect(ctx, output)
	if err != nil {
		return 0, services.Wrap(services.ErrAssemblyFailed, "assemble", "verify", "corrected track", err)
	}
	return info.Duration, nil
}

func (a *Assembler) silence(ctx context.Context, path string, d time.Duration) error {
	part := fileutil.PartPath(path)
	return a.invoke(ctx, d, ffmpeg.SilenceArgs(part, d, a.opts.SampleRate, a.opts.Channels), part, path)
}

func (a *Assembler) invoke(ctx context.Context, d time.Duration, args []string, part, final string) error {
	timeout := time.Duration(a.opts.TimeoutPerSecond * d.Seconds() * float64(time.Second))
	if timeout < a.opts.TimeoutFloor {
		timeout = a.opts.TimeoutFloor
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.run(callCtx, a.opts.FFmpeg, args...); err != nil {
		fileutil.Discard(part)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %w", services.ErrTimeout, timeout, err)
		}
		return err
	}
	return fileutil.Commit(part, final)
}

func writeConcatList(path string, pieces []piece) error {
	var b strings.Builder
	for _, p := range pieces {
		abs, err := filepath.Abs(p.path)
		if err != nil {
			return err
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func assemblyError(operation string, slot int, expected, actual time.Duration, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrAssemblyFailed, "assemble", operation,
		fmt.Sprintf("slot %d: expected %dms, actual %dms", slot, expected.Milliseconds(), actual.Milliseconds()), err)
}
