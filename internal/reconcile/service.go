package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"dubsync/internal/assemble"
	"dubsync/internal/config"
	"dubsync/internal/history"
	"dubsync/internal/logging"
	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/probe"
	"dubsync/internal/services"
	"dubsync/internal/srt"
	"dubsync/internal/timeline"
	"dubsync/internal/transform"
)

// Prober reports media facts for a file.
type Prober interface {
	Inspect(ctx context.Context, path string) (probe.Info, error)
}

// ClipInfo is the probe outcome for one slot.
type ClipInfo struct {
	Slot int
	Path string
	Info probe.Info
	// Silent marks a slot rendered as silence of its window; Reason says why.
	Silent bool
	Reason string
}

// Layout is the planning result: probed clips and the adjusted timeline.
type Layout struct {
	Job        Job
	Clips      []ClipInfo
	Adjust     timeline.Result
	Unused     []string
	Duplicates []string
}

// Service runs reconciliation jobs.
type Service struct {
	cfg     *config.Config
	prober  Prober
	history *history.Store
	run     ffmpeg.Runner
	logger  *slog.Logger
}

// NewService wires a Service. store may be nil to skip the history ledger.
func NewService(cfg *config.Config, prober Prober, store *history.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{cfg: cfg, prober: prober, history: store, logger: logger}
}

// WithCommandRunner injects the ffmpeg runner used by every stage.
func (s *Service) WithCommandRunner(r ffmpeg.Runner) {
	if s != nil && r != nil {
		s.run = r
	}
}

// Prepare parses the subtitle track and snapshots the job.
func (s *Service) Prepare(req Request) (Job, error) {
	if strings.TrimSpace(req.Subtitle) == "" {
		return Job{}, services.Wrap(services.ErrValidation, "reconcile", "request", "subtitle path is required", nil)
	}
	if strings.TrimSpace(req.ClipDir) == "" && len(req.Clips) == 0 {
		return Job{}, services.Wrap(services.ErrValidation, "reconcile", "request", "a clip directory or clip list is required", nil)
	}
	// Segments are PCM and concatenated by stream copy, so the track stays WAV.
	if out := strings.TrimSpace(req.Output); out != "" && !strings.EqualFold(filepath.Ext(out), ".wav") {
		return Job{}, services.Wrap(services.ErrValidation, "reconcile", "request",
			fmt.Sprintf("output %s must be a .wav file; use --video to produce a muxed deliverable", out), nil)
	}
	cues, err := srt.ParseFile(req.Subtitle)
	if err != nil {
		return Job{}, err
	}
	slots := srt.Slots(cues)
	if err := timeline.ValidateSlots(slots); err != nil {
		return Job{}, err
	}
	return NewJob(s.cfg, req, slots), nil
}

// Plan probes the job's clips and runs the adjuster without rendering.
func (s *Service) Plan(ctx context.Context, job Job) (*Layout, error) {
	ctx = services.WithJobID(ctx, job.ID)
	return s.plan(ctx, job, s.logger)
}

// Run executes a whole job and returns its report. A report is returned
// alongside a nil error even when verification ends in warn.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	job, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}
	ctx = services.WithJobID(ctx, job.ID)

	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "workdir", job.WorkDir, err)
	}
	lock := flock.New(job.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire work directory lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "reconcile", "lock",
			fmt.Sprintf("work directory %s is in use by another job", job.WorkDir), nil)
	}
	defer func() { _ = lock.Unlock() }()

	logger := s.logger
	var logPath string
	if job.LogDir != "" {
		teed, path, closeLog, logErr := logging.WithJobLog(logger, job.LogDir, job.ID, s.cfg.Logging.Level)
		if logErr != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "per-job log unavailable", "job_log_unavailable",
				logging.Error(logErr),
				logging.String(logging.FieldImpact, "job output is only written to the main log"),
			)
		} else {
			defer func() { _ = closeLog() }()
			logger, logPath = teed, path
		}
	}

	started := time.Now()
	report, err := s.execute(ctx, job, logger)
	if report != nil {
		report.Outputs.Log = logPath
	}
	s.record(ctx, job, started, report, err, logger)
	return report, err
}

func (s *Service) execute(ctx context.Context, job Job, logger *slog.Logger) (*Report, error) {
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "reconcile"))
	started := time.Now().UTC()
	log.Info("reconciliation started",
		logging.String("subtitle", job.Subtitle),
		logging.Int("slots", len(job.Slots)),
		logging.Int("workers", job.Workers),
		logging.String("work_dir", job.WorkDir),
	)

	layout, err := s.plan(ctx, job, logger)
	if err != nil {
		return nil, err
	}

	tr := transform.New(transform.OptionsFromConfig(s.cfg), s.prober, logger)
	asm := assemble.New(assemble.OptionsFromConfig(s.cfg, job.WorkDir), s.prober, logger)
	if s.run != nil {
		tr.WithCommandRunner(s.run)
		asm.WithCommandRunner(s.run)
	}

	segments, results, err := s.render(ctx, job, layout, tr, logger)
	if err != nil {
		return nil, err
	}

	ctx = services.WithStage(ctx, "assemble")
	track, verification, err := asm.Assemble(ctx, job.Output, layout.Adjust.Slots, segments)
	if err != nil {
		return nil, err
	}

	report := &Report{
		JobID:        job.ID,
		Subtitle:     job.Subtitle,
		StartedAt:    started,
		Strategy:     layout.Adjust.Strategy,
		SpeedupRatio: layout.Adjust.SpeedupRatio,
		Verification: verification,
		Outputs: Outputs{
			Track:     track.Path,
			Subtitles: job.SubtitlePath(),
			Report:    job.ReportPath(),
		},
		Slots: slotReports(layout, segments, results),
	}

	adjusted := make([]timeline.Slot, len(layout.Adjust.Slots))
	for i, slot := range layout.Adjust.Slots {
		adjusted[i] = slot.Slot
	}
	if err := srt.WriteFile(job.SubtitlePath(), adjusted); err != nil {
		return nil, fmt.Errorf("export adjusted subtitles: %w", err)
	}

	if job.Video != "" {
		plan, err := s.video(ctx, job, tr, asm, track, logger)
		if err != nil {
			return nil, err
		}
		report.VideoPlan = &plan
		report.Outputs.Video = job.VideoOutputPath()
	}

	report.FinishedAt = time.Now().UTC()
	if err := WriteReport(job.ReportPath(), report); err != nil {
		return nil, err
	}

	log.Info("reconciliation finished",
		logging.String("status", string(verification.Status)),
		logging.Millis("target_ms", verification.TargetTotal),
		logging.Millis("actual_ms", verification.ActualTotal),
		logging.Millis("diff_ms", verification.Diff),
		logging.String("track", track.Path),
		logging.Duration("elapsed", report.FinishedAt.Sub(started)),
	)
	return report, nil
}

func (s *Service) plan(ctx context.Context, job Job, logger *slog.Logger) (*Layout, error) {
	ctx = services.WithStage(ctx, "probe")
	component := logging.NewComponentLogger(logger, "reconcile")
	log := logging.WithContext(ctx, component)

	var (
		paths      map[int]string
		duplicates []string
		err        error
	)
	if len(job.Clips) > 0 {
		paths, err = clipsFromList(job.Clips, len(job.Slots))
	} else {
		paths, duplicates, err = DiscoverClips(job.ClipDir)
	}
	if err != nil {
		return nil, err
	}
	for _, dup := range duplicates {
		logging.WarnWithContext(log, "duplicate clip for slot ignored", "duplicate_clip",
			logging.String("path", dup),
			logging.String(logging.FieldImpact, "the lexically first clip for the slot is used"),
			logging.String(logging.FieldErrorHint, "keep one clip per slot index"),
		)
	}

	clips := make([]ClipInfo, len(job.Slots))
	err = forEach(ctx, job.Workers, len(job.Slots), func(ctx context.Context, i int) error {
		slot := job.Slots[i]
		clip := ClipInfo{Slot: slot.Index, Path: paths[slot.Index]}
		defer func() { clips[i] = clip }()
		if clip.Path == "" {
			clip.Silent, clip.Reason = true, "no clip"
			return nil
		}
		info, err := s.prober.Inspect(services.WithSlot(ctx, slot.Index), clip.Path)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			clip.Silent, clip.Reason = true, err.Error()
			logging.WarnWithContext(logging.WithContext(services.WithSlot(ctx, slot.Index), component), "clip unreadable; slot will be silent", "clip_probe_failed",
				logging.String("path", clip.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "slot is filled with silence of its window"),
			)
		case info.Duration <= 0:
			clip.Silent, clip.Reason = true, "clip has no duration"
		default:
			clip.Info = info
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var extra []int
	for index := range paths {
		if index > len(job.Slots) {
			extra = append(extra, index)
		}
	}
	slices.Sort(extra)
	unused := make([]string, 0, len(extra))
	for _, index := range extra {
		unused = append(unused, paths[index])
	}
	if len(unused) > 0 {
		logging.WarnWithContext(log, "clips without a matching slot", "unused_clips",
			logging.Int("count", len(unused)),
			logging.String(logging.FieldImpact, "those clips are not part of the track"),
			logging.String(logging.FieldErrorHint, "check that the subtitle file matches the clip set"),
		)
	}

	durations := make([]time.Duration, len(clips))
	for i, clip := range clips {
		if clip.Silent {
			durations[i] = job.Slots[i].Window()
			continue
		}
		durations[i] = clip.Info.Duration
	}
	result, err := timeline.Adjust(job.Slots, durations, job.Adjust)
	if err != nil {
		return nil, err
	}

	log.Info("timeline adjusted", logging.Args(append(
		logging.DecisionAttrs("strategy", string(result.Strategy), strategyReason(result)),
		logging.Millis("target_ms", result.TargetTotal),
		logging.Millis("actual_ms", result.ActualTotal),
		logging.Millis("diff_ms", result.Diff),
		logging.Int("retimed", result.Retimed()),
	)...)...)
	if job.WarnSpeedup > 0 && result.SpeedupRatio > job.WarnSpeedup {
		logging.WarnWithContext(log, "uniform speedup exceeds the comfortable rate", "speedup_high",
			logging.Float64("speedup_ratio", result.SpeedupRatio),
			logging.Float64("warn_speedup", job.WarnSpeedup),
			logging.String(logging.FieldImpact, "speech may sound rushed"),
			logging.String(logging.FieldErrorHint, "shorten the synthesized text or allow timeline.preserve_total = false"),
		)
	}

	return &Layout{Job: job, Clips: clips, Adjust: result, Unused: unused, Duplicates: duplicates}, nil
}

func (s *Service) render(ctx context.Context, job Job, layout *Layout, tr *transform.Transformer, logger *slog.Logger) ([]assemble.Segment, []*transform.Result, error) {
	ctx = services.WithStage(ctx, "transform")
	log := logging.NewComponentLogger(logger, "reconcile")
	slots := layout.Adjust.Slots
	segments := make([]assemble.Segment, len(slots))
	results := make([]*transform.Result, len(slots))

	err := forEach(ctx, job.Workers, len(slots), func(ctx context.Context, i int) error {
		slot := slots[i]
		clip := layout.Clips[i]
		segments[i] = assemble.Segment{Slot: slot.Index}
		// A zero-length window has nothing to render; the assembler skips it.
		if clip.Silent || slot.Window() <= 0 {
			return nil
		}
		seg := transform.Segment{
			Slot:   slot.Index,
			Media:  transform.Audio,
			Input:  clip.Path,
			Output: job.SegmentPath(slot.Index),
			Source: clip.Info,
		}
		res, err := tr.Transform(ctx, seg, slot.Plan, slot.Window())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if job.FailFast || services.IsFatal(err) {
				return err
			}
			logging.WarnWithContext(logging.WithContext(services.WithSlot(ctx, slot.Index), log), "segment failed; substituting silence", "segment_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "slot is silent in the final track"),
				logging.String(logging.FieldErrorHint, "set transform.fail_fast = true to abort instead"),
			)
			segments[i].Failure = err
			return nil
		}
		segments[i].Path = res.Output
		segments[i].Duration = res.Duration
		results[i] = &res
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return segments, results, nil
}

func (s *Service) video(ctx context.Context, job Job, tr *transform.Transformer, asm *assemble.Assembler, track assemble.Track, logger *slog.Logger) (timeline.Plan, error) {
	ctx = services.WithStage(ctx, "video")
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "reconcile"))

	info, err := s.prober.Inspect(ctx, job.Video)
	if err != nil {
		return timeline.Plan{}, err
	}
	if !info.HasVideo() {
		return timeline.Plan{}, services.Wrap(services.ErrValidation, "reconcile", "video", job.Video+" has no video stream", nil)
	}

	plan := timeline.PlanVideoStretch(info.Duration, track.Duration, job.Adjust.Tolerance)
	log.Info("video plan decided", logging.Args(append(
		logging.DecisionAttrs("video_stretch", plan.String(), "stretch video to the assembled track"),
		logging.Millis("video_ms", info.Duration),
		logging.Millis("track_ms", track.Duration),
	)...)...)

	mode, err := assemble.ParseMuxMode(job.MuxMode)
	if err != nil {
		return plan, err
	}
	if mode == assemble.MuxMix && info.Audio == nil {
		logging.WarnWithContext(log, "video has no audio to mix; replacing instead", "mix_without_audio",
			logging.String("video", job.Video),
			logging.String(logging.FieldImpact, "deliverable carries only the dubbed track"),
		)
		mode = assemble.MuxReplace
	}
	opts := assemble.MuxOptions{Mode: mode, Original: job.Video, OriginalVolume: job.MixVolume}
	if job.EmbedSubtitles {
		opts.Subtitles = job.SubtitlePath()
	}

	source := job.Video
	if plan.IsRateChange() {
		stretched := filepath.Join(job.WorkDir, "video_stretched"+filepath.Ext(job.VideoOutputPath()))
		seg := transform.Segment{Media: transform.Video, Input: job.Video, Output: stretched, Source: info}
		if _, err := tr.Transform(ctx, seg, plan, track.Duration); err != nil {
			return plan, err
		}
		source = stretched
		// The stretched copy has no audio; the source audio follows at the same rate.
		opts.OriginalTempo = plan.Ratio
	}
	if err := asm.Mux(ctx, source, track, job.VideoOutputPath(), opts); err != nil {
		return plan, err
	}
	return plan, nil
}

func (s *Service) record(ctx context.Context, job Job, started time.Time, report *Report, runErr error, logger *slog.Logger) {
	if s.history == nil {
		return
	}
	run := history.Run{
		JobID:        job.ID,
		StartedAt:    started,
		FinishedAt:   time.Now(),
		SubtitlePath: job.Subtitle,
		OutputPath:   job.Output,
		SlotCount:    len(job.Slots),
	}
	if report != nil {
		run.Strategy = string(report.Strategy)
		run.FailureCount = len(report.Verification.SegmentFailures)
		run.Target = report.Verification.TargetTotal
		run.Actual = report.Verification.ActualTotal
		run.Diff = report.Verification.Diff
		run.Status = string(report.Verification.Status)
		run.Corrected = report.Verification.Corrected
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	}
	if err := s.history.Record(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "failed to record run history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run is missing from `dubsync history`"),
		)
	}
}

func strategyReason(result timeline.Result) string {
	switch result.Strategy {
	case timeline.StrategyCompress:
		if result.SpeedupRatio > 0 {
			return "clips exceed the target beyond gap slack; uniform speedup"
		}
		return "excess absorbed by shrinking gaps"
	case timeline.StrategyExpand:
		return "clips fall short; gaps widened"
	default:
		if result.Diff == 0 {
			return "clips fit the target"
		}
		return "difference within tolerance"
	}
}

func slotReports(layout *Layout, segments []assemble.Segment, results []*transform.Result) []SlotReport {
	out := make([]SlotReport, len(layout.Adjust.Slots))
	for i, slot := range layout.Adjust.Slots {
		clip := layout.Clips[i]
		r := SlotReport{
			Index:   slot.Index,
			StartMS: slot.Start.Milliseconds(),
			EndMS:   slot.End.Milliseconds(),
			ClipMS:  slot.Clip.Milliseconds(),
			Plan:    slot.Plan,
			Clip:    clip.Path,
			Silent:  clip.Silent,
		}
		if res := results[i]; res != nil {
			r.Backend = res.Backend
			r.Corrected = res.Corrected
		}
		if err := segments[i].Failure; err != nil {
			r.Silent = true
			r.Failure = err.Error()
		}
		out[i] = r
	}
	return out
}

// IsWarn reports whether a finished run ended with a warning status.
func IsWarn(report *Report) bool {
	return report != nil && report.Verification.Status == assemble.StatusWarn
}
