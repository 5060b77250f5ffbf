package reconcile

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubsync/internal/config"
	"dubsync/internal/fileutil"
	"dubsync/internal/textutil"
	"dubsync/internal/timeline"
	"dubsync/internal/workdir"
)

// Request describes what to reconcile.
type Request struct {
	// Subtitle is the SRT that defines the slots.
	Subtitle string
	// ClipDir holds clips named by 1-based slot index. Ignored when Clips is set.
	ClipDir string
	// Clips lists one clip per slot in order. Empty entries mark silent slots.
	Clips []string
	// Video is an optional video track to stretch and mux.
	Video string
	// Output overrides the assembled audio track location.
	Output string
	// WorkDir overrides the per-job scratch directory.
	WorkDir string
}

// Job is the immutable context of one run.
type Job struct {
	ID        string
	Name      string
	Subtitle  string
	ClipDir   string
	Clips     []string
	Video     string
	WorkDir   string
	OutputDir string
	LogDir    string
	Output    string
	Slots     []timeline.Slot
	Adjust    timeline.Options
	Workers   int
	FailFast  bool
	// WarnSpeedup is the uniform speedup above which a warning is logged.
	WarnSpeedup float64
	// MuxMode, MixVolume, and EmbedSubtitles shape the video deliverable.
	MuxMode        string
	MixVolume      float64
	EmbedSubtitles bool
	CreatedAt   time.Time
}

// NewJob snapshots cfg and req into a Job.
func NewJob(cfg *config.Config, req Request, slots []timeline.Slot) Job {
	name := textutil.StemName(req.Subtitle, "dubsync")
	workDir := strings.TrimSpace(req.WorkDir)
	if workDir == "" {
		workDir = filepath.Join(cfg.Paths.WorkDir, name)
	}
	output := strings.TrimSpace(req.Output)
	if output == "" {
		output = filepath.Join(cfg.Paths.OutputDir, name+".dubbed.wav")
	}
	workers := cfg.Transform.Workers
	if workers < 1 {
		workers = 1
	}
	return Job{
		ID:        uuid.NewString(),
		Name:      name,
		Subtitle:  req.Subtitle,
		ClipDir:   req.ClipDir,
		Clips:     append([]string(nil), req.Clips...),
		Video:     strings.TrimSpace(req.Video),
		WorkDir:   workDir,
		OutputDir: filepath.Dir(output),
		LogDir:    cfg.Paths.LogDir,
		Output:    output,
		Slots:     append([]timeline.Slot(nil), slots...),
		Adjust: timeline.Options{
			PreserveTotal: cfg.Timeline.PreserveTotal,
			Tolerance:     cfg.Tolerance(),
			MinClip:       cfg.MinClip(),
		},
		Workers:        workers,
		FailFast:       cfg.Transform.FailFast,
		WarnSpeedup:    cfg.Timeline.WarnSpeedup,
		MuxMode:        cfg.Mux.Mode,
		MixVolume:      cfg.Mux.OriginalVolume,
		EmbedSubtitles: cfg.Mux.EmbedSubtitles,
		CreatedAt:      time.Now().UTC(),
	}
}

// ShortID returns the first eight characters of the job ID.
func (j Job) ShortID() string {
	if len(j.ID) > 8 {
		return j.ID[:8]
	}
	return j.ID
}

// SegmentPath returns the rendered audio path for slot index.
func (j Job) SegmentPath(index int) string {
	return filepath.Join(j.WorkDir, fileutil.SlotFileName(index, ".wav"))
}

// SubtitlePath returns the adjusted SRT location.
func (j Job) SubtitlePath() string {
	return filepath.Join(j.OutputDir, j.Name+".adjusted.srt")
}

// ReportPath returns the JSON report location.
func (j Job) ReportPath() string {
	return filepath.Join(j.OutputDir, j.Name+".report.json")
}

// VideoOutputPath returns the muxed deliverable location, or "" without video.
func (j Job) VideoOutputPath() string {
	if j.Video == "" {
		return ""
	}
	ext := filepath.Ext(j.Video)
	if ext == "" {
		ext = ".mkv"
	}
	return filepath.Join(j.OutputDir, j.Name+".dubbed"+ext)
}

// LockPath returns the work directory lock file.
func (j Job) LockPath() string {
	return filepath.Join(j.WorkDir, workdir.LockName)
}
