package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dubsync/internal/assemble"
	"dubsync/internal/fileutil"
	"dubsync/internal/timeline"
)

// SlotReport is the per-slot line of a Report.
type SlotReport struct {
	Index     int           `json:"index"`
	StartMS   int64         `json:"start_ms"`
	EndMS     int64         `json:"end_ms"`
	ClipMS    int64         `json:"clip_ms"`
	Plan      timeline.Plan `json:"plan"`
	Clip      string        `json:"clip,omitempty"`
	Backend   string        `json:"backend,omitempty"`
	Corrected bool          `json:"corrected,omitempty"`
	Silent    bool          `json:"silent,omitempty"`
	Failure   string        `json:"failure,omitempty"`
}

// Outputs lists the files a run produced.
type Outputs struct {
	Track     string `json:"track"`
	Video     string `json:"video,omitempty"`
	Subtitles string `json:"subtitles"`
	Report    string `json:"report"`
	Log       string `json:"log,omitempty"`
}

// Report is the machine-readable summary of a finished run.
type Report struct {
	JobID        string                `json:"job_id"`
	Subtitle     string                `json:"subtitle"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   time.Time             `json:"finished_at"`
	Strategy     timeline.Strategy     `json:"strategy"`
	SpeedupRatio float64               `json:"speedup_ratio,omitempty"`
	VideoPlan    *timeline.Plan        `json:"video_plan,omitempty"`
	Verification assemble.Verification `json:"verification"`
	Outputs      Outputs               `json:"outputs"`
	Slots        []SlotReport          `json:"slots"`
}

// WriteReport stores report as indented JSON at path.
func WriteReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	part := fileutil.PartPath(path)
	if err := os.WriteFile(part, append(data, '\n'), 0o644); err != nil {
		fileutil.Discard(part)
		return fmt.Errorf("write report: %w", err)
	}
	return fileutil.Commit(part, path)
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &report, nil
}
