package assemble

import (
	"encoding/json"
	"time"
)

// Status summarises a Verification.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
)

// Verification is the outcome of the global duration check.
type Verification struct {
	TargetTotal     time.Duration
	ActualTotal     time.Duration
	Diff            time.Duration
	Status          Status
	Corrected       bool
	SegmentFailures []int
}

type verificationJSON struct {
	TargetTotalMS   int64  `json:"target_total_ms"`
	ActualTotalMS   int64  `json:"actual_total_ms"`
	DiffMS          int64  `json:"diff_ms"`
	Status          Status `json:"status"`
	Corrected       bool   `json:"corrected"`
	SegmentFailures []int  `json:"segment_failures"`
}

// MarshalJSON renders durations as whole milliseconds.
func (v Verification) MarshalJSON() ([]byte, error) {
	failures := v.SegmentFailures
	if failures == nil {
		failures = []int{}
	}
	return json.Marshal(verificationJSON{
		TargetTotalMS:   v.TargetTotal.Milliseconds(),
		ActualTotalMS:   v.ActualTotal.Milliseconds(),
		DiffMS:          v.Diff.Milliseconds(),
		Status:          v.Status,
		Corrected:       v.Corrected,
		SegmentFailures: failures,
	})
}

// UnmarshalJSON reverses MarshalJSON.
func (v *Verification) UnmarshalJSON(data []byte) error {
	var raw verificationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Verification{
		TargetTotal:     time.Duration(raw.TargetTotalMS) * time.Millisecond,
		ActualTotal:     time.Duration(raw.ActualTotalMS) * time.Millisecond,
		Diff:            time.Duration(raw.DiffMS) * time.Millisecond,
		Status:          raw.Status,
		Corrected:       raw.Corrected,
		SegmentFailures: raw.SegmentFailures,
	}
	return nil
}

func verify(target, actual, tolerance time.Duration, corrected bool, failures []int) Verification {
	v := Verification{
		TargetTotal:     target,
		ActualTotal:     actual,
		Diff:            actual - target,
		Status:          StatusOK,
		Corrected:       corrected,
		SegmentFailures: failures,
	}
	if absDuration(v.Diff) > tolerance || len(failures) > 0 {
		v.Status = StatusWarn
	}
	return v
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
