package timeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// PlanKind tags the transformation applied to one segment.
type PlanKind int

const (
	// Hold keeps the playback rate; the segment is padded or trimmed to its window.
	Hold PlanKind = iota
	// Speedup plays the segment faster (ratio > 1).
	Speedup
	// Slowdown plays the segment slower (ratio < 1).
	Slowdown
)

func (k PlanKind) String() string {
	switch k {
	case Speedup:
		return "speedup"
	case Slowdown:
		return "slowdown"
	default:
		return "hold"
	}
}

// Plan is the transformation for one segment. Ratio is original/adjusted
// duration and is 1 for Hold.
type Plan struct {
	Kind  PlanKind
	Ratio float64
}

// HoldPlan returns a plan that keeps the playback rate.
func HoldPlan() Plan { return Plan{Kind: Hold, Ratio: 1} }

// RatePlan returns the plan that turns a segment of length original into one
// of length adjusted.
func RatePlan(original, adjusted time.Duration) Plan {
	if original <= 0 || adjusted <= 0 || original == adjusted {
		return HoldPlan()
	}
	ratio := float64(original) / float64(adjusted)
	if ratio > 1 {
		return Plan{Kind: Speedup, Ratio: ratio}
	}
	return Plan{Kind: Slowdown, Ratio: ratio}
}

// IsRateChange reports whether the plan alters playback speed.
func (p Plan) IsRateChange() bool {
	return p.Kind != Hold && p.Ratio > 0 && p.Ratio != 1
}

// Stretch returns the time stretch factor (adjusted/original), the inverse of Ratio.
func (p Plan) Stretch() float64 {
	if !p.IsRateChange() {
		return 1
	}
	return 1 / p.Ratio
}

func (p Plan) String() string {
	if !p.IsRateChange() {
		return Hold.String()
	}
	return fmt.Sprintf("%s(%.4f)", p.Kind, p.Ratio)
}

type planJSON struct {
	Kind  string  `json:"kind"`
	Ratio float64 `json:"ratio"`
}

func (p Plan) MarshalJSON() ([]byte, error) {
	ratio := p.Ratio
	if !p.IsRateChange() {
		ratio = 1
	}
	return json.Marshal(planJSON{Kind: p.Kind.String(), Ratio: ratio})
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	var raw planJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "speedup":
		p.Kind = Speedup
	case "slowdown":
		p.Kind = Slowdown
	case "hold", "":
		p.Kind = Hold
	default:
		return fmt.Errorf("unknown plan kind %q", raw.Kind)
	}
	p.Ratio = raw.Ratio
	if p.Kind == Hold || p.Ratio <= 0 {
		p.Ratio = 1
	}
	return nil
}

// PlanVideoStretch decides how a video track of length video is fitted to a
// reference track. A reference longer than the video by more than tolerance
// yields Slowdown(video/reference); anything else is held and trimmed.
func PlanVideoStretch(video, reference, tolerance time.Duration) Plan {
	if video <= 0 || reference <= 0 {
		return HoldPlan()
	}
	if reference-video > tolerance {
		return Plan{Kind: Slowdown, Ratio: float64(video) / float64(reference)}
	}
	return HoldPlan()
}
