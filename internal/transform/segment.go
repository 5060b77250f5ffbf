package transform

import (
	"time"

	"dubsync/internal/probe"
	"dubsync/internal/timeline"
)

// Media selects the audio or video code path.
type Media int

const (
	Audio Media = iota
	Video
)

func (m Media) String() string {
	if m == Video {
		return "video"
	}
	return "audio"
}

// Segment is one unit of work.
type Segment struct {
	Slot  int
	Media Media
	// Input is the source clip. Empty means the slot is silent.
	Input  string
	Output string
	// Source is the probe result for Input. It is probed on demand when its
	// Duration is zero.
	Source probe.Info
}

// Request is what a Backend needs to build one ffmpeg invocation.
type Request struct {
	Input  string
	Output string
	// Format is the ffmpeg muxer for Output.
	Format string
	Plan   timeline.Plan
	Target time.Duration
	Source probe.Info
}

// Result describes a finished segment.
type Result struct {
	Slot     int           `json:"slot"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
	Target   time.Duration `json:"target"`
	Plan     timeline.Plan `json:"plan"`
	Backend  string        `json:"backend"`
	// Corrected is set when the post-check applied a trim/pad pass.
	Corrected bool `json:"corrected,omitempty"`
	// Residual is the remaining |duration-target| when it is still outside
	// tolerance after correction.
	Residual time.Duration `json:"residual,omitempty"`
}
