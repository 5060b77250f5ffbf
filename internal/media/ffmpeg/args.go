package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BaseArgs are prepended to every invocation.
var BaseArgs = []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error"}

// Args returns BaseArgs followed by extra.
func Args(extra ...string) []string {
	out := make([]string, 0, len(BaseArgs)+len(extra))
	out = append(out, BaseArgs...)
	return append(out, extra...)
}

// FormatNumber renders v as a plain decimal with at most six fractional
// digits and no trailing zeros ("20", "1.5", "0.833333").
func FormatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// Seconds renders d in seconds with millisecond precision.
func Seconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Round(time.Millisecond).Milliseconds()
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

// AtempoFactors splits a tempo ratio into factors that each lie in
// [0.5, 2.0], the range the atempo filter accepts.
func AtempoFactors(ratio float64) []float64 {
	if ratio <= 0 {
		return []float64{1}
	}
	var factors []float64
	for ratio > 2.0 {
		factors = append(factors, 2.0)
		ratio /= 2.0
	}
	for ratio < 0.5 {
		factors = append(factors, 0.5)
		ratio /= 0.5
	}
	return append(factors, ratio)
}

// AtempoChain renders AtempoFactors as a filter chain.
func AtempoChain(ratio float64) string {
	factors := AtempoFactors(ratio)
	parts := make([]string, len(factors))
	for i, f := range factors {
		parts[i] = "atempo=" + FormatNumber(f)
	}
	return strings.Join(parts, ",")
}

// PCMArgs are the output options for canonical 16-bit PCM WAV.
func PCMArgs(sampleRate, channels int) []string {
	return []string{"-ar", strconv.Itoa(sampleRate), "-ac", strconv.Itoa(channels), "-c:a", "pcm_s16le", "-f", "wav"}
}

// SilenceArgs builds an invocation that writes d of canonical PCM silence to output.
func SilenceArgs(output string, d time.Duration, sampleRate, channels int) []string {
	layout := "stereo"
	if channels == 1 {
		layout = "mono"
	} else if channels != 2 {
		layout = strconv.Itoa(channels) + "c"
	}
	src := fmt.Sprintf("anullsrc=r=%d:cl=%s", sampleRate, layout)
	args := Args("-f", "lavfi", "-i", src, "-t", Seconds(d))
	args = append(args, PCMArgs(sampleRate, channels)...)
	return append(args, output)
}

// ContainerFormat returns the muxer name for path's extension. Part files
// carry no usable extension, so callers pass the final path.
func ContainerFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "wav"
	case ".mp4", ".m4v":
		return "mp4"
	case ".mov":
		return "mov"
	case ".webm":
		return "webm"
	case ".m4a":
		return "ipod"
	default:
		return "matroska"
	}
}
