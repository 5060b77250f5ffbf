package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"dubsync/internal/media/ffmpeg"
)

// OutputFunc runs a command and returns its stdout.
type OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

var commandOutput OutputFunc = ffmpeg.Output

// Capabilities lists the filters and encoders an ffmpeg build provides.
type Capabilities struct {
	Filters  map[string]bool
	Encoders map[string]bool
}

// HasFilter reports whether the named filter is available.
func (c Capabilities) HasFilter(name string) bool { return c.Filters[name] }

// HasEncoder reports whether the named encoder is available.
func (c Capabilities) HasEncoder(name string) bool { return c.Encoders[name] }

// DetectFFmpeg queries binary for its filters and encoders.
func DetectFFmpeg(ctx context.Context, binary string) (Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	filters, err := commandOutput(ctx, binary, "-hide_banner", "-filters")
	if err != nil {
		return Capabilities{}, fmt.Errorf("list ffmpeg filters: %w", err)
	}
	encoders, err := commandOutput(ctx, binary, "-hide_banner", "-encoders")
	if err != nil {
		return Capabilities{}, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	return Capabilities{
		Filters:  parseListing(filters, isFilterLine),
		Encoders: parseListing(encoders, isEncoderLine),
	}, nil
}

// OrderAudioBackends drops configured backends whose filter the build lacks.
// When nothing survives, atempo is returned since it ships with every build.
func OrderAudioBackends(configured []string, caps Capabilities) []string {
	out := make([]string, 0, len(configured))
	for _, name := range configured {
		if caps.HasFilter(name) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return []string{"atempo"}
	}
	return out
}

// Listing lines look like " T.. atempo  A->A  Adjust audio tempo." for
// filters and " V....D libx264  libx264 H.264 ..." for encoders.
func parseListing(data []byte, accept func(fields []string) bool) map[string]bool {
	names := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !accept(fields) {
			continue
		}
		names[fields[1]] = true
	}
	return names
}

func isFilterLine(fields []string) bool {
	return strings.Contains(fields[2], "->")
}

func isEncoderLine(fields []string) bool {
	flags := fields[0]
	if len(flags) != 6 || fields[1] == "=" {
		return false
	}
	switch flags[0] {
	case 'V', 'A', 'S':
		return true
	default:
		return false
	}
}
