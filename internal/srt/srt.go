// Package srt reads SubRip subtitle files into timeline slots and writes
// adjusted slots back out.
package srt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"dubsync/internal/services"
	"dubsync/internal/timeline"
)

// Cue is one subtitle entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// ParseFile reads and parses the SRT file at path.
func ParseFile(path string) ([]Cue, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse decodes SRT content. UTF-8 and UTF-16 input with a BOM are accepted,
// line endings may be CRLF, and the millisecond separator may be a comma or a
// dot. Cue text is NFC-normalized. Blocks without a valid timing line are
// skipped; content that yields no cues at all is an error.
func Parse(r io.Reader) ([]Cue, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))

	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}

	var cues []Cue
	for _, block := range splitBlocks(content) {
		cue, ok := parseBlock(block)
		if !ok {
			continue
		}
		cues = append(cues, cue)
	}
	if len(cues) == 0 {
		return nil, services.Wrap(services.ErrValidation, "srt", "parse", "no valid cues found", nil)
	}
	return cues, nil
}

func splitBlocks(content string) []string {
	var blocks []string
	var current []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func parseBlock(block string) (Cue, bool) {
	lines := strings.Split(block, "\n")
	var cue Cue
	timing := 0
	if !strings.Contains(lines[0], "-->") {
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil || len(lines) < 2 {
			return Cue{}, false
		}
		cue.Index = index
		timing = 1
	}
	startText, endText, found := strings.Cut(lines[timing], "-->")
	if !found {
		return Cue{}, false
	}
	// Drop positioning hints such as "X1:100 X2:200".
	if fields := strings.Fields(endText); len(fields) > 0 {
		endText = fields[0]
	}
	start, err := ParseTimestamp(startText)
	if err != nil {
		return Cue{}, false
	}
	end, err := ParseTimestamp(endText)
	if err != nil {
		return Cue{}, false
	}
	cue.Start = start
	cue.End = end
	cue.Text = norm.NFC.String(strings.TrimSpace(strings.Join(lines[timing+1:], "\n")))
	return cue, true
}

// ParseTimestamp parses "HH:MM:SS,mmm" (or with a dot separator).
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	clock, fraction, _ := strings.Cut(value, ",")
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	if errH != nil || errM != nil || errS != nil || hours < 0 || minutes < 0 || seconds < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var millis int
	if fraction != "" {
		// Normalize to three digits so ",5" means 500ms.
		if len(fraction) > 3 {
			fraction = fraction[:3]
		}
		for len(fraction) < 3 {
			fraction += "0"
		}
		ms, err := strconv.Atoi(fraction)
		if err != nil || ms < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		millis = ms
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

// FormatTimestamp renders d as "HH:MM:SS,mmm", rounded to the millisecond.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Round(time.Millisecond).Milliseconds()
	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	seconds := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// Slots converts cues into timeline slots, renumbering them 1..n in file order.
func Slots(cues []Cue) []timeline.Slot {
	slots := make([]timeline.Slot, len(cues))
	for i, cue := range cues {
		slots[i] = timeline.Slot{Index: i + 1, Start: cue.Start, End: cue.End, Text: cue.Text}
	}
	return slots
}

// Write renders slots as SRT.
func Write(w io.Writer, slots []timeline.Slot) error {
	bw := bufio.NewWriter(w)
	for i, slot := range slots {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n", i+1, FormatTimestamp(slot.Start), FormatTimestamp(slot.End))
		if text := strings.TrimSpace(slot.Text); text != "" {
			bw.WriteString(text)
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

// WriteFile writes slots to path through a temporary file renamed into place.
func WriteFile(path string, slots []timeline.Slot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create srt directory: %w", err)
	}
	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create srt: %w", err)
	}
	if err := Write(file, slots); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("write srt: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close srt: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename srt: %w", err)
	}
	return nil
}
