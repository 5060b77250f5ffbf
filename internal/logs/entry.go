package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Entry is one decoded JSON log line.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	// Slot is 0 for lines not scoped to a slot.
	Slot  int
	Attrs map[string]any
}

var reservedKeys = map[string]struct{}{"ts": {}, "level": {}, "msg": {}, "slot": {}}

// ParseEntry decodes a line written by the JSON handler. ok is false for
// lines that are not JSON objects.
func ParseEntry(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	entry := Entry{Attrs: make(map[string]any, len(raw))}
	if ts, ok := raw["ts"].(string); ok {
		entry.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if level, ok := raw["level"].(string); ok {
		_ = entry.Level.UnmarshalText([]byte(level))
	}
	entry.Message, _ = raw["msg"].(string)
	if slot, ok := raw["slot"].(float64); ok {
		entry.Slot = int(slot)
	}
	for key, value := range raw {
		if _, skip := reservedKeys[key]; !skip {
			entry.Attrs[key] = value
		}
	}
	return entry, true
}

// Filter selects entries at or above MinLevel and, when Slot > 0, scoped to
// that slot.
type Filter struct {
	MinLevel slog.Level
	Slot     int
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if e.Level < f.MinLevel {
		return false
	}
	return f.Slot <= 0 || e.Slot == f.Slot
}

// Format renders e on one line as "time LEVEL [slot N] message key=value".
func Format(e Entry) string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05.000"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", e.Level.String())
	if e.Slot > 0 {
		fmt.Fprintf(&b, "[slot %d] ", e.Slot)
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.Attrs[key])
	}
	return b.String()
}
