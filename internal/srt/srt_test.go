package srt

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/unicode"

	"dubsync/internal/services"
	"dubsync/internal/timeline"
)

func TestParseHandlesBOMAndCRLF(t *testing.T) {
	input := "\ufeff1\r\n00:00:01,000 --> 00:00:02.500\r\nHello\r\nworld\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000 X1:10 X2:20\r\nCafe\u0301\r\n"
	cues, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if cues[0].Start != time.Second || cues[0].End != 2500*time.Millisecond {
		t.Fatalf("unexpected first cue timing: %+v", cues[0])
	}
	if cues[0].Text != "Hello\nworld" {
		t.Fatalf("unexpected first cue text: %q", cues[0].Text)
	}
	if cues[1].End != 4*time.Second {
		t.Fatalf("expected positioning hint ignored, got %s", cues[1].End)
	}
	if cues[1].Text != "Caf\u00e9" {
		t.Fatalf("expected NFC text, got %q", cues[1].Text)
	}
}

func TestParseUTF16(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("1\n00:00:00,000 --> 00:00:01,000\nhi\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cues, err := Parse(strings.NewReader(encoded))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "hi" {
		t.Fatalf("unexpected cues: %+v", cues)
	}
}

func TestParseSkipsMalformedBlocks(t *testing.T) {
	input := "garbage\n\n1\n00:00:01,000 --> 00:00:02,000\nok\n\n2\nnot a timing line\ntext\n"
	cues, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "ok" {
		t.Fatalf("unexpected cues: %+v", cues)
	}

	if _, err := Parse(strings.NewReader("nothing useful here")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if cues, err := Parse(strings.NewReader("  \n")); err != nil || cues != nil {
		t.Fatalf("expected empty input to yield no cues, got %v %v", cues, err)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	cases := map[string]time.Duration{
		"00:00:00,000": 0,
		"01:02:03,004": time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond,
		"00:00:10,500": 10500 * time.Millisecond,
	}
	for text, want := range cases {
		got, err := ParseTimestamp(text)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", text, err)
		}
		if got != want {
			t.Fatalf("ParseTimestamp(%q) = %s, want %s", text, got, want)
		}
		if FormatTimestamp(got) != text {
			t.Fatalf("FormatTimestamp(%s) = %q, want %q", got, FormatTimestamp(got), text)
		}
	}
	if got, _ := ParseTimestamp("00:00:01.5"); got != 1500*time.Millisecond {
		t.Fatalf("expected short fraction padded, got %s", got)
	}
	if _, err := ParseTimestamp("1:2"); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	slots := []timeline.Slot{
		{Index: 1, Start: 0, End: 1200 * time.Millisecond, Text: "one"},
		{Index: 2, Start: 1500 * time.Millisecond, End: 10 * time.Second, Text: "two\nlines"},
	}
	path := filepath.Join(t.TempDir(), "out", "adjusted.srt")
	if err := WriteFile(path, slots); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	cues, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}
	got := Slots(cues)
	if len(got) != 2 || got[1].End != 10*time.Second || got[1].Text != "two\nlines" {
		t.Fatalf("unexpected round trip: %+v", got)
	}

	var buf bytes.Buffer
	if err := Write(&buf, slots[:1]); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if buf.String() != "1\n00:00:00,000 --> 00:00:01,200\none\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
