package assemble

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"dubsync/internal/logging"
	"dubsync/internal/probe"
	"dubsync/internal/services"
	"dubsync/internal/timeline"
)

type fileProber struct{}

func (fileProber) Inspect(_ context.Context, path string) (probe.Info, error) {
	ms, err := readMillis(path)
	if err != nil {
		return probe.Info{}, services.Wrap(services.ErrProbeFailed, "probe", "read", path, err)
	}
	return probe.Info{Path: path, Duration: time.Duration(ms) * time.Millisecond}, nil
}

func readMillis(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// fakeFFmpeg writes the expected duration of each invocation to its output.
// Concat outputs last as long as the listed inputs plus skew.
type fakeFFmpeg struct {
	calls   [][]string
	skew    time.Duration
	failOn  string
	lastCat []string
}

func (f *fakeFFmpeg) run(_ context.Context, _ string, args ...string) error {
	f.calls = append(f.calls, append([]string(nil), args...))
	joined := strings.Join(args, " ")
	if f.failOn != "" && strings.Contains(joined, f.failOn) {
		return errors.New("exit status 1")
	}
	output := args[len(args)-1]

	if strings.Contains(joined, "-f concat") {
		list := valueAfter(args, "-i")
		files, err := readConcatList(list)
		if err != nil {
			return err
		}
		f.lastCat = files
		var total int64
		for _, file := range files {
			ms, err := readMillis(file)
			if err != nil {
				return err
			}
			total += ms
		}
		total += f.skew.Milliseconds()
		return os.WriteFile(output, []byte(strconv.FormatInt(total, 10)), 0o644)
	}

	seconds, _ := strconv.ParseFloat(valueAfter(args, "-t"), 64)
	ms := int64(seconds*1000 + 0.5)
	return os.WriteFile(output, []byte(strconv.FormatInt(ms, 10)), 0o644)
}

func valueAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func readConcatList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var out []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "file '")
		line = strings.TrimSuffix(line, "'")
		out = append(out, line)
	}
	return out, scanner.Err()
}

func writeSegment(t *testing.T, dir string, slot int, d time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, "slot_"+strconv.Itoa(slot)+".wav")
	if err := os.WriteFile(path, []byte(strconv.FormatInt(d.Milliseconds(), 10)), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	return path
}

func adjusted(spans ...[2]int64) []timeline.AdjustedSlot {
	out := make([]timeline.AdjustedSlot, len(spans))
	for i, span := range spans {
		out[i] = timeline.AdjustedSlot{Slot: timeline.Slot{
			Index: i + 1,
			Start: time.Duration(span[0]) * time.Millisecond,
			End:   time.Duration(span[1]) * time.Millisecond,
		}, Plan: timeline.HoldPlan()}
	}
	return out
}

func newTestAssembler(t *testing.T, runner *fakeFFmpeg) (*Assembler, string) {
	t.Helper()
	dir := t.TempDir()
	a := New(Options{WorkDir: filepath.Join(dir, "work")}, fileProber{}, logging.NewNop())
	a.WithCommandRunner(runner.run)
	return a, dir
}

func TestAssembleFillsGapsAndMissingSlots(t *testing.T) {
	runner := &fakeFFmpeg{}
	a, dir := newTestAssembler(t, runner)
	slots := adjusted([2]int64{1000, 3000}, [2]int64{3000, 5000}, [2]int64{6000, 8000})
	segments := []Segment{
		{Slot: 1, Path: writeSegment(t, dir, 1, 2*time.Second)},
		{Slot: 3, Path: writeSegment(t, dir, 3, 2*time.Second)},
	}

	output := filepath.Join(dir, "dubbed.wav")
	track, v, err := a.Assemble(context.Background(), output, slots, segments)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if v.Status != StatusOK || v.Diff != 0 || v.Corrected {
		t.Fatalf("unexpected verification %+v", v)
	}
	if track.Duration != 8*time.Second || track.Pieces != 5 {
		t.Fatalf("unexpected track %+v", track)
	}
	want := []string{"gap_0001.wav", "slot_1.wav", "silence_0002.wav", "gap_0003.wav", "slot_3.wav"}
	if len(runner.lastCat) != len(want) {
		t.Fatalf("expected %d pieces, got %v", len(want), runner.lastCat)
	}
	for i, name := range want {
		if filepath.Base(runner.lastCat[i]) != name {
			t.Fatalf("piece %d = %s, want %s", i, filepath.Base(runner.lastCat[i]), name)
		}
	}
	if !strings.Contains(strings.Join(runner.calls[len(runner.calls)-1], " "), "-c copy -f wav") {
		t.Fatalf("concat should stream copy, got %v", runner.calls[len(runner.calls)-1])
	}
}

func TestAssembleCorrectsTailOnce(t *testing.T) {
	runner := &fakeFFmpeg{skew: 250 * time.Millisecond}
	a, dir := newTestAssembler(t, runner)
	slots := adjusted([2]int64{0, 5000}, [2]int64{5000, 10000})
	segments := []Segment{
		{Slot: 1, Path: writeSegment(t, dir, 1, 5*time.Second)},
		{Slot: 2, Path: writeSegment(t, dir, 2, 5*time.Second)},
	}

	_, v, err := a.Assemble(context.Background(), filepath.Join(dir, "dubbed.wav"), slots, segments)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if !v.Corrected || v.ActualTotal != 10*time.Second || v.Status != StatusOK {
		t.Fatalf("expected corrected ok track, got %+v", v)
	}
	last := strings.Join(runner.calls[len(runner.calls)-1], " ")
	if !strings.Contains(last, "-af apad -t 10.000") {
		t.Fatalf("unexpected correction args %q", last)
	}
}

func TestAssembleReportsSegmentFailures(t *testing.T) {
	runner := &fakeFFmpeg{}
	a, dir := newTestAssembler(t, runner)
	slots := adjusted([2]int64{0, 1000}, [2]int64{1000, 2500})
	segments := []Segment{
		{Slot: 1, Path: writeSegment(t, dir, 1, time.Second)},
		{Slot: 2, Failure: services.ErrTransformFailed},
	}

	_, v, err := a.Assemble(context.Background(), filepath.Join(dir, "dubbed.wav"), slots, segments)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if v.Status != StatusWarn || len(v.SegmentFailures) != 1 || v.SegmentFailures[0] != 2 {
		t.Fatalf("expected warn with slot 2 failure, got %+v", v)
	}
	if v.ActualTotal != 2500*time.Millisecond {
		t.Fatalf("silence substitute should keep the window, got %s", v.ActualTotal)
	}
}

func TestAssembleConcatFailureIsFatal(t *testing.T) {
	runner := &fakeFFmpeg{failOn: "-f concat"}
	a, dir := newTestAssembler(t, runner)
	slots := adjusted([2]int64{0, 1000})
	segments := []Segment{{Slot: 1, Path: writeSegment(t, dir, 1, time.Second)}}

	_, _, err := a.Assemble(context.Background(), filepath.Join(dir, "dubbed.wav"), slots, segments)
	if !errors.Is(err, services.ErrAssemblyFailed) {
		t.Fatalf("expected ErrAssemblyFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "slot 1") || !strings.Contains(err.Error(), "expected 1000ms") {
		t.Fatalf("error should name slot and duration: %v", err)
	}
}

func TestAssembleMissingSegmentFile(t *testing.T) {
	a, dir := newTestAssembler(t, &fakeFFmpeg{})
	slots := adjusted([2]int64{0, 1000})
	segments := []Segment{{Slot: 1, Path: filepath.Join(dir, "gone.wav")}}

	_, _, err := a.Assemble(context.Background(), filepath.Join(dir, "dubbed.wav"), slots, segments)
	if !errors.Is(err, services.ErrAssemblyFailed) {
		t.Fatalf("expected ErrAssemblyFailed, got %v", err)
	}
}

func TestVerificationJSON(t *testing.T) {
	v := Verification{
		TargetTotal: 10 * time.Second,
		ActualTotal: 10040 * time.Millisecond,
		Diff:        40 * time.Millisecond,
		Status:      StatusOK,
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"target_total_ms":10000,"actual_total_ms":10040,"diff_ms":40,"status":"ok","corrected":false,"segment_failures":[]}`
	if string(data) != want {
		t.Fatalf("got %s", data)
	}
}

func TestMuxCopiesVideo(t *testing.T) {
	runner := &fakeFFmpeg{}
	a, dir := newTestAssembler(t, runner)
	output := filepath.Join(dir, "final.mp4")
	track := Track{Path: filepath.Join(dir, "dubbed.wav"), Duration: 12 * time.Second}

	if err := a.Mux(context.Background(), filepath.Join(dir, "video.mp4"), track, output, MuxOptions{}); err != nil {
		t.Fatalf("Mux returned error: %v", err)
	}
	args := strings.Join(runner.calls[0], " ")
	for _, want := range []string{"-map 0:v:0 -map 1:a:0", "-c:v copy", "-c:a aac -b:a 192k", "-t 12.000", "-movflags +faststart", "-f mp4"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected muxed output: %v", err)
	}
}

func TestMuxMixesSourceAudioAtTempo(t *testing.T) {
	runner := &fakeFFmpeg{}
	a, dir := newTestAssembler(t, runner)
	track := Track{Path: filepath.Join(dir, "dubbed.wav"), Duration: 10 * time.Second}
	opts := MuxOptions{
		Mode:           MuxMix,
		Original:       filepath.Join(dir, "source.mkv"),
		OriginalTempo:  0.8,
		OriginalVolume: 0.3,
	}

	if err := a.Mux(context.Background(), filepath.Join(dir, "stretched.mkv"), track, filepath.Join(dir, "final.mkv"), opts); err != nil {
		t.Fatalf("Mux returned error: %v", err)
	}
	args := strings.Join(runner.calls[0], " ")
	for _, want := range []string{
		"-i " + filepath.Join(dir, "stretched.mkv") + " -i " + track.Path + " -i " + opts.Original,
		"-filter_complex [2:a:0]atempo=0.8,volume=0.3[orig];[1:a:0][orig]amix=inputs=2:duration=first:dropout_transition=2[aout]",
		"-map 0:v:0",
		"-map [aout]",
		"-c:a aac",
		"-f matroska",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}
}

func TestMuxMixUsesVideoAudioWithoutSeparateSource(t *testing.T) {
	args, err := muxArgs("video.mp4", Track{Path: "dub.wav", Duration: time.Second}, "mp4",
		MuxOptions{Mode: MuxMix, Original: "video.mp4", OriginalVolume: 0.5})
	if err != nil {
		t.Fatalf("muxArgs returned error: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "[0:a:0]volume=0.5[orig];[1:a:0][orig]amix") {
		t.Fatalf("expected the video input as mix source, got %q", joined)
	}
	if strings.Count(joined, "-i ") != 2 {
		t.Fatalf("expected two inputs, got %q", joined)
	}
}

func TestMuxRemoveDropsAudio(t *testing.T) {
	args, err := muxArgs("video.mp4", Track{Path: "dub.wav", Duration: time.Second}, "mp4", MuxOptions{Mode: MuxRemove})
	if err != nil {
		t.Fatalf("muxArgs returned error: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:v copy -an") || strings.Contains(joined, "dub.wav") || strings.Contains(joined, "-c:a") {
		t.Fatalf("expected video-only args, got %q", joined)
	}
}

func TestMuxEmbedsSubtitlesPerContainer(t *testing.T) {
	cases := []struct {
		format string
		codec  string
	}{
		{"mp4", "mov_text"},
		{"matroska", "srt"},
		{"webm", "webvtt"},
	}
	for _, tc := range cases {
		args, err := muxArgs("video", Track{Path: "dub.wav", Duration: time.Second}, tc.format,
			MuxOptions{Mode: MuxReplace, Subtitles: "adjusted.srt"})
		if err != nil {
			t.Fatalf("%s: muxArgs returned error: %v", tc.format, err)
		}
		joined := strings.Join(args, " ")
		for _, want := range []string{"-i adjusted.srt", "-map 2:s:0", "-c:s " + tc.codec} {
			if !strings.Contains(joined, want) {
				t.Fatalf("%s: expected %q in %q", tc.format, want, joined)
			}
		}
	}

	_, err := muxArgs("video", Track{Path: "dub.wav", Duration: time.Second}, "wav", MuxOptions{Mode: MuxReplace, Subtitles: "adjusted.srt"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for a container without subtitles, got %v", err)
	}
}

func TestParseMuxMode(t *testing.T) {
	for value, want := range map[string]MuxMode{"": MuxReplace, "Replace": MuxReplace, " mix ": MuxMix, "remove": MuxRemove} {
		got, err := ParseMuxMode(value)
		if err != nil || got != want {
			t.Fatalf("ParseMuxMode(%q) = %q, %v", value, got, err)
		}
	}
	if _, err := ParseMuxMode("burn"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
