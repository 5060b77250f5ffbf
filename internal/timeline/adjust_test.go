package timeline

import (
	"errors"
	"math"
	"testing"
	"time"

	"dubsync/internal/services"
)

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func slotsFrom(spans ...[2]int64) []Slot {
	out := make([]Slot, len(spans))
	for i, span := range spans {
		out[i] = Slot{Index: i + 1, Start: ms(span[0]), End: ms(span[1])}
	}
	return out
}

func durations(values ...int64) []time.Duration {
	out := make([]time.Duration, len(values))
	for i, v := range values {
		out[i] = ms(v)
	}
	return out
}

func assertContiguousOrder(t *testing.T, slots []AdjustedSlot) {
	t.Helper()
	var prev time.Duration
	for i, slot := range slots {
		if slot.Start < prev {
			t.Fatalf("slot %d starts at %s before previous end %s", i+1, slot.Start, prev)
		}
		if slot.End < slot.Start {
			t.Fatalf("slot %d ends before it starts", i+1)
		}
		if slot.Start-prev != slot.Gap {
			t.Fatalf("slot %d gap %s does not match layout %s", i+1, slot.Gap, slot.Start-prev)
		}
		prev = slot.End
	}
}

func TestAdjustScenarioUniformSpeedup(t *testing.T) {
	result, err := Adjust(slotsFrom([2]int64{0, 5000}, [2]int64{5000, 10000}), durations(6000, 6000), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Strategy != StrategyCompress {
		t.Fatalf("expected compress, got %s", result.Strategy)
	}
	if math.Abs(result.SpeedupRatio-1.2) > 1e-9 {
		t.Fatalf("expected ratio 1.2, got %v", result.SpeedupRatio)
	}
	if result.End() != ms(10000) {
		t.Fatalf("expected end at 10000ms, got %s", result.End())
	}
	for _, slot := range result.Slots {
		if slot.Retime == nil {
			t.Fatalf("slot %d missing retime", slot.Index)
		}
		if slot.Plan.Kind != Speedup || math.Abs(slot.Plan.Ratio-1.2) > 1e-9 {
			t.Fatalf("slot %d unexpected plan %s", slot.Index, slot.Plan)
		}
		if slot.Retime.Adjusted != ms(5000) {
			t.Fatalf("slot %d adjusted %s", slot.Index, slot.Retime.Adjusted)
		}
	}
	assertContiguousOrder(t, result.Slots)
}

func TestAdjustScenarioExpandGaps(t *testing.T) {
	result, err := Adjust(slotsFrom([2]int64{0, 10000}), durations(8000), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Strategy != StrategyExpand {
		t.Fatalf("expected expand, got %s", result.Strategy)
	}
	if result.End() != ms(10000) {
		t.Fatalf("expected end at 10000ms, got %s", result.End())
	}
	if result.GapsAfter-result.GapsBefore != ms(2000) {
		t.Fatalf("expected gaps to grow by 2000ms, got %s", result.GapsAfter-result.GapsBefore)
	}
	if result.Retimed() != 0 {
		t.Fatal("expand must not change rates")
	}
}

func TestAdjustExpandProportionalToGaps(t *testing.T) {
	slots := slotsFrom([2]int64{1000, 3000}, [2]int64{6000, 8000}, [2]int64{8000, 10000})
	result, err := Adjust(slots, durations(1500, 1500, 1500), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	// natural layout: 1000 + 1500 + 3000 + 1500 + 0 + 1500 = 8500, short by 1500
	if result.Diff != ms(-1500) {
		t.Fatalf("unexpected diff %s", result.Diff)
	}
	if result.Slots[0].Gap != ms(1375) || result.Slots[1].Gap != ms(4125) || result.Slots[2].Gap != 0 {
		t.Fatalf("unexpected gaps: %s %s %s", result.Slots[0].Gap, result.Slots[1].Gap, result.Slots[2].Gap)
	}
	if result.End() != ms(10000) {
		t.Fatalf("expected end at target, got %s", result.End())
	}
	assertContiguousOrder(t, result.Slots)
}

func TestAdjustWithinToleranceHasNoRetime(t *testing.T) {
	slots := slotsFrom([2]int64{0, 2000}, [2]int64{2500, 5000})
	result, err := Adjust(slots, durations(2040, 2500), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Strategy != StrategySimple {
		t.Fatalf("expected simple, got %s", result.Strategy)
	}
	if result.Retimed() != 0 {
		t.Fatal("expected no retime annotations")
	}
	if result.End() != ms(5000) {
		t.Fatalf("expected end at target, got %s", result.End())
	}
	if result.Slots[1].Gap != ms(460) {
		t.Fatalf("expected residual absorbed by gap, got %s", result.Slots[1].Gap)
	}
}

func TestAdjustWithinToleranceTrimsEveryWindowWithoutGaps(t *testing.T) {
	slots := slotsFrom([2]int64{0, 2000}, [2]int64{2000, 4000})
	result, err := Adjust(slots, durations(2030, 2030), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Retimed() != 0 {
		t.Fatal("expected no retime annotations")
	}
	for _, slot := range result.Slots {
		if slot.Window() != ms(2000) || slot.Clip != ms(2030) || slot.Plan.Kind != Hold {
			t.Fatalf("expected 2000ms hold window, got %+v", slot)
		}
	}
	if result.End() != ms(4000) {
		t.Fatalf("expected end at target, got %s", result.End())
	}
}

func TestAdjustWithinToleranceKeepsShortTailClip(t *testing.T) {
	slots := slotsFrom([2]int64{0, 1000}, [2]int64{1000, 1030})
	result, err := Adjust(slots, durations(1080, 50), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Strategy != StrategySimple {
		t.Fatalf("expected simple, got %s", result.Strategy)
	}
	first, last := result.Slots[0], result.Slots[1]
	if first.Window() != ms(984) || last.Window() != ms(46) {
		t.Fatalf("expected windows 984ms and 46ms, got %s and %s", first.Window(), last.Window())
	}
	if last.End != ms(1030) {
		t.Fatalf("expected end at target, got %s", last.End)
	}
	assertContiguousOrder(t, result.Slots)
}

func TestAdjustNeverEmptiesAudibleWindow(t *testing.T) {
	slots := slotsFrom([2]int64{0, 1}, [2]int64{1, 2})
	result, err := Adjust(slots, []time.Duration{ms(60), 400 * time.Microsecond}, DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	for _, slot := range result.Slots {
		if slot.Window() < ms(1) {
			t.Fatalf("slot %d lost its window: %+v", slot.Index, slot)
		}
	}
	if result.Slots[1].Clip != ms(1) {
		t.Fatalf("sub-millisecond clip should count as 1ms, got %s", result.Slots[1].Clip)
	}
}

func TestAdjustCompressUsesGapSlackFirst(t *testing.T) {
	slots := slotsFrom([2]int64{0, 2000}, [2]int64{3000, 5000}, [2]int64{6000, 8000})
	result, err := Adjust(slots, durations(2400, 2400, 2400), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Strategy != StrategyCompress {
		t.Fatalf("expected compress, got %s", result.Strategy)
	}
	if result.Retimed() != 0 || result.SpeedupRatio != 0 {
		t.Fatal("gap slack should avoid any rate change")
	}
	if result.GapsAfter != ms(800) {
		t.Fatalf("expected 800ms of gaps left, got %s", result.GapsAfter)
	}
	if result.End() != ms(8000) {
		t.Fatalf("expected end at target, got %s", result.End())
	}
}

func TestAdjustCompressLeavesShortClipsAlone(t *testing.T) {
	slots := slotsFrom([2]int64{0, 3000}, [2]int64{3000, 3040}, [2]int64{3040, 6000})
	result, err := Adjust(slots, durations(3500, 30, 3500), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Slots[1].Retime != nil || result.Slots[1].Window() != ms(30) {
		t.Fatalf("short clip should stay fixed, got %+v", result.Slots[1])
	}
	for _, idx := range []int{0, 2} {
		slot := result.Slots[idx]
		if slot.Retime == nil || slot.Plan.Ratio <= 1 {
			t.Fatalf("slot %d should be sped up, got %+v", slot.Index, slot)
		}
	}
	want := 7000.0 / 5970.0
	if math.Abs(result.SpeedupRatio-want) > 1e-9 {
		t.Fatalf("expected ratio %v, got %v", want, result.SpeedupRatio)
	}
	if result.End() != ms(6000) {
		t.Fatalf("expected end at target, got %s", result.End())
	}
}

func TestAdjustSingleOversizedClip(t *testing.T) {
	result, err := Adjust(slotsFrom([2]int64{0, 1000}), durations(3000), DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	slot := result.Slots[0]
	if slot.Plan.Kind != Speedup || math.Abs(slot.Plan.Ratio-3) > 1e-9 {
		t.Fatalf("expected speedup(3), got %s", slot.Plan)
	}
	if result.End() != ms(1000) {
		t.Fatalf("expected end at target, got %s", result.End())
	}
}

func TestAdjustWithoutPreserveTotalPacks(t *testing.T) {
	opts := DefaultOptions()
	opts.PreserveTotal = false
	slots := slotsFrom([2]int64{500, 2000}, [2]int64{4000, 6000})
	result, err := Adjust(slots, durations(1800, 2500), opts)
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if result.Slots[0].Start != 0 || result.Slots[1].Start != ms(1800) || result.End() != ms(4300) {
		t.Fatalf("expected back to back packing, got %+v", result.Slots)
	}
	if result.Retimed() != 0 {
		t.Fatal("packing must not change rates")
	}
}

func TestAdjustEmptyInput(t *testing.T) {
	result, err := Adjust(nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if len(result.Slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(result.Slots))
	}
}

func TestAdjustRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		slots []Slot
		clips []time.Duration
	}{
		{"count mismatch", slotsFrom([2]int64{0, 1000}), durations(1, 2)},
		{"negative clip", slotsFrom([2]int64{0, 1000}), durations(-5)},
		{"overlap", slotsFrom([2]int64{0, 1000}, [2]int64{900, 2000}), durations(1000, 1000)},
		{"decreasing", slotsFrom([2]int64{1000, 1000}, [2]int64{500, 600}), durations(1, 1)},
		{"inverted", slotsFrom([2]int64{1000, 500}), durations(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Adjust(tc.slots, tc.clips, DefaultOptions())
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAdjustPreservesTotalAcrossMixes(t *testing.T) {
	slots := slotsFrom([2]int64{200, 1200}, [2]int64{1500, 2600}, [2]int64{2600, 2620}, [2]int64{3000, 4700})
	mixes := [][]int64{
		{1000, 1100, 20, 1700},
		{1700, 1900, 10, 2900},
		{300, 200, 0, 100},
		{999, 1133, 41, 1777},
		{4000, 0, 0, 0},
	}
	for _, mix := range mixes {
		result, err := Adjust(slots, durations(mix...), DefaultOptions())
		if err != nil {
			t.Fatalf("Adjust(%v) returned error: %v", mix, err)
		}
		if result.End() != ms(4700) {
			t.Fatalf("Adjust(%v) ended at %s", mix, result.End())
		}
		assertContiguousOrder(t, result.Slots)
		for _, slot := range result.Slots {
			if slot.Retime != nil && (slot.Retime.Adjusted <= 0 || slot.Plan.Ratio <= 1) {
				t.Fatalf("Adjust(%v) slot %d bad retime %+v", mix, slot.Index, slot)
			}
		}
	}
}

func TestDistributeIsExact(t *testing.T) {
	shares := distribute([]int64{1, 1, 1}, 100)
	if shares[0] != 34 || shares[1] != 33 || shares[2] != 33 {
		t.Fatalf("unexpected shares %v", shares)
	}
	shares = distribute([]int64{0, 0}, 7)
	if shares[0]+shares[1] != 7 {
		t.Fatalf("even split lost time: %v", shares)
	}
}
