package timeline

import (
	"fmt"
	"time"

	"dubsync/internal/services"
)

// Strategy names the adjustment chosen for a run.
type Strategy string

const (
	StrategySimple   Strategy = "simple"
	StrategyCompress Strategy = "compress"
	StrategyExpand   Strategy = "expand"
)

const (
	// DefaultTolerance is the largest deviation accepted without adjustment.
	DefaultTolerance = 100 * time.Millisecond
	// DefaultMinClip is the length at or below which a clip is never sped up.
	DefaultMinClip = 40 * time.Millisecond
)

// Options controls Adjust.
type Options struct {
	// PreserveTotal keeps the last end on the original target. When false the
	// clips are packed back to back from zero.
	PreserveTotal bool
	// Tolerance defaults to DefaultTolerance when zero.
	Tolerance time.Duration
	// MinClip defaults to DefaultMinClip when zero.
	MinClip time.Duration
}

// DefaultOptions returns time-preserving options with default thresholds.
func DefaultOptions() Options {
	return Options{PreserveTotal: true, Tolerance: DefaultTolerance, MinClip: DefaultMinClip}
}

// Result is the outcome of Adjust.
type Result struct {
	Strategy    Strategy       `json:"strategy"`
	Slots       []AdjustedSlot `json:"slots"`
	TargetTotal time.Duration  `json:"target_total"`
	// ActualTotal is the natural layout length.
	ActualTotal time.Duration `json:"actual_total"`
	// Diff is ActualTotal - TargetTotal.
	Diff       time.Duration `json:"diff"`
	GapsBefore time.Duration `json:"gaps_before"`
	GapsAfter  time.Duration `json:"gaps_after"`
	// SpeedupRatio is the uniform ratio applied to flexible clips, 0 when no
	// rate change was needed.
	SpeedupRatio float64 `json:"speedup_ratio,omitempty"`
}

// End returns the end of the last adjusted slot.
func (r Result) End() time.Duration {
	if len(r.Slots) == 0 {
		return 0
	}
	return r.Slots[len(r.Slots)-1].End
}

// Retimed returns the number of slots that carry a rate change.
func (r Result) Retimed() int {
	n := 0
	for _, slot := range r.Slots {
		if slot.Retime != nil {
			n++
		}
	}
	return n
}

// Adjust lays clips onto the slot axis. clips holds one non-negative natural
// duration per slot; zero marks a silent slot.
func Adjust(slots []Slot, clips []time.Duration, opts Options) (Result, error) {
	if len(slots) != len(clips) {
		return Result{}, services.Wrap(services.ErrValidation, "timeline", "adjust",
			fmt.Sprintf("%d slots but %d clip durations", len(slots), len(clips)), nil)
	}
	if len(slots) == 0 {
		return Result{Strategy: StrategySimple, Slots: []AdjustedSlot{}}, nil
	}
	if err := ValidateSlots(slots); err != nil {
		return Result{}, err
	}
	for i, clip := range clips {
		if clip < 0 {
			return Result{}, validationError(i, "negative clip duration %s", clip)
		}
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MinClip <= 0 {
		opts.MinClip = DefaultMinClip
	}

	clipMS := make([]int64, len(clips))
	for i, clip := range clips {
		clipMS[i] = toMS(clip)
		if clip > 0 && clipMS[i] == 0 {
			clipMS[i] = 1
		}
	}
	gaps := originalGaps(slots)
	target := toMS(TargetTotal(slots))
	tolerance := toMS(opts.Tolerance)
	actual := sum(clipMS) + sum(gaps)
	diff := actual - target

	result := Result{
		TargetTotal: fromMS(target),
		ActualTotal: fromMS(actual),
		Diff:        fromMS(diff),
		GapsBefore:  fromMS(sum(gaps)),
	}

	windows := append([]int64(nil), clipMS...)
	var newGaps []int64

	switch {
	case !opts.PreserveTotal:
		result.Strategy = StrategySimple
		newGaps = make([]int64, len(gaps))
	case abs(diff) <= tolerance:
		result.Strategy = StrategySimple
		newGaps = absorbResidual(gaps, windows, diff)
	case diff > 0:
		result.Strategy = StrategyCompress
		if sum(gaps) >= diff {
			newGaps = shrink(gaps, diff)
			break
		}
		newGaps = make([]int64, len(gaps))
		ratio, adjusted, err := uniformSpeedup(clipMS, target, toMS(opts.MinClip))
		if err != nil {
			return Result{}, err
		}
		result.SpeedupRatio = ratio
		windows = adjusted
	default:
		result.Strategy = StrategyExpand
		newGaps = grow(gaps, -diff)
	}

	result.GapsAfter = fromMS(sum(newGaps))
	result.Slots = layout(slots, clipMS, windows, newGaps, result.SpeedupRatio > 0)
	return result, nil
}

func originalGaps(slots []Slot) []int64 {
	gaps := make([]int64, len(slots))
	for i, slot := range slots {
		if i == 0 {
			gaps[i] = toMS(slot.Start)
			continue
		}
		if gap := toMS(slot.Start) - toMS(slots[i-1].End); gap > 0 {
			gaps[i] = gap
		}
	}
	return gaps
}

// absorbResidual folds a within-tolerance difference into the gaps. When the
// gaps cannot cover a positive residual, the rest is trimmed from every
// window in proportion to its length; the Hold plans cut the clip tails and
// no window drops below 1ms. Whatever cannot be trimmed stays as overrun.
func absorbResidual(gaps, windows []int64, diff int64) []int64 {
	if diff <= 0 {
		return grow(gaps, -diff)
	}
	total := sum(gaps)
	if total >= diff {
		return shrink(gaps, diff)
	}
	headroom := make([]int64, len(windows))
	for i, w := range windows {
		if w > 1 {
			headroom[i] = w - 1
		}
	}
	cut := min(diff-total, sum(headroom))
	if cut > 0 {
		for i, c := range distribute(headroom, cut) {
			windows[i] -= c
		}
	}
	return make([]int64, len(gaps))
}

// shrink removes amount from gaps proportionally. amount must not exceed sum(gaps).
func shrink(gaps []int64, amount int64) []int64 {
	cuts := distribute(gaps, amount)
	out := make([]int64, len(gaps))
	for i := range gaps {
		out[i] = gaps[i] - cuts[i]
	}
	return out
}

// grow adds amount to gaps proportionally, or evenly when every gap is zero.
func grow(gaps []int64, amount int64) []int64 {
	adds := distribute(gaps, amount)
	out := make([]int64, len(gaps))
	for i := range gaps {
		out[i] = gaps[i] + adds[i]
	}
	return out
}

// uniformSpeedup fits the clips into target by speeding every clip above the
// floor by the same ratio. Clips at or below the floor keep their length.
func uniformSpeedup(clips []int64, target, floor int64) (float64, []int64, error) {
	if target <= 0 {
		return 0, nil, services.Wrap(services.ErrValidation, "timeline", "compress", "target total is zero", nil)
	}
	flexible := make([]int64, len(clips))
	var fixedTotal, flexTotal int64
	for i, clip := range clips {
		if clip <= floor {
			fixedTotal += clip
			continue
		}
		flexible[i] = clip
		flexTotal += clip
	}
	available := target - fixedTotal
	if flexTotal == 0 || available <= 0 {
		// Short clips alone overflow the target; nothing stays fixed.
		copy(flexible, clips)
		flexTotal = sum(clips)
		fixedTotal = 0
		available = target
	}
	if available < countPositive(flexible) {
		return 0, nil, services.Wrap(services.ErrValidation, "timeline", "compress",
			fmt.Sprintf("target %dms cannot hold %d clips", target, countPositive(flexible)), nil)
	}

	ratio := float64(flexTotal) / float64(available)
	shares := distribute(flexible, available)
	ensurePositive(shares, flexible)

	adjusted := make([]int64, len(clips))
	for i, clip := range clips {
		if flexible[i] > 0 {
			adjusted[i] = shares[i]
		} else {
			adjusted[i] = clip
		}
	}
	return ratio, adjusted, nil
}

// ensurePositive moves single milliseconds from the largest shares to any
// flexible clip whose share rounded down to zero.
func ensurePositive(shares, weights []int64) {
	for i := range shares {
		if weights[i] == 0 || shares[i] > 0 {
			continue
		}
		donor := -1
		for j := range shares {
			if shares[j] > 1 && (donor < 0 || shares[j] > shares[donor]) {
				donor = j
			}
		}
		if donor < 0 {
			return
		}
		shares[donor]--
		shares[i]++
	}
}

// layout places the windows after their gaps. Retime annotations are only
// attached when retime is set; a shortened window without it is a Hold trim.
func layout(slots []Slot, clips, windows, gaps []int64, retime bool) []AdjustedSlot {
	out := make([]AdjustedSlot, len(slots))
	var cursor int64
	for i, slot := range slots {
		cursor += gaps[i]
		start := cursor
		cursor += windows[i]
		adjusted := AdjustedSlot{
			Slot: Slot{
				Index: slot.Index,
				Start: fromMS(start),
				End:   fromMS(cursor),
				Text:  slot.Text,
			},
			Clip: fromMS(clips[i]),
			Plan: HoldPlan(),
			Gap:  fromMS(gaps[i]),
		}
		if adjusted.Index == 0 {
			adjusted.Index = i + 1
		}
		if retime && windows[i] > 0 && windows[i] < clips[i] {
			adjusted.Retime = &Retime{Original: fromMS(clips[i]), Adjusted: fromMS(windows[i])}
			adjusted.Plan = RatePlan(adjusted.Retime.Original, adjusted.Retime.Adjusted)
		}
		out[i] = adjusted
	}
	return out
}
