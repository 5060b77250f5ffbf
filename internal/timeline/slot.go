package timeline

import (
	"fmt"
	"time"

	"dubsync/internal/services"
)

// Slot is one span on the subtitle time axis. Index is 1-based.
type Slot struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text,omitempty"`
}

// Window returns the slot length.
func (s Slot) Window() time.Duration {
	return s.End - s.Start
}

// Retime records a rate change: the clip's natural length and the length it
// must play in.
type Retime struct {
	Original time.Duration `json:"original"`
	Adjusted time.Duration `json:"adjusted"`
}

// Ratio returns original/adjusted.
func (r Retime) Ratio() float64 {
	if r.Adjusted <= 0 {
		return 1
	}
	return float64(r.Original) / float64(r.Adjusted)
}

// AdjustedSlot is a slot on the revised axis together with its plan.
type AdjustedSlot struct {
	Slot
	// Clip is the natural duration of the produced clip for this slot.
	Clip   time.Duration `json:"clip"`
	Plan   Plan          `json:"plan"`
	Retime *Retime       `json:"retime,omitempty"`
	// Gap is the silence placed before this slot.
	Gap time.Duration `json:"gap"`
}

// TargetTotal returns the end of the last slot, or 0 for no slots.
func TargetTotal(slots []Slot) time.Duration {
	if len(slots) == 0 {
		return 0
	}
	return slots[len(slots)-1].End
}

// ValidateSlots checks ordering and non-overlap.
func ValidateSlots(slots []Slot) error {
	var prevEnd time.Duration
	for i, slot := range slots {
		if slot.Start < 0 {
			return validationError(i, "negative start %s", slot.Start)
		}
		if slot.End < slot.Start {
			return validationError(i, "end %s before start %s", slot.End, slot.Start)
		}
		if i > 0 {
			if slot.Start < slots[i-1].Start {
				return validationError(i, "start %s decreases from %s", slot.Start, slots[i-1].Start)
			}
			if slot.Start < prevEnd {
				return validationError(i, "start %s overlaps previous end %s", slot.Start, prevEnd)
			}
		}
		prevEnd = slot.End
	}
	return nil
}

func validationError(pos int, format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "timeline", "validate", fmt.Sprintf("slot %d: ", pos+1)+fmt.Sprintf(format, args...), nil)
}
