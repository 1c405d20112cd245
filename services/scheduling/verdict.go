package scheduling

import (
	"fmt"

	"clinicsched/models"
)

// VerdictKind classifies the outcome of an availability check.
type VerdictKind string

const (
	// VerdictAvailable means no conflict was detected client-side.
	VerdictAvailable VerdictKind = "available"
	// VerdictNoSlotsForDay means the slot oracle offered nothing for the day.
	VerdictNoSlotsForDay VerdictKind = "no_slots_for_day"
	// VerdictSlotNotOffered means the requested start is not among the offered slots.
	VerdictSlotNotOffered VerdictKind = "slot_not_offered"
	// VerdictDailyLimitReached means the provider's daily booking cap is hit.
	VerdictDailyLimitReached VerdictKind = "daily_limit_reached"
	// VerdictOverlaps means one or more existing appointments overlap the candidate.
	VerdictOverlaps VerdictKind = "overlaps"
	// VerdictCheckFailed means the candidate could not be checked at all.
	VerdictCheckFailed VerdictKind = "check_failed"
)

// Interval is a half-open [Start, End) time range on a single day.
type Interval struct {
	Start models.TimeOfDay `json:"start"`
	End   models.TimeOfDay `json:"end"`
}

// ConflictVerdict is the result of one availability check. It is created fresh
// on every check, never persisted, and superseded by the next check.
type ConflictVerdict struct {
	Kind VerdictKind `json:"kind"`
	// Max is the provider's daily cap, set for VerdictDailyLimitReached.
	Max int `json:"max,omitempty"`
	// Conflicts lists the overlapping intervals, set for VerdictOverlaps.
	Conflicts []Interval `json:"conflicts,omitempty"`
	// Reason carries the failure detail for VerdictCheckFailed.
	Reason string `json:"reason,omitempty"`
}

// Available is the neutral "no conflict detected" verdict.
func Available() ConflictVerdict {
	return ConflictVerdict{Kind: VerdictAvailable}
}

// Blocking reports whether the verdict must prevent submission.
func (v ConflictVerdict) Blocking() bool {
	return v.Kind != VerdictAvailable
}

// Message renders the verdict for field-level display.
func (v ConflictVerdict) Message() string {
	switch v.Kind {
	case VerdictAvailable:
		return ""
	case VerdictNoSlotsForDay:
		return "no available slots for this provider on the selected date"
	case VerdictSlotNotOffered:
		return "the selected time is not available for this provider"
	case VerdictDailyLimitReached:
		return fmt.Sprintf("provider has reached the daily limit of %d appointments", v.Max)
	case VerdictOverlaps:
		if len(v.Conflicts) == 1 {
			c := v.Conflicts[0]
			return fmt.Sprintf("time conflicts with an existing appointment (%s - %s)", c.Start, c.End)
		}
		return fmt.Sprintf("time conflicts with %d existing appointments", len(v.Conflicts))
	case VerdictCheckFailed:
		return v.Reason
	}
	return string(v.Kind)
}
