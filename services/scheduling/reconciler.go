package scheduling

import (
	"clinicsched/models"
)

// MinDurationMinutes is the shortest bookable appointment.
const MinDurationMinutes = 5

// EditedField names the draft field the user last touched.
type EditedField string

const (
	FieldStart    EditedField = "start"
	FieldEnd      EditedField = "end"
	FieldDuration EditedField = "duration"
)

// TimeReconciler keeps a draft's start, end and duration mutually consistent
// after any single-field edit, without overwriting a manually-set field unless
// the user edits it directly. Every operation is total: invalid input yields
// the unset sentinel or leaves the draft unchanged, never an error.
type TimeReconciler struct{}

// DeriveEnd computes start + duration. Returns TimeUnset when the duration is
// below the minimum, the start is invalid, or the result would cross midnight.
func (TimeReconciler) DeriveEnd(start models.TimeOfDay, durationMinutes int) models.TimeOfDay {
	if !start.Valid() || durationMinutes < MinDurationMinutes {
		return models.TimeUnset
	}
	end := start + models.TimeOfDay(durationMinutes)
	if !end.Valid() {
		return models.TimeUnset
	}
	return end
}

// DeriveStart computes end - duration. Returns TimeUnset when the duration is
// below the minimum, the end is invalid, or the result would precede midnight.
func (TimeReconciler) DeriveStart(end models.TimeOfDay, durationMinutes int) models.TimeOfDay {
	if !end.Valid() || durationMinutes < MinDurationMinutes {
		return models.TimeUnset
	}
	start := end - models.TimeOfDay(durationMinutes)
	if !start.Valid() {
		return models.TimeUnset
	}
	return start
}

// DeriveDuration computes end - start in minutes, or 0 when the pair is
// invalid or non-positive.
func (TimeReconciler) DeriveDuration(start, end models.TimeOfDay) int {
	if !start.Valid() || !end.Valid() || end <= start {
		return 0
	}
	return int(end - start)
}

// ApplyFieldEdit applies one user edit to the draft and reconciles the other
// time fields around it. Editing start or end pins that field's manual flag
// and clears any pending duration conflict.
func (r TimeReconciler) ApplyFieldEdit(draft models.AppointmentDraft, field EditedField, value models.TimeOfDay, durationMinutes int) models.AppointmentDraft {
	switch field {
	case FieldStart:
		draft.Start = value
		draft.StartManuallySet = true
		draft.DurationConflict = false
		if draft.EndManuallySet && draft.End.Valid() {
			if d := r.DeriveDuration(draft.Start, draft.End); d >= MinDurationMinutes {
				draft.DurationMinutes = d
			}
			// Implied duration under the minimum: duration left untouched.
		} else if draft.DurationMinutes >= MinDurationMinutes {
			if end := r.DeriveEnd(draft.Start, draft.DurationMinutes); end.Valid() {
				draft.End = end
			}
		}

	case FieldEnd:
		draft.End = value
		draft.EndManuallySet = true
		draft.DurationConflict = false
		if draft.StartManuallySet && draft.Start.Valid() {
			if d := r.DeriveDuration(draft.Start, draft.End); d >= MinDurationMinutes {
				draft.DurationMinutes = d
			}
		} else if draft.DurationMinutes >= MinDurationMinutes {
			if start := r.DeriveStart(draft.End, draft.DurationMinutes); start.Valid() {
				draft.Start = start
			}
		}

	case FieldDuration:
		if draft.StartManuallySet && draft.EndManuallySet {
			// Both endpoints are pinned by the user; changing either one
			// automatically would override a manual edit.
			draft.DurationConflict = true
			return draft
		}
		draft.DurationMinutes = durationMinutes
		draft.DurationConflict = false
		if draft.EndManuallySet {
			if start := r.DeriveStart(draft.End, draft.DurationMinutes); start.Valid() {
				draft.Start = start
			}
		} else {
			if end := r.DeriveEnd(draft.Start, draft.DurationMinutes); end.Valid() {
				draft.End = end
			}
		}
	}
	return draft
}

// ApplyTypeDefault applies an appointment type's default duration to a draft
// that has no duration yet. An already-set duration is never overridden.
func (r TimeReconciler) ApplyTypeDefault(draft models.AppointmentDraft, apptType models.AppointmentType) models.AppointmentDraft {
	draft.AppointmentTypeID = apptType.ID
	if apptType.DefaultDurationMinutes <= 0 || draft.DurationMinutes > 0 {
		return draft
	}
	draft.DurationMinutes = apptType.DefaultDurationMinutes
	if draft.Start.Valid() && !draft.EndManuallySet {
		if end := r.DeriveEnd(draft.Start, draft.DurationMinutes); end.Valid() {
			draft.End = end
		}
	}
	return draft
}
