package models

// AppointmentDraft is the mutable form state the scheduling core operates on.
// It is exclusively owned by the form session; the reconciler and checker only
// read it or propose changes, never hold their own copy.
type AppointmentDraft struct {
	ProviderID        string    `json:"providerId"`
	PatientID         string    `json:"patientId"`
	AppointmentTypeID string    `json:"appointmentTypeId,omitempty"`
	Date              DateOnly  `json:"date,omitempty"`
	Start             TimeOfDay `json:"start"`
	End               TimeOfDay `json:"end"`
	DurationMinutes   int       `json:"durationMinutes"`

	// Provenance flags: true once the user edits the field directly. Never
	// cleared by automatic recalculation, only by an explicit reset.
	StartManuallySet bool `json:"startManuallySet"`
	EndManuallySet   bool `json:"endManuallySet"`

	// DurationConflict is set when a duration edit cannot be honored because
	// both start and end are manually pinned; the user has to adjust one of
	// them directly.
	DurationConflict bool `json:"durationConflict"`

	// ExcludeAppointmentID holds the appointment's own ID when editing an
	// existing booking so it does not conflict with itself.
	ExcludeAppointmentID string `json:"excludeAppointmentId,omitempty"`

	Notes          string `json:"notes,omitempty"`
	ChiefComplaint string `json:"chiefComplaint,omitempty"`
}

// NewAppointmentDraft returns an empty draft with unset time fields.
func NewAppointmentDraft() AppointmentDraft {
	return AppointmentDraft{Start: TimeUnset, End: TimeUnset}
}

// TimesComplete reports whether the (provider, date, start, end) tuple needed
// for a conflict check is fully known.
func (d AppointmentDraft) TimesComplete() bool {
	return d.ProviderID != "" && !d.Date.IsZero() && d.Start.Valid() && d.End.Valid()
}
