package models

// AppointmentStatus is the lifecycle state of a booked appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Active reports whether the status still occupies its time slot.
// Cancelled and no-show appointments release their slot.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Appointment is an existing booking as reported by the practice-management API.
type Appointment struct {
	ID         string            `json:"id"`
	ProviderID string            `json:"providerId,omitempty"`
	PatientID  string            `json:"patientId,omitempty"`
	Date       DateOnly          `json:"date,omitempty"`
	StartTime  TimeOfDay         `json:"startTime"`
	EndTime    TimeOfDay         `json:"endTime"`
	Status     AppointmentStatus `json:"status"`
}

// Provider carries the scheduling-relevant slice of a provider record.
type Provider struct {
	ID                   string `json:"id"`
	Name                 string `json:"name,omitempty"`
	MaxDailyAppointments *int   `json:"maxDailyAppointments,omitempty"`
}

// AppointmentType describes a bookable service with an optional default length.
type AppointmentType struct {
	ID                     string `json:"id"`
	Name                   string `json:"name,omitempty"`
	DefaultDurationMinutes int    `json:"defaultDurationMinutes,omitempty"`
}

// AppointmentPayload is the normalized shape handed to the create/update
// collaborator: date as "YYYY-MM-DD", times as "HH:mm", numeric duration.
type AppointmentPayload struct {
	ProviderID        string    `json:"providerId"`
	PatientID         string    `json:"patientId,omitempty"`
	AppointmentTypeID string    `json:"appointmentTypeId,omitempty"`
	Date              DateOnly  `json:"date"`
	StartTime         TimeOfDay `json:"startTime"`
	EndTime           TimeOfDay `json:"endTime"`
	DurationMinutes   int       `json:"durationMinutes"`
	Notes             string    `json:"notes,omitempty"`
}

// WaitlistEntry is the request body for the waitlist-creation collaborator.
type WaitlistEntry struct {
	ID                 string    `json:"id,omitempty"`
	PatientID          string    `json:"patientId"`
	ProviderID         string    `json:"providerId"`
	AppointmentTypeID  string    `json:"appointmentTypeId,omitempty"`
	PreferredDate      DateOnly  `json:"preferredDate,omitempty"`
	PreferredTimeStart TimeOfDay `json:"preferredTimeStart,omitempty"`
	PreferredTimeEnd   TimeOfDay `json:"preferredTimeEnd,omitempty"`
	Priority           string    `json:"priority"`
	Notes              string    `json:"notes,omitempty"`
	ChiefComplaint     string    `json:"chiefComplaint,omitempty"`
}
