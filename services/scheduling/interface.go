package scheduling

import (
	"context"

	"clinicsched/models"
)

// SlotOracle answers which start times the backend offers for a provider on a
// date, already scoped server-side to working hours and existing bookings.
type SlotOracle interface {
	AvailableSlots(ctx context.Context, providerID string, date models.DateOnly, durationMinutes int) ([]models.TimeOfDay, error)
}

// BookingOracle lists a provider's existing appointments over a date range.
type BookingOracle interface {
	ListAppointments(ctx context.Context, providerID string, from, to models.DateOnly) ([]models.Appointment, error)
}

// ProviderDirectory resolves provider scheduling policy (daily caps).
type ProviderDirectory interface {
	ProviderByID(ctx context.Context, id string) (*models.Provider, error)
}

// WaitlistService creates waitlist entries when a slot cannot be booked.
type WaitlistService interface {
	CreateWaitlistEntry(ctx context.Context, entry models.WaitlistEntry) (*models.WaitlistEntry, error)
}

// AppointmentWriter hands a validated draft off to the authoritative backend.
type AppointmentWriter interface {
	CreateAppointment(ctx context.Context, payload models.AppointmentPayload) (*models.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, payload models.AppointmentPayload) (*models.Appointment, error)
}

// Checker decides whether a candidate slot is bookable.
type Checker interface {
	Check(ctx context.Context, req CheckRequest) ConflictVerdict
}

// CheckRequest identifies one candidate slot.
type CheckRequest struct {
	ProviderID           string
	Date                 models.DateOnly
	Start                models.TimeOfDay
	End                  models.TimeOfDay
	ExcludeAppointmentID string
	// DurationMinutesHint sizes the slot-oracle query; when zero the checker
	// falls back to end-start, then to the default duration.
	DurationMinutesHint int
}
