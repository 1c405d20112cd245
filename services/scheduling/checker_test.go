package scheduling

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"clinicsched/models"
)

type fakeSlotOracle struct {
	slots []models.TimeOfDay
	err   error
	calls int
}

func (f *fakeSlotOracle) AvailableSlots(_ context.Context, _ string, _ models.DateOnly, _ int) ([]models.TimeOfDay, error) {
	f.calls++
	return f.slots, f.err
}

type fakeBookingOracle struct {
	appts []models.Appointment
	err   error
	calls int
}

func (f *fakeBookingOracle) ListAppointments(_ context.Context, _ string, _, _ models.DateOnly) ([]models.Appointment, error) {
	f.calls++
	return f.appts, f.err
}

type fakeProviderDirectory struct {
	provider *models.Provider
	err      error
}

func (f *fakeProviderDirectory) ProviderByID(_ context.Context, _ string) (*models.Provider, error) {
	return f.provider, f.err
}

func newTestChecker(slots *fakeSlotOracle, bookings *fakeBookingOracle, providers *fakeProviderDirectory) *DefaultChecker {
	if slots == nil {
		slots = &fakeSlotOracle{err: errors.New("slot oracle down")}
	}
	if bookings == nil {
		bookings = &fakeBookingOracle{}
	}
	if providers == nil {
		providers = &fakeProviderDirectory{}
	}
	return &DefaultChecker{
		Slots:     slots,
		Bookings:  bookings,
		Providers: providers,
		Logger:    zap.NewNop(),
	}
}

func baseRequest(t *testing.T) CheckRequest {
	return CheckRequest{
		ProviderID: "prov-1",
		Date:       models.DateOnly("2026-09-01"),
		Start:      mustTime(t, "10:30"),
		End:        mustTime(t, "11:00"),
	}
}

func TestCheckIncompleteInputIsAvailable(t *testing.T) {
	slots := &fakeSlotOracle{}
	bookings := &fakeBookingOracle{}
	c := newTestChecker(slots, bookings, nil)

	req := baseRequest(t)
	req.ProviderID = ""
	if v := c.Check(context.Background(), req); v.Kind != VerdictAvailable {
		t.Fatalf("missing provider should short-circuit to Available, got %s", v.Kind)
	}
	if slots.calls != 0 || bookings.calls != 0 {
		t.Fatal("incomplete input must not reach any oracle")
	}
}

func TestCheckEndBeforeStartFailsFast(t *testing.T) {
	slots := &fakeSlotOracle{}
	bookings := &fakeBookingOracle{}
	c := newTestChecker(slots, bookings, nil)

	req := baseRequest(t)
	req.Start = mustTime(t, "11:00")
	req.End = mustTime(t, "10:30")

	v := c.Check(context.Background(), req)
	if v.Kind != VerdictCheckFailed {
		t.Fatalf("kind = %s, want %s", v.Kind, VerdictCheckFailed)
	}
	if slots.calls != 0 || bookings.calls != 0 {
		t.Fatal("end<=start must be rejected before any network call")
	}
}

func TestCheckNoSlotsForDay(t *testing.T) {
	c := newTestChecker(&fakeSlotOracle{slots: []models.TimeOfDay{}}, nil, nil)
	if v := c.Check(context.Background(), baseRequest(t)); v.Kind != VerdictNoSlotsForDay {
		t.Fatalf("kind = %s, want %s", v.Kind, VerdictNoSlotsForDay)
	}
}

func TestCheckSlotNotOffered(t *testing.T) {
	c := newTestChecker(&fakeSlotOracle{slots: []models.TimeOfDay{mustTime(t, "09:00"), mustTime(t, "09:30")}}, nil, nil)
	if v := c.Check(context.Background(), baseRequest(t)); v.Kind != VerdictSlotNotOffered {
		t.Fatalf("kind = %s, want %s", v.Kind, VerdictSlotNotOffered)
	}
}

func TestCheckSlotOracleFailureFallsThrough(t *testing.T) {
	bookings := &fakeBookingOracle{}
	c := newTestChecker(&fakeSlotOracle{err: errors.New("timeout")}, bookings, nil)

	v := c.Check(context.Background(), baseRequest(t))
	if v.Kind != VerdictAvailable {
		t.Fatalf("kind = %s, want %s", v.Kind, VerdictAvailable)
	}
	if bookings.calls != 1 {
		t.Fatalf("booking cross-check should still run, calls = %d", bookings.calls)
	}
}

func TestCheckTouchingBoundaryIsAvailable(t *testing.T) {
	// Existing [10:00, 10:30) against candidate [10:30, 11:00): touching
	// endpoints do not conflict.
	bookings := &fakeBookingOracle{appts: []models.Appointment{
		{ID: "a1", StartTime: mustTime(t, "10:00"), EndTime: mustTime(t, "10:30"), Status: models.StatusScheduled},
	}}
	c := newTestChecker(nil, bookings, nil)

	if v := c.Check(context.Background(), baseRequest(t)); v.Kind != VerdictAvailable {
		t.Fatalf("kind = %s, want %s", v.Kind, VerdictAvailable)
	}
}

func TestCheckOverlapDetected(t *testing.T) {
	bookings := &fakeBookingOracle{appts: []models.Appointment{
		{ID: "a1", StartTime: mustTime(t, "10:00"), EndTime: mustTime(t, "10:30"), Status: models.StatusScheduled},
	}}
	c := newTestChecker(nil, bookings, nil)

	req := baseRequest(t)
	req.Start = mustTime(t, "10:15")
	req.End = mustTime(t, "10:45")

	v := c.Check(context.Background(), req)
	if v.Kind != VerdictOverlaps {
		t.Fatalf("kind = %s, want %s", v.Kind, VerdictOverlaps)
	}
	if len(v.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(v.Conflicts))
	}
	if v.Conflicts[0].Start != mustTime(t, "10:00") || v.Conflicts[0].End != mustTime(t, "10:30") {
		t.Fatalf("conflict interval = %s-%s", v.Conflicts[0].Start, v.Conflicts[0].End)
	}
}

func TestCheckIgnoresCancelledAndNoShow(t *testing.T) {
	bookings := &fakeBookingOracle{appts: []models.Appointment{
		{ID: "a1", StartTime: mustTime(t, "10:15"), EndTime: mustTime(t, "10:45"), Status: models.StatusCancelled},
		{ID: "a2", StartTime: mustTime(t, "10:15"), EndTime: mustTime(t, "10:45"), Status: models.StatusNoShow},
	}}
	c := newTestChecker(nil, bookings, nil)

	req := baseRequest(t)
	req.Start = mustTime(t, "10:15")
	req.End = mustTime(t, "10:45")

	if v := c.Check(context.Background(), req); v.Kind != VerdictAvailable {
		t.Fatalf("cancelled/no_show must not conflict, got %s", v.Kind)
	}
}

func TestCheckSelfExclusion(t *testing.T) {
	max := 1
	bookings := &fakeBookingOracle{appts: []models.Appointment{
		{ID: "editing", StartTime: mustTime(t, "10:15"), EndTime: mustTime(t, "10:45"), Status: models.StatusScheduled},
	}}
	providers := &fakeProviderDirectory{provider: &models.Provider{ID: "prov-1", MaxDailyAppointments: &max}}
	c := newTestChecker(nil, bookings, providers)

	req := baseRequest(t)
	req.Start = mustTime(t, "10:15")
	req.End = mustTime(t, "10:45")
	req.ExcludeAppointmentID = "editing"

	// The appointment being edited counts toward neither overlap nor the
	// daily limit.
	if v := c.Check(context.Background(), req); v.Kind != VerdictAvailable {
		t.Fatalf("kind = %s, want %s", v.Kind, VerdictAvailable)
	}
}

func TestCheckDailyLimitReached(t *testing.T) {
	max := 5
	var appts []models.Appointment
	for _, span := range []string{"08:00", "08:30", "09:00", "09:30", "13:00"} {
		start := mustTime(t, span)
		appts = append(appts, models.Appointment{
			ID: "a" + span, StartTime: start, EndTime: start + 30, Status: models.StatusConfirmed,
		})
	}
	bookings := &fakeBookingOracle{appts: appts}
	providers := &fakeProviderDirectory{provider: &models.Provider{ID: "prov-1", MaxDailyAppointments: &max}}
	c := newTestChecker(nil, bookings, providers)

	// Candidate does not overlap anything; the cap alone blocks it.
	v := c.Check(context.Background(), baseRequest(t))
	if v.Kind != VerdictDailyLimitReached {
		t.Fatalf("kind = %s, want %s", v.Kind, VerdictDailyLimitReached)
	}
	if v.Max != 5 {
		t.Fatalf("max = %d, want 5", v.Max)
	}
}

func TestCheckBookingOracleFailureFailsOpen(t *testing.T) {
	bookings := &fakeBookingOracle{err: errors.New("network error")}
	c := newTestChecker(nil, bookings, nil)

	if v := c.Check(context.Background(), baseRequest(t)); v.Kind != VerdictAvailable {
		t.Fatalf("booking oracle failure must fail open, got %s", v.Kind)
	}
}

func TestCheckProviderLookupFailureSkipsLimit(t *testing.T) {
	bookings := &fakeBookingOracle{appts: []models.Appointment{
		{ID: "a1", StartTime: mustTime(t, "08:00"), EndTime: mustTime(t, "08:30"), Status: models.StatusScheduled},
	}}
	providers := &fakeProviderDirectory{err: errors.New("lookup failed")}
	c := newTestChecker(nil, bookings, providers)

	if v := c.Check(context.Background(), baseRequest(t)); v.Kind != VerdictAvailable {
		t.Fatalf("provider lookup failure must not block, got %s", v.Kind)
	}
}
