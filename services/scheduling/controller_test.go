package scheduling

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"clinicsched/models"
)

type staticChecker struct {
	verdict ConflictVerdict
	calls   int64
}

func (s *staticChecker) Check(_ context.Context, req CheckRequest) ConflictVerdict {
	atomic.AddInt64(&s.calls, 1)
	if req.ProviderID == "" || req.Date.IsZero() || !req.Start.Valid() || !req.End.Valid() {
		return Available()
	}
	return s.verdict
}

type pendingCheck struct {
	req     CheckRequest
	respond chan ConflictVerdict
}

// manualChecker hands each check to the test, which decides when and with
// what verdict it completes. This simulates out-of-order oracle replies.
type manualChecker struct {
	started chan *pendingCheck
}

func (m *manualChecker) Check(_ context.Context, req CheckRequest) ConflictVerdict {
	p := &pendingCheck{req: req, respond: make(chan ConflictVerdict)}
	m.started <- p
	return <-p.respond
}

type fakeWaitlist struct {
	entries []models.WaitlistEntry
	err     error
}

func (f *fakeWaitlist) CreateWaitlistEntry(_ context.Context, entry models.WaitlistEntry) (*models.WaitlistEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	entry.ID = "wl-1"
	f.entries = append(f.entries, entry)
	return &entry, nil
}

type fakeWriter struct {
	created []models.AppointmentPayload
	updated map[string]models.AppointmentPayload
	err     error
}

func (f *fakeWriter) CreateAppointment(_ context.Context, payload models.AppointmentPayload) (*models.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, payload)
	return &models.Appointment{ID: "appt-1", StartTime: payload.StartTime, EndTime: payload.EndTime, Status: models.StatusScheduled}, nil
}

func (f *fakeWriter) UpdateAppointment(_ context.Context, id string, payload models.AppointmentPayload) (*models.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.updated == nil {
		f.updated = make(map[string]models.AppointmentPayload)
	}
	f.updated[id] = payload
	return &models.Appointment{ID: id, StartTime: payload.StartTime, EndTime: payload.EndTime, Status: models.StatusScheduled}, nil
}

func newTestController(checker Checker) (*Controller, *fakeWaitlist, *fakeWriter) {
	waitlist := &fakeWaitlist{}
	writer := &fakeWriter{}
	sc := NewController(checker, waitlist, writer, zap.NewNop())
	sc.SetDebounce(5 * time.Millisecond)
	sc.SetClock(func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	})
	return sc, waitlist, writer
}

func fillDraft(t *testing.T, sc *Controller) {
	t.Helper()
	sc.SetProvider("prov-1")
	sc.SetPatient("pat-1")
	sc.SetDate(models.DateOnly("2026-09-01"))
	sc.EditStart(mustTime(t, "09:00"))
	sc.EditDuration(30)
}

func waitForState(t *testing.T, sc *Controller, want ControllerState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sc.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", sc.State(), want)
}

func TestControllerIdleUntilTupleComplete(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, _, _ := newTestController(checker)

	sc.SetProvider("prov-1")
	sc.EditStart(mustTime(t, "09:00"))
	sc.EditDuration(30)

	if sc.State() != StateIdle {
		t.Fatalf("state = %s, want %s before date is set", sc.State(), StateIdle)
	}
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt64(&checker.calls) != 0 {
		t.Fatal("no check should run without a complete tuple")
	}
}

func TestControllerDebouncesToSingleCheck(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, _, _ := newTestController(checker)
	sc.SetDebounce(50 * time.Millisecond)

	fillDraft(t, sc)
	// Three rapid start edits inside the window collapse into one check.
	sc.EditStart(mustTime(t, "09:15"))
	sc.EditStart(mustTime(t, "09:30"))
	sc.EditStart(mustTime(t, "09:45"))

	waitForState(t, sc, StateClean)
	if n := atomic.LoadInt64(&checker.calls); n != 1 {
		t.Fatalf("checker calls = %d, want 1 (trailing debounce)", n)
	}
}

func TestControllerConflictVerdictBlocksState(t *testing.T) {
	checker := &staticChecker{verdict: ConflictVerdict{
		Kind:      VerdictOverlaps,
		Conflicts: []Interval{{Start: mustTime(t, "09:00"), End: mustTime(t, "09:30")}},
	}}
	sc, _, _ := newTestController(checker)

	fillDraft(t, sc)
	waitForState(t, sc, StateConflicted)

	if sc.Verdict().Kind != VerdictOverlaps {
		t.Fatalf("verdict = %s, want %s", sc.Verdict().Kind, VerdictOverlaps)
	}
}

func TestControllerDiscardsStaleCheckResult(t *testing.T) {
	checker := &manualChecker{started: make(chan *pendingCheck, 2)}
	sc, _, _ := newTestController(checker)

	fillDraft(t, sc)
	first := <-checker.started
	if first.req.Start != mustTime(t, "09:00") {
		t.Fatalf("first check start = %s, want 09:00", first.req.Start)
	}

	// The user keeps typing while the first check is in flight.
	sc.EditStart(mustTime(t, "10:00"))
	second := <-checker.started

	// The newer check answers first; then the stale one arrives with a
	// conflicting verdict, which must be silently discarded.
	second.respond <- Available()
	waitForState(t, sc, StateClean)

	first.respond <- ConflictVerdict{Kind: VerdictSlotNotOffered}
	time.Sleep(20 * time.Millisecond)

	if sc.State() != StateClean {
		t.Fatalf("stale verdict flipped state to %s", sc.State())
	}
	if sc.Verdict().Kind != VerdictAvailable {
		t.Fatalf("stale verdict overwrote result: %s", sc.Verdict().Kind)
	}
}

func TestControllerEditDuringFlightInvalidatesCheck(t *testing.T) {
	checker := &manualChecker{started: make(chan *pendingCheck, 2)}
	sc, _, _ := newTestController(checker)

	fillDraft(t, sc)
	first := <-checker.started

	// Losing the precondition mid-flight returns to Idle and the in-flight
	// result is ignored on arrival.
	sc.SetDate("")
	if sc.State() != StateIdle {
		t.Fatalf("state = %s, want %s after precondition loss", sc.State(), StateIdle)
	}

	first.respond <- ConflictVerdict{Kind: VerdictNoSlotsForDay}
	time.Sleep(20 * time.Millisecond)
	if sc.State() != StateIdle {
		t.Fatalf("in-flight result mutated state to %s", sc.State())
	}
}

func TestTrySubmitRejectsPastDate(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, _, writer := newTestController(checker)

	fillDraft(t, sc)
	sc.SetDate(models.DateOnly("2026-08-27")) // clock is fixed at 2026-08-28

	result := sc.TrySubmit(context.Background())
	if result.Ok {
		t.Fatal("past date must block submission")
	}
	if result.FieldErrors["date"] == "" {
		t.Fatalf("expected a date field error, got %v", result.FieldErrors)
	}
	if len(writer.created) != 0 {
		t.Fatal("nothing must reach the backend")
	}
}

func TestTrySubmitRejectsInvertedTimes(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, _, _ := newTestController(checker)

	fillDraft(t, sc)
	sc.EditEnd(mustTime(t, "08:00"))

	result := sc.TrySubmit(context.Background())
	if result.Ok {
		t.Fatal("end before start must block submission")
	}
	if result.FieldErrors["end"] == "" {
		t.Fatalf("expected an end field error, got %v", result.FieldErrors)
	}
}

func TestTrySubmitBlocksOnConflictVerdict(t *testing.T) {
	checker := &staticChecker{verdict: ConflictVerdict{Kind: VerdictSlotNotOffered}}
	sc, _, writer := newTestController(checker)

	fillDraft(t, sc)
	result := sc.TrySubmit(context.Background())

	if result.Ok {
		t.Fatal("blocking verdict must prevent submission")
	}
	// The verdict message surfaces on both time fields.
	if result.FieldErrors["start"] == "" || result.FieldErrors["end"] == "" {
		t.Fatalf("expected start and end field errors, got %v", result.FieldErrors)
	}
	if sc.State() != StateConflicted {
		t.Fatalf("state = %s, want %s", sc.State(), StateConflicted)
	}
	if len(writer.created) != 0 {
		t.Fatal("nothing must reach the backend")
	}
}

func TestTrySubmitCreatesNormalizedPayload(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, _, writer := newTestController(checker)

	fillDraft(t, sc)
	result := sc.TrySubmit(context.Background())

	if !result.Ok {
		t.Fatalf("submit failed: %s %v", result.Reason, result.FieldErrors)
	}
	if len(writer.created) != 1 {
		t.Fatalf("created = %d, want 1", len(writer.created))
	}
	payload := writer.created[0]
	if payload.Date != models.DateOnly("2026-09-01") {
		t.Errorf("date = %s", payload.Date)
	}
	if payload.StartTime.String() != "09:00" || payload.EndTime.String() != "09:30" {
		t.Errorf("times = %s-%s", payload.StartTime, payload.EndTime)
	}
	if payload.DurationMinutes != 30 {
		t.Errorf("duration = %d", payload.DurationMinutes)
	}

	// A successful handoff resets the draft.
	if sc.Draft().ProviderID != "" || sc.State() != StateIdle {
		t.Error("draft must reset after a successful submit")
	}
}

func TestTrySubmitRoutesEditsToUpdate(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, _, writer := newTestController(checker)

	fillDraft(t, sc)
	sc.SetExcludeAppointment("appt-42")

	result := sc.TrySubmit(context.Background())
	if !result.Ok {
		t.Fatalf("submit failed: %s", result.Reason)
	}
	if len(writer.created) != 0 {
		t.Fatal("edit mode must not create a new appointment")
	}
	if _, ok := writer.updated["appt-42"]; !ok {
		t.Fatalf("expected update of appt-42, got %v", writer.updated)
	}
}

func TestTrySubmitBackendFailurePreservesDraft(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, _, writer := newTestController(checker)
	writer.err = errors.New("backend rejected the request")

	fillDraft(t, sc)
	result := sc.TrySubmit(context.Background())

	if result.Ok {
		t.Fatal("backend failure must not report success")
	}
	if sc.Draft().ProviderID != "prov-1" {
		t.Fatal("draft must be preserved for retry")
	}
}

func TestAddToWaitlistRequiresPatientAndProvider(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, waitlist, _ := newTestController(checker)

	sc.SetProvider("prov-1")
	if _, err := sc.AddToWaitlist(context.Background()); err == nil {
		t.Fatal("missing patient must fail")
	}
	if len(waitlist.entries) != 0 {
		t.Fatal("no entry should be created")
	}
}

func TestAddToWaitlistResetsDraftOnSuccess(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, waitlist, _ := newTestController(checker)

	fillDraft(t, sc)
	entry, err := sc.AddToWaitlist(context.Background())
	if err != nil {
		t.Fatalf("waitlist failed: %v", err)
	}
	if entry.ID != "wl-1" {
		t.Fatalf("entry = %+v", entry)
	}
	if len(waitlist.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(waitlist.entries))
	}
	got := waitlist.entries[0]
	if got.PatientID != "pat-1" || got.ProviderID != "prov-1" {
		t.Errorf("entry identities = %s/%s", got.PatientID, got.ProviderID)
	}
	if got.PreferredDate != models.DateOnly("2026-09-01") || got.PreferredTimeStart.String() != "09:00" {
		t.Errorf("entry preferences = %s %s", got.PreferredDate, got.PreferredTimeStart)
	}

	if sc.Draft().ProviderID != "" || sc.State() != StateIdle {
		t.Error("draft must reset after joining the waitlist")
	}
}

func TestAddToWaitlistFailurePreservesDraft(t *testing.T) {
	checker := &staticChecker{verdict: Available()}
	sc, waitlist, _ := newTestController(checker)
	waitlist.err = errors.New("waitlist is closed")

	fillDraft(t, sc)
	if _, err := sc.AddToWaitlist(context.Background()); err == nil {
		t.Fatal("collaborator failure must surface")
	}
	if sc.Draft().PatientID != "pat-1" {
		t.Fatal("draft must be left untouched on failure")
	}
}

func TestDismissClearsConflict(t *testing.T) {
	checker := &staticChecker{verdict: ConflictVerdict{Kind: VerdictNoSlotsForDay}}
	sc, _, _ := newTestController(checker)

	fillDraft(t, sc)
	waitForState(t, sc, StateConflicted)

	sc.Dismiss()
	if sc.State() != StateIdle {
		t.Fatalf("state = %s, want %s", sc.State(), StateIdle)
	}
	if sc.Verdict().Kind != "" {
		t.Fatalf("verdict not cleared: %s", sc.Verdict().Kind)
	}
}
