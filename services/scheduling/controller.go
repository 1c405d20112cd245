package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinicsched/models"
)

// DefaultDebounce is the trailing window between the last field edit and the
// availability check it schedules.
const DefaultDebounce = 500 * time.Millisecond

// ControllerState is the conflict-check phase of one draft.
type ControllerState string

const (
	// StateIdle means no complete (provider, date, start, end) tuple exists yet.
	StateIdle ControllerState = "idle"
	// StateChecking means a debounced check is pending or in flight.
	StateChecking ControllerState = "checking"
	// StateClean means the last check returned Available.
	StateClean ControllerState = "clean"
	// StateConflicted means the last check returned a blocking verdict.
	StateConflicted ControllerState = "conflicted"
)

// SubmitResult is the outcome of a submission attempt.
type SubmitResult struct {
	Ok          bool                `json:"ok"`
	Appointment *models.Appointment `json:"appointment,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	// FieldErrors maps draft field names to user-correctable messages.
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// Controller binds field edits on one AppointmentDraft to debounced
// availability checks and gates submission on the resulting verdict. It is the
// draft's only writer; every mutation happens under its lock.
type Controller struct {
	reconciler TimeReconciler
	checker    Checker
	waitlist   WaitlistService
	writer     AppointmentWriter
	logger     *zap.Logger
	debounce   time.Duration
	now        func() time.Time

	mu      sync.Mutex
	draft   models.AppointmentDraft
	state   ControllerState
	verdict ConflictVerdict
	// generation counts draft mutations; a check result is applied only if
	// the generation it was scheduled under is still current. This is what
	// suppresses stale out-of-order oracle replies; timer cancellation is
	// just an optimization on top.
	generation uint64
	timer      *time.Timer
}

// NewController builds a controller around an empty draft.
func NewController(checker Checker, waitlist WaitlistService, writer AppointmentWriter, logger *zap.Logger) *Controller {
	return &Controller{
		checker:  checker,
		waitlist: waitlist,
		writer:   writer,
		logger:   logger,
		debounce: DefaultDebounce,
		now:      time.Now,
		draft:    models.NewAppointmentDraft(),
		state:    StateIdle,
	}
}

// SetDebounce overrides the debounce window (before any edits arrive).
func (sc *Controller) SetDebounce(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if d > 0 {
		sc.debounce = d
	}
}

// SetClock overrides the time source, for date-policy tests.
func (sc *Controller) SetClock(now func() time.Time) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.now = now
}

// Draft returns a copy of the current draft.
func (sc *Controller) Draft() models.AppointmentDraft {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.draft
}

// RestoreDraft replaces the draft wholesale, e.g. when resuming a cached
// session or opening an existing appointment for editing.
func (sc *Controller) RestoreDraft(draft models.AppointmentDraft) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft = draft
	sc.scheduleCheckLocked()
}

// State reports the current check phase.
func (sc *Controller) State() ControllerState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// Verdict reports the result of the last completed check.
func (sc *Controller) Verdict() ConflictVerdict {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.verdict
}

// SetProvider records the provider selection and reschedules the check.
func (sc *Controller) SetProvider(providerID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft.ProviderID = providerID
	sc.scheduleCheckLocked()
}

// SetPatient records the patient; patient identity does not affect conflicts.
func (sc *Controller) SetPatient(patientID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft.PatientID = patientID
}

// SetDate records the appointment date and reschedules the check.
func (sc *Controller) SetDate(date models.DateOnly) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft.Date = date
	sc.scheduleCheckLocked()
}

// SetExcludeAppointment marks the draft as editing an existing appointment.
func (sc *Controller) SetExcludeAppointment(appointmentID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft.ExcludeAppointmentID = appointmentID
	sc.scheduleCheckLocked()
}

// EditStart applies a user edit to the start time.
func (sc *Controller) EditStart(t models.TimeOfDay) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft = sc.reconciler.ApplyFieldEdit(sc.draft, FieldStart, t, 0)
	sc.scheduleCheckLocked()
}

// EditEnd applies a user edit to the end time.
func (sc *Controller) EditEnd(t models.TimeOfDay) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft = sc.reconciler.ApplyFieldEdit(sc.draft, FieldEnd, t, 0)
	sc.scheduleCheckLocked()
}

// EditDuration applies a user edit to the duration in minutes.
func (sc *Controller) EditDuration(minutes int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft = sc.reconciler.ApplyFieldEdit(sc.draft, FieldDuration, models.TimeUnset, minutes)
	sc.scheduleCheckLocked()
}

// SelectType applies an appointment type and its default duration.
func (sc *Controller) SelectType(apptType models.AppointmentType) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.draft = sc.reconciler.ApplyTypeDefault(sc.draft, apptType)
	sc.scheduleCheckLocked()
}

// Dismiss clears a conflicted verdict without resolving it; the next edit or
// submit re-checks from scratch.
func (sc *Controller) Dismiss() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.verdict = ConflictVerdict{}
	if sc.state == StateConflicted {
		sc.state = StateIdle
	}
}

// Reset returns the controller to an empty draft and cancels pending work.
func (sc *Controller) Reset() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.resetLocked()
}

func (sc *Controller) resetLocked() {
	sc.generation++
	if sc.timer != nil {
		sc.timer.Stop()
		sc.timer = nil
	}
	sc.draft = models.NewAppointmentDraft()
	sc.verdict = ConflictVerdict{}
	sc.state = StateIdle
}

// scheduleCheckLocked (re)arms the trailing debounce. A new edit inside the
// window advances the generation, which both cancels the pending timer and
// invalidates any check already in flight.
func (sc *Controller) scheduleCheckLocked() {
	sc.generation++
	gen := sc.generation
	if sc.timer != nil {
		sc.timer.Stop()
		sc.timer = nil
	}
	if !sc.draft.TimesComplete() {
		sc.state = StateIdle
		sc.verdict = ConflictVerdict{}
		return
	}
	sc.state = StateChecking
	sc.timer = time.AfterFunc(sc.debounce, func() {
		sc.runScheduledCheck(gen)
	})
}

func (sc *Controller) runScheduledCheck(gen uint64) {
	sc.mu.Lock()
	if gen != sc.generation {
		sc.mu.Unlock()
		return
	}
	req := sc.checkRequestLocked()
	sc.mu.Unlock()

	verdict := sc.checker.Check(context.Background(), req)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if gen != sc.generation {
		// The draft moved on while this check was in flight; its verdict no
		// longer describes the current inputs.
		return
	}
	sc.applyVerdictLocked(verdict)
}

func (sc *Controller) checkRequestLocked() CheckRequest {
	return CheckRequest{
		ProviderID:           sc.draft.ProviderID,
		Date:                 sc.draft.Date,
		Start:                sc.draft.Start,
		End:                  sc.draft.End,
		ExcludeAppointmentID: sc.draft.ExcludeAppointmentID,
		DurationMinutesHint:  sc.draft.DurationMinutes,
	}
}

func (sc *Controller) applyVerdictLocked(verdict ConflictVerdict) {
	sc.verdict = verdict
	if verdict.Blocking() {
		sc.state = StateConflicted
	} else {
		sc.state = StateClean
	}
}

// TrySubmit validates the draft, runs one final non-debounced check and hands
// the normalized payload to the backend. A blocking verdict surfaces on both
// time fields and leaves the draft untouched for correction.
func (sc *Controller) TrySubmit(ctx context.Context) SubmitResult {
	sc.mu.Lock()
	draft := sc.draft
	now := sc.now()
	sc.mu.Unlock()

	if fieldErrs := validateDraftTimes(draft, now); len(fieldErrs) > 0 {
		return SubmitResult{Ok: false, Reason: "validation failed", FieldErrors: fieldErrs}
	}

	verdict := sc.checker.Check(ctx, CheckRequest{
		ProviderID:           draft.ProviderID,
		Date:                 draft.Date,
		Start:                draft.Start,
		End:                  draft.End,
		ExcludeAppointmentID: draft.ExcludeAppointmentID,
		DurationMinutesHint:  draft.DurationMinutes,
	})
	if verdict.Blocking() {
		sc.mu.Lock()
		sc.generation++
		sc.applyVerdictLocked(verdict)
		sc.mu.Unlock()
		msg := verdict.Message()
		return SubmitResult{
			Ok:          false,
			Reason:      msg,
			FieldErrors: map[string]string{"start": msg, "end": msg},
		}
	}

	payload := normalizePayload(draft)
	var (
		appt *models.Appointment
		err  error
	)
	if draft.ExcludeAppointmentID != "" {
		appt, err = sc.writer.UpdateAppointment(ctx, draft.ExcludeAppointmentID, payload)
	} else {
		appt, err = sc.writer.CreateAppointment(ctx, payload)
	}
	if err != nil {
		// Draft is preserved so the user can retry.
		sc.logger.Error("appointment submission failed",
			zap.String("providerId", draft.ProviderID),
			zap.String("date", draft.Date.String()),
			zap.Error(err))
		return SubmitResult{Ok: false, Reason: fmt.Sprintf("failed to save appointment: %v", err)}
	}

	sc.mu.Lock()
	sc.resetLocked()
	sc.mu.Unlock()
	return SubmitResult{Ok: true, Appointment: appt}
}

// AddToWaitlist is the conflict escape hatch: it needs only a patient and a
// provider, independent of the time conflict. Success resets the whole draft;
// failure leaves it untouched.
func (sc *Controller) AddToWaitlist(ctx context.Context) (*models.WaitlistEntry, error) {
	sc.mu.Lock()
	draft := sc.draft
	sc.mu.Unlock()

	if draft.PatientID == "" {
		return nil, fmt.Errorf("patient is required to join the waitlist")
	}
	if draft.ProviderID == "" {
		return nil, fmt.Errorf("provider is required to join the waitlist")
	}

	entry := models.WaitlistEntry{
		PatientID:          draft.PatientID,
		ProviderID:         draft.ProviderID,
		AppointmentTypeID:  draft.AppointmentTypeID,
		PreferredDate:      draft.Date,
		PreferredTimeStart: draft.Start,
		PreferredTimeEnd:   draft.End,
		Priority:           "normal",
		Notes:              draft.Notes,
		ChiefComplaint:     draft.ChiefComplaint,
	}
	created, err := sc.waitlist.CreateWaitlistEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to create waitlist entry: %w", err)
	}

	sc.mu.Lock()
	sc.resetLocked()
	sc.mu.Unlock()
	return created, nil
}

// validateDraftTimes gates submission on user-correctable time errors.
func validateDraftTimes(draft models.AppointmentDraft, now time.Time) map[string]string {
	errs := make(map[string]string)
	if draft.Date.IsZero() || !draft.Date.Valid() {
		errs["date"] = "date is required"
	} else if draft.Date.BeforeToday(now) {
		errs["date"] = "date must not be in the past"
	}
	if !draft.Start.Valid() {
		errs["start"] = "start time is required"
	}
	if !draft.End.Valid() {
		errs["end"] = "end time is required"
	}
	if draft.Start.Valid() && draft.End.Valid() {
		if draft.End <= draft.Start {
			errs["end"] = "end time must be after start time"
		} else if int(draft.End-draft.Start) < MinDurationMinutes {
			errs["end"] = fmt.Sprintf("appointment must be at least %d minutes", MinDurationMinutes)
		}
	}
	if draft.ProviderID == "" {
		errs["providerId"] = "provider is required"
	}
	return errs
}

// normalizePayload produces the wire shape the backend expects.
func normalizePayload(draft models.AppointmentDraft) models.AppointmentPayload {
	duration := draft.DurationMinutes
	if draft.Start.Valid() && draft.End.Valid() && draft.End > draft.Start {
		duration = int(draft.End - draft.Start)
	}
	return models.AppointmentPayload{
		ProviderID:        draft.ProviderID,
		PatientID:         draft.PatientID,
		AppointmentTypeID: draft.AppointmentTypeID,
		Date:              draft.Date,
		StartTime:         draft.Start,
		EndTime:           draft.End,
		DurationMinutes:   duration,
		Notes:             draft.Notes,
	}
}
