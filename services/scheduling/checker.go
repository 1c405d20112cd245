package scheduling

import (
	"context"

	"go.uber.org/zap"
)

// DefaultDurationMinutes sizes the slot-oracle query when the caller gives no
// duration at all.
const DefaultDurationMinutes = 30

// DefaultChecker combines two independent backend signals: the slot oracle is
// a fast, policy-aware list of offered start times that may be stale or down;
// the booking oracle is the ground-truth appointment list that needs
// client-side overlap math. Oracle failures never block the user; the
// backend re-validates at submit time.
type DefaultChecker struct {
	Slots     SlotOracle
	Bookings  BookingOracle
	Providers ProviderDirectory
	Logger    *zap.Logger
}

// Check answers whether the candidate slot is bookable. It is total: missing
// inputs short-circuit to Available (nothing to check yet, not an error).
func (c *DefaultChecker) Check(ctx context.Context, req CheckRequest) ConflictVerdict {
	if req.ProviderID == "" || req.Date.IsZero() || !req.Start.Valid() || !req.End.Valid() {
		return Available()
	}
	if req.End <= req.Start {
		// Fail fast before any network call.
		return ConflictVerdict{Kind: VerdictCheckFailed, Reason: "end time must be after start time"}
	}

	duration := req.DurationMinutesHint
	if duration <= 0 {
		duration = int(req.End - req.Start)
	}
	if duration <= 0 {
		duration = DefaultDurationMinutes
	}

	if verdict, decided := c.checkOfferedSlots(ctx, req, duration); decided {
		return verdict
	}
	return c.crossCheckBookings(ctx, req)
}

// checkOfferedSlots consults the slot oracle. A failure is logged and skipped:
// the oracle is a fast-path optimization, not the source of truth.
func (c *DefaultChecker) checkOfferedSlots(ctx context.Context, req CheckRequest, duration int) (ConflictVerdict, bool) {
	slots, err := c.Slots.AvailableSlots(ctx, req.ProviderID, req.Date, duration)
	if err != nil {
		c.Logger.Warn("slot oracle query failed, falling through to booking cross-check",
			zap.String("providerId", req.ProviderID),
			zap.String("date", req.Date.String()),
			zap.Error(err))
		return ConflictVerdict{}, false
	}
	if len(slots) == 0 {
		return ConflictVerdict{Kind: VerdictNoSlotsForDay}, true
	}
	for _, s := range slots {
		if s == req.Start {
			return ConflictVerdict{}, false
		}
	}
	return ConflictVerdict{Kind: VerdictSlotNotOffered}, true
}

// crossCheckBookings runs the detailed ground-truth check against the
// provider's appointment list for the day.
func (c *DefaultChecker) crossCheckBookings(ctx context.Context, req CheckRequest) ConflictVerdict {
	appts, err := c.Bookings.ListAppointments(ctx, req.ProviderID, req.Date, req.Date)
	if err != nil {
		// Fail open: never block submission solely on a client-side check
		// failure. The backend re-validates the slot at submit time.
		c.Logger.Warn("booking oracle query failed, treating as available",
			zap.String("providerId", req.ProviderID),
			zap.String("date", req.Date.String()),
			zap.Error(err))
		return Available()
	}

	active := appts[:0:0]
	for _, apt := range appts {
		if apt.ID == req.ExcludeAppointmentID {
			continue
		}
		if !apt.Status.Active() {
			continue
		}
		active = append(active, apt)
	}

	if max, reached := c.dailyLimitReached(ctx, req.ProviderID, len(active)); reached {
		return ConflictVerdict{Kind: VerdictDailyLimitReached, Max: max}
	}

	var conflicts []Interval
	for _, apt := range active {
		// Half-open intervals: touching endpoints do not conflict.
		if req.End > apt.StartTime && req.Start < apt.EndTime {
			conflicts = append(conflicts, Interval{Start: apt.StartTime, End: apt.EndTime})
		}
	}
	if len(conflicts) > 0 {
		return ConflictVerdict{Kind: VerdictOverlaps, Conflicts: conflicts}
	}
	return Available()
}

func (c *DefaultChecker) dailyLimitReached(ctx context.Context, providerID string, activeCount int) (int, bool) {
	provider, err := c.Providers.ProviderByID(ctx, providerID)
	if err != nil {
		c.Logger.Warn("provider lookup failed, skipping daily-limit check",
			zap.String("providerId", providerID),
			zap.Error(err))
		return 0, false
	}
	if provider == nil || provider.MaxDailyAppointments == nil {
		return 0, false
	}
	max := *provider.MaxDailyAppointments
	return max, activeCount >= max
}
