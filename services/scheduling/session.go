package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinicsched/models"
)

// SessionCachePrefix namespaces draft keys in the shared cache.
const SessionCachePrefix = "sched:"

// DefaultSessionTTL bounds how long an untouched draft survives.
const DefaultSessionTTL = 30 * time.Minute

// EditRequest is one field edit arriving from the form.
type EditRequest struct {
	// Field is one of provider, patient, date, start, end, duration,
	// appointmentType, excludeAppointment.
	Field           string                  `json:"field"`
	Value           string                  `json:"value,omitempty"`
	DurationMinutes int                     `json:"durationMinutes,omitempty"`
	AppointmentType *models.AppointmentType `json:"appointmentType,omitempty"`
}

// SessionSnapshot is the client-visible view of one scheduling session.
type SessionSnapshot struct {
	SessionID string                  `json:"sessionId"`
	Draft     models.AppointmentDraft `json:"draft"`
	State     ControllerState         `json:"state"`
	Verdict   ConflictVerdict         `json:"verdict"`
}

// SessionService manages draft scheduling sessions for the form UI.
type SessionService interface {
	StartSession(ctx context.Context, initial *models.AppointmentDraft) (*SessionSnapshot, error)
	ApplyEdit(ctx context.Context, sessionID string, edit EditRequest) (*SessionSnapshot, error)
	Snapshot(ctx context.Context, sessionID string) (*SessionSnapshot, error)
	Submit(ctx context.Context, sessionID string) (SubmitResult, error)
	JoinWaitlist(ctx context.Context, sessionID string) (*models.WaitlistEntry, error)
	CancelSession(ctx context.Context, sessionID string) error
}

// DefaultSessionService keeps live controllers in memory (they own timers and
// in-flight checks) and mirrors each draft into Redis with a TTL, so a session
// survives a process restart with its provenance flags intact. Verdicts are
// never cached; a resumed session simply re-checks.
type DefaultSessionService struct {
	Cache    *redis.Client
	Checker  Checker
	Waitlist WaitlistService
	Writer   AppointmentWriter
	Logger   *zap.Logger
	TTL      time.Duration
	Debounce time.Duration

	mu   sync.Mutex
	live map[string]*Controller
}

// StartSession creates a session, optionally seeded with an existing
// appointment's fields for edit mode.
func (s *DefaultSessionService) StartSession(ctx context.Context, initial *models.AppointmentDraft) (*SessionSnapshot, error) {
	sessionID := uuid.New().String()
	sc := s.newController()
	if initial != nil {
		sc.RestoreDraft(*initial)
	}

	s.mu.Lock()
	if s.live == nil {
		s.live = make(map[string]*Controller)
	}
	s.live[sessionID] = sc
	s.mu.Unlock()

	if err := s.persistDraft(ctx, sessionID, sc.Draft()); err != nil {
		return nil, err
	}
	return s.snapshotOf(sessionID, sc), nil
}

// ApplyEdit normalizes the incoming value at the boundary, routes it through
// the controller and re-persists the draft.
func (s *DefaultSessionService) ApplyEdit(ctx context.Context, sessionID string, edit EditRequest) (*SessionSnapshot, error) {
	sc, err := s.controllerFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch edit.Field {
	case "provider":
		sc.SetProvider(edit.Value)
	case "patient":
		sc.SetPatient(edit.Value)
	case "excludeAppointment":
		sc.SetExcludeAppointment(edit.Value)
	case "date":
		date, err := models.ParseDateOnly(edit.Value)
		if err != nil {
			return nil, NewInvalidEditError(err.Error())
		}
		sc.SetDate(date)
	case "start":
		t, err := models.ParseTimeOfDay(edit.Value)
		if err != nil {
			return nil, NewInvalidEditError(err.Error())
		}
		sc.EditStart(t)
	case "end":
		t, err := models.ParseTimeOfDay(edit.Value)
		if err != nil {
			return nil, NewInvalidEditError(err.Error())
		}
		sc.EditEnd(t)
	case "duration":
		sc.EditDuration(edit.DurationMinutes)
	case "appointmentType":
		if edit.AppointmentType == nil {
			return nil, NewInvalidEditError("appointmentType edit requires an appointmentType body")
		}
		sc.SelectType(*edit.AppointmentType)
	default:
		return nil, NewInvalidEditError(fmt.Sprintf("unknown field %q", edit.Field))
	}

	if err := s.persistDraft(ctx, sessionID, sc.Draft()); err != nil {
		return nil, err
	}
	return s.snapshotOf(sessionID, sc), nil
}

// Snapshot returns the current draft, state and verdict.
func (s *DefaultSessionService) Snapshot(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	sc, err := s.controllerFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshotOf(sessionID, sc), nil
}

// Submit runs the final gate and hands off to the backend on success.
func (s *DefaultSessionService) Submit(ctx context.Context, sessionID string) (SubmitResult, error) {
	sc, err := s.controllerFor(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	result := sc.TrySubmit(ctx)
	if result.Ok {
		s.dropSession(ctx, sessionID)
	} else if err := s.persistDraft(ctx, sessionID, sc.Draft()); err != nil {
		s.Logger.Warn("failed to re-persist draft after blocked submit",
			zap.String("sessionId", sessionID), zap.Error(err))
	}
	return result, nil
}

// JoinWaitlist escapes a conflicted draft onto the provider's waitlist.
func (s *DefaultSessionService) JoinWaitlist(ctx context.Context, sessionID string) (*models.WaitlistEntry, error) {
	sc, err := s.controllerFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entry, err := sc.AddToWaitlist(ctx)
	if err != nil {
		return nil, err
	}
	s.dropSession(ctx, sessionID)
	return entry, nil
}

// CancelSession discards the draft entirely.
func (s *DefaultSessionService) CancelSession(ctx context.Context, sessionID string) error {
	s.dropSession(ctx, sessionID)
	return nil
}

func (s *DefaultSessionService) newController() *Controller {
	sc := NewController(s.Checker, s.Waitlist, s.Writer, s.Logger)
	if s.Debounce > 0 {
		sc.SetDebounce(s.Debounce)
	}
	return sc
}

// controllerFor returns the live controller, reviving it from the cached
// draft when the process has restarted since the session began.
func (s *DefaultSessionService) controllerFor(ctx context.Context, sessionID string) (*Controller, error) {
	s.mu.Lock()
	sc, ok := s.live[sessionID]
	s.mu.Unlock()
	if ok {
		return sc, nil
	}

	data, err := s.Cache.Get(ctx, SessionCachePrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, NewSessionNotFoundError(sessionID)
		}
		return nil, fmt.Errorf("failed to load scheduling session: %w", err)
	}
	var draft models.AppointmentDraft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse cached draft: %w", err)
	}

	sc = s.newController()
	sc.RestoreDraft(draft)

	s.mu.Lock()
	if s.live == nil {
		s.live = make(map[string]*Controller)
	}
	s.live[sessionID] = sc
	s.mu.Unlock()
	return sc, nil
}

func (s *DefaultSessionService) persistDraft(ctx context.Context, sessionID string, draft models.AppointmentDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if err := s.Cache.Set(ctx, SessionCachePrefix+sessionID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store scheduling session: %w", err)
	}
	return nil
}

func (s *DefaultSessionService) dropSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	if sc, ok := s.live[sessionID]; ok {
		sc.Reset()
		delete(s.live, sessionID)
	}
	s.mu.Unlock()
	if err := s.Cache.Del(ctx, SessionCachePrefix+sessionID).Err(); err != nil {
		s.Logger.Warn("failed to delete cached session", zap.String("sessionId", sessionID), zap.Error(err))
	}
}

func (s *DefaultSessionService) snapshotOf(sessionID string, sc *Controller) *SessionSnapshot {
	return &SessionSnapshot{
		SessionID: sessionID,
		Draft:     sc.Draft(),
		State:     sc.State(),
		Verdict:   sc.Verdict(),
	}
}
