package rsvp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wedding-site/internal/matching"
	"wedding-site/internal/models"
)

// ResponseWriter stores a submitted response
type ResponseWriter interface {
	Upsert(ctx context.Context, r *models.RSVPResponse) (*models.RSVPResponse, error)
}

// Manager owns RSVP sessions and runs their transitions
type Manager struct {
	engine          *matching.Engine
	responses       ResponseWriter
	sessions        SessionStore
	autoLookupDelay time.Duration
	log             zerolog.Logger
	now             func() time.Time

	mu       sync.Mutex
	locks    map[string]*sessionLock
	inflight map[string]struct{}
}

type sessionLock struct {
	sync.Mutex
	refs int
}

// NewManager creates a session manager
func NewManager(engine *matching.Engine, responses ResponseWriter, sessions SessionStore, autoLookupDelay time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		engine:          engine,
		responses:       responses,
		sessions:        sessions,
		autoLookupDelay: autoLookupDelay,
		log:             log.With().Str("component", "rsvp").Logger(),
		now:             time.Now,
		locks:           make(map[string]*sessionLock),
		inflight:        make(map[string]struct{}),
	}
}

// AutoLookupDelay is how long a client should wait before looking up a code
// taken from the page URL.
func (m *Manager) AutoLookupDelay() time.Duration {
	return m.autoLookupDelay
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Start creates a new session in the lookup state
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	s := NewSession(uuid.NewString(), m.now())
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// StartFromQuery creates a session and, when values carries a code, pre-fills
// it and looks it up. A failed lookup still returns the new session.
func (m *Manager) StartFromQuery(ctx context.Context, values url.Values) (*Session, error) {
	s, err := m.Start(ctx)
	if err != nil {
		return nil, err
	}

	code := models.NormalizeCode(values.Get("code"))
	if code == "" {
		return s, nil
	}
	return m.LookupCode(ctx, s.ID, code)
}

// Get returns the current session
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.sessions.Load(ctx, id)
}

// update applies fn to a copy of the stored session and saves the copy only
// when fn succeeds. On error the stored session is returned unchanged.
func (m *Manager) update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	unlock := m.lock(id)
	defer unlock()

	current, err := m.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return current, err
	}

	next.UpdatedAt = m.now()
	if err := m.sessions.Save(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// LookupCode resolves an invitation code for the session
func (m *Manager) LookupCode(ctx context.Context, id, code string) (*Session, error) {
	return m.lookup(ctx, id, func(s *Session) (matching.Match, error) {
		s.LookupCode = models.NormalizeCode(code)
		return m.engine.LookupCode(ctx, code)
	})
}

// LookupName resolves a name fragment for the session
func (m *Manager) LookupName(ctx context.Context, id, fragment string) (*Session, error) {
	return m.lookup(ctx, id, func(*Session) (matching.Match, error) {
		return m.engine.LookupName(ctx, fragment)
	})
}

func (m *Manager) lookup(ctx context.Context, id string, find func(*Session) (matching.Match, error)) (*Session, error) {
	var notFound bool
	s, err := m.update(ctx, id, func(s *Session) error {
		if s.State != StateLookup {
			return ErrInvalidState
		}

		match, err := find(s)
		if err != nil && !errors.Is(err, matching.ErrNotFound) {
			return err
		}

		switch match.Outcome() {
		case matching.Single:
			s.Select(match.Invitations[0])
		case matching.Ambiguous:
			s.Offer(match.Invitations)
		default:
			s.Candidates = nil
			notFound = true
		}
		return nil
	})
	if err != nil {
		return s, err
	}
	if notFound {
		return s, ErrNotFound
	}

	if s.State == StateSelected {
		m.log.Info().
			Str("session_id", s.ID).
			Str("invitation_id", s.Invitation.ID).
			Msg("Invitation selected")
	}
	return s, nil
}

// Choose selects one of the offered candidates
func (m *Manager) Choose(ctx context.Context, id, invitationID string) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		return s.Choose(invitationID)
	})
}

// ChangeInvitation returns the session to lookup and clears the form
func (m *Manager) ChangeInvitation(ctx context.Context, id string) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		if s.State == StateSubmitted {
			return ErrInvalidState
		}
		s.Reset()
		return nil
	})
}

// SetAttendance records one guest's answer
func (m *Manager) SetAttendance(ctx context.Context, id string, index int, attending bool) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		return s.SetAttendance(index, attending)
	})
}

// Submit validates and stores the form. Validation failures change nothing
// and never reach the response store. A store failure keeps the session
// selected so the guest can retry.
func (m *Manager) Submit(ctx context.Context, id string, in SubmitInput) (*Session, error) {
	m.mu.Lock()
	if _, busy := m.inflight[id]; busy {
		m.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	m.inflight[id] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, id)
		m.mu.Unlock()
	}()

	if locker, ok := m.sessions.(SubmitLocker); ok {
		release, err := locker.LockSubmit(ctx, id)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	unlock := m.lock(id)
	defer unlock()

	current, err := m.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	s := current.Clone()
	if err := s.Apply(in); err != nil {
		return current, err
	}
	guests, err := s.Validate()
	if err != nil {
		return current, err
	}

	stored, err := m.responses.Upsert(ctx, s.Response(guests))
	if err != nil {
		m.log.Error().
			Err(err).
			Str("session_id", s.ID).
			Str("invitation_id", s.Invitation.ID).
			Msg("Failed to store RSVP")

		// keep what the guest typed so a retry does not start from scratch
		s.UpdatedAt = m.now()
		if saveErr := m.sessions.Save(ctx, s); saveErr != nil {
			m.log.Warn().Err(saveErr).Str("session_id", id).Msg("Failed to save RSVP draft")
			return current, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
		}
		return s, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	s.Complete(stored)
	s.UpdatedAt = m.now()
	if err := m.sessions.Save(ctx, s); err != nil {
		m.log.Warn().Err(err).Str("session_id", id).Msg("Failed to save submitted session")
	}

	m.log.Info().
		Str("invitation_id", stored.InvitationID).
		Int("revision", stored.Revision).
		Int("attending", stored.AttendingCount()).
		Int("total", len(stored.GuestResponses)).
		Msg("RSVP submitted")
	return s, nil
}
