// Package rsvp drives a guest through invitation lookup, per-guest attendance
// capture and submission.
package rsvp

import (
	"fmt"
	"strings"
	"time"

	"wedding-site/internal/models"
)

// State of an RSVP session
type State string

const (
	StateLookup    State = "lookup"
	StateSelected  State = "selected"
	StateSubmitted State = "submitted"
)

// GuestControl is one attending / not attending pair on the form. Name keeps
// the stored guest name; DisplayName is what the guest sees.
type GuestControl struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Attending   *bool  `json:"attending"`
}

// Form holds the free-form RSVP fields
type Form struct {
	CastlePreference    string `json:"castle_preference,omitempty"`
	DietaryRestrictions string `json:"dietary_restrictions,omitempty"`
	Email               string `json:"email,omitempty"`
	Message             string `json:"message,omitempty"`
}

// Session is the per-visitor RSVP state. It is plain data so it can be kept
// in any SessionStore.
type Session struct {
	ID           string              `json:"id"`
	State        State               `json:"state"`
	LookupCode   string              `json:"lookup_code,omitempty"`
	Invitation   *models.Invitation  `json:"invitation,omitempty"`
	Candidates   []models.Invitation `json:"candidates,omitempty"`
	Guests       []GuestControl      `json:"guests,omitempty"`
	Form         Form                `json:"form"`
	Confirmation *Confirmation       `json:"confirmation,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// SubmitInput is the form as posted. Attendance is aligned with the guest
// list; nil entries leave the current answer untouched.
type SubmitInput struct {
	Attendance          []*bool `json:"attendance"`
	CastlePreference    string  `json:"castle_preference"`
	DietaryRestrictions string  `json:"dietary_restrictions"`
	Email               string  `json:"email"`
	Message             string  `json:"message"`
}

// NewSession returns a session in the lookup state
func NewSession(id string, now time.Time) *Session {
	return &Session{ID: id, State: StateLookup, CreatedAt: now, UpdatedAt: now}
}

// BuildGuestList creates one unanswered control per guest name, in order
func BuildGuestList(names []string) []GuestControl {
	controls := make([]GuestControl, len(names))
	for i, name := range names {
		controls[i] = GuestControl{
			Index:       i,
			Name:        name,
			DisplayName: models.DisplayName(name),
		}
	}
	return controls
}

// Select moves the session to the selected state for inv
func (s *Session) Select(inv models.Invitation) {
	s.State = StateSelected
	s.Invitation = &inv
	s.LookupCode = inv.Code
	s.Candidates = nil
	s.Guests = BuildGuestList(inv.GuestNames)
	s.Form = Form{Email: inv.Email}
	s.Confirmation = nil
}

// Offer stores several matches for the guest to choose from
func (s *Session) Offer(candidates []models.Invitation) {
	s.Candidates = append([]models.Invitation(nil), candidates...)
}

// Choose selects one of the offered candidates
func (s *Session) Choose(invitationID string) error {
	if s.State != StateLookup {
		return ErrInvalidState
	}
	for _, inv := range s.Candidates {
		if inv.ID == invitationID {
			s.Select(inv)
			return nil
		}
	}
	return ErrUnknownCandidate
}

// Reset returns to the lookup state and forgets the selection, the offered
// matches and everything typed into the form.
func (s *Session) Reset() {
	s.State = StateLookup
	s.LookupCode = ""
	s.Invitation = nil
	s.Candidates = nil
	s.Guests = nil
	s.Form = Form{}
	s.Confirmation = nil
}

// SetAttendance records one guest's answer
func (s *Session) SetAttendance(index int, attending bool) error {
	if s.State != StateSelected {
		return ErrInvalidState
	}
	if index < 0 || index >= len(s.Guests) {
		return fmt.Errorf("%w: %d", ErrGuestIndex, index)
	}
	s.Guests[index].Attending = &attending
	return nil
}

func (s *Session) setField(field *string, value string) error {
	if s.State != StateSelected {
		return ErrInvalidState
	}
	*field = strings.TrimSpace(value)
	return nil
}

func (s *Session) SetCastlePreference(v string) error { return s.setField(&s.Form.CastlePreference, v) }
func (s *Session) SetDietary(v string) error          { return s.setField(&s.Form.DietaryRestrictions, v) }
func (s *Session) SetEmail(v string) error            { return s.setField(&s.Form.Email, v) }
func (s *Session) SetMessage(v string) error          { return s.setField(&s.Form.Message, v) }

// Apply copies a posted form onto the session
func (s *Session) Apply(in SubmitInput) error {
	if s.State != StateSelected {
		return ErrInvalidState
	}
	if len(in.Attendance) > len(s.Guests) {
		return fmt.Errorf("%w: %d answers for %d guests", ErrGuestIndex, len(in.Attendance), len(s.Guests))
	}
	for i, a := range in.Attendance {
		if a != nil {
			v := *a
			s.Guests[i].Attending = &v
		}
	}
	s.Form = Form{
		CastlePreference:    strings.TrimSpace(in.CastlePreference),
		DietaryRestrictions: strings.TrimSpace(in.DietaryRestrictions),
		Email:               strings.TrimSpace(in.Email),
		Message:             strings.TrimSpace(in.Message),
	}
	return nil
}

// Validate checks the form and returns the guest responses in guest order
func (s *Session) Validate() (models.GuestResponses, error) {
	if s.State != StateSelected || s.Invitation == nil {
		return nil, ErrInvalidState
	}

	responses := make(models.GuestResponses, 0, len(s.Guests))
	anyAttending := false
	for _, g := range s.Guests {
		if g.Attending == nil {
			return nil, ErrIncompleteAttendance
		}
		anyAttending = anyAttending || *g.Attending
		responses = append(responses, models.GuestResponse{Name: g.Name, Attending: *g.Attending})
	}

	if anyAttending && s.Form.CastlePreference == "" {
		return nil, ErrCastlePreferenceRequired
	}
	if s.Form.Email == "" {
		return nil, ErrEmailRequired
	}
	return responses, nil
}

// Response builds the record to store from a validated form
func (s *Session) Response(guests models.GuestResponses) *models.RSVPResponse {
	return &models.RSVPResponse{
		InvitationID:        s.Invitation.ID,
		GuestResponses:      guests,
		DietaryRestrictions: s.Form.DietaryRestrictions,
		CastlePreference:    s.Form.CastlePreference,
		Email:               s.Form.Email,
		Message:             s.Form.Message,
	}
}

// Complete moves the session to the terminal submitted state
func (s *Session) Complete(stored *models.RSVPResponse) {
	s.State = StateSubmitted
	s.Confirmation = NewConfirmation(stored.AttendingCount(), len(stored.GuestResponses))
}

// Greeting is the header shown above the form
func (s *Session) Greeting() string {
	if s.Invitation == nil {
		return ""
	}
	return "Welcome, " + s.Invitation.PartyName + "!"
}

// PartyInfo is the line under the greeting
func (s *Session) PartyInfo() string {
	if s.Invitation == nil {
		return ""
	}
	return fmt.Sprintf("Your party of %d is invited to celebrate with us.", s.Invitation.PartySize)
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	c := *s
	if s.Invitation != nil {
		inv := *s.Invitation
		inv.GuestNames = append(models.StringList(nil), s.Invitation.GuestNames...)
		c.Invitation = &inv
	}
	c.Candidates = append([]models.Invitation(nil), s.Candidates...)
	c.Guests = make([]GuestControl, len(s.Guests))
	for i, g := range s.Guests {
		c.Guests[i] = g
		if g.Attending != nil {
			v := *g.Attending
			c.Guests[i].Attending = &v
		}
	}
	if s.Confirmation != nil {
		conf := *s.Confirmation
		c.Confirmation = &conf
	}
	return &c
}
