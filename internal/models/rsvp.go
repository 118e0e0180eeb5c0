package models

import (
	"database/sql/driver"
	"time"
)

// RSVPResponse is the attendance response tied one-to-one to an invitation
type RSVPResponse struct {
	ID                  string         `json:"id" db:"id"`
	InvitationID        string         `json:"invitation_id" db:"invitation_id"`
	GuestResponses      GuestResponses `json:"guest_responses" db:"guest_responses"`
	DietaryRestrictions string         `json:"dietary_restrictions" db:"dietary_restrictions"`
	CastlePreference    string         `json:"castle_preference" db:"castle_preference"`
	Email               string         `json:"email" db:"email"`
	Message             string         `json:"message" db:"message"`
	Revision            int            `json:"revision" db:"revision"`
	SubmittedAt         time.Time      `json:"submitted_at" db:"submitted_at"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
}

// AttendingCount returns how many guests are attending
func (r RSVPResponse) AttendingCount() int {
	n := 0
	for _, g := range r.GuestResponses {
		if g.Attending {
			n++
		}
	}
	return n
}

// Status summarises the response
func (r *RSVPResponse) Status() RSVPStatus {
	if r == nil || len(r.GuestResponses) == 0 {
		return RSVPPending
	}
	switch n := r.AttendingCount(); {
	case n == 0:
		return RSVPDeclined
	case n == len(r.GuestResponses):
		return RSVPAttending
	default:
		return RSVPPartial
	}
}

// GuestResponses is stored as a JSON array in a text column
type GuestResponses []GuestResponse

// Value implements driver.Valuer
func (g GuestResponses) Value() (driver.Value, error) {
	return marshalColumn(g)
}

// Scan implements sql.Scanner
func (g *GuestResponses) Scan(src any) error {
	return unmarshalColumn(src, g)
}
