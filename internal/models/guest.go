package models

import "strings"

// PlaceholderGuest is the guest name used for an unnamed plus-one
const PlaceholderGuest = "guest"

// GuestResponse is one guest's attendance answer
type GuestResponse struct {
	Name      string `json:"name"`
	Attending bool   `json:"attending"`
}

// RSVPStatus summarises an invitation's response
type RSVPStatus string

const (
	RSVPPending   RSVPStatus = "pending"
	RSVPAttending RSVPStatus = "attending"
	RSVPPartial   RSVPStatus = "partial"
	RSVPDeclined  RSVPStatus = "declined"
)

// ParseRSVPStatus converts a user supplied status name
func ParseRSVPStatus(s string) (RSVPStatus, bool) {
	switch status := RSVPStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case RSVPPending, RSVPAttending, RSVPPartial, RSVPDeclined:
		return status, true
	}
	return "", false
}

// IsPlaceholderGuest reports whether name stands for an unnamed plus-one
func IsPlaceholderGuest(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), PlaceholderGuest)
}

// DisplayName returns the name shown on the RSVP form for a guest
func DisplayName(name string) string {
	if IsPlaceholderGuest(name) {
		return "Your Guest"
	}
	return name
}
