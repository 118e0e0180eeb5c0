package rsvp

import (
	"errors"

	"wedding-site/internal/matching"
)

var (
	// ErrNotFound is returned when a lookup matched nothing
	ErrNotFound = matching.ErrNotFound

	ErrIncompleteAttendance     = errors.New("attendance missing for one or more guests")
	ErrCastlePreferenceRequired = errors.New("accommodation preference required")
	ErrEmailRequired            = errors.New("email required")

	ErrSubmitFailed     = errors.New("rsvp submission failed")
	ErrSubmitInFlight   = errors.New("rsvp submission already in progress")
	ErrInvalidState     = errors.New("action not allowed in current state")
	ErrUnknownCandidate = errors.New("invitation is not one of the offered matches")
	ErrGuestIndex       = errors.New("guest index out of range")
	ErrSessionNotFound  = errors.New("session not found")
)

// IsValidation reports whether err blocks a submission without any state change
func IsValidation(err error) bool {
	return errors.Is(err, ErrIncompleteAttendance) ||
		errors.Is(err, ErrCastlePreferenceRequired) ||
		errors.Is(err, ErrEmailRequired) ||
		errors.Is(err, ErrGuestIndex)
}

// UserMessage maps an error to the static text shown to guests
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "We couldn't find your invitation. Please check your code and try again."
	case errors.Is(err, ErrIncompleteAttendance):
		return "Please indicate attendance for all guests in your party."
	case errors.Is(err, ErrCastlePreferenceRequired):
		return "Please select your accommodation preference."
	case errors.Is(err, ErrEmailRequired):
		return "Please enter your email address."
	case errors.Is(err, ErrSubmitInFlight):
		return "Your RSVP is already being submitted."
	case errors.Is(err, ErrSessionNotFound):
		return "Your session has expired. Please look up your invitation again."
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrUnknownCandidate), errors.Is(err, ErrGuestIndex):
		return "Please select an invitation first."
	default:
		return "There was an error submitting your RSVP. Please try again."
	}
}
