package rsvp

import "fmt"

const closingSentence = " We will be in touch with more details soon."

// Confirmation is shown once a response has been stored
type Confirmation struct {
	Message        string `json:"message"`
	AttendingCount int    `json:"attending_count"`
	TotalCount     int    `json:"total_count"`
}

// NewConfirmation builds the confirmation for attending out of total guests
func NewConfirmation(attending, total int) *Confirmation {
	return &Confirmation{
		Message:        ConfirmationMessage(attending, total),
		AttendingCount: attending,
		TotalCount:     total,
	}
}

// ConfirmationMessage depends only on how many of the party are attending
func ConfirmationMessage(attending, total int) string {
	var msg string
	switch {
	case attending <= 0:
		msg = "We are sorry you will not be able to join us. You will be missed!"
	case attending >= total && total == 1:
		msg = "We are thrilled that you will be joining us!"
	case attending >= total:
		msg = "We are thrilled that your whole party will be joining us!"
	default:
		msg = fmt.Sprintf("%d of %d guests will be attending. We look forward to celebrating with you!", attending, total)
	}
	return msg + closingSentence
}
