// Package notify turns RSVP and photo change events into host notifications.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"wedding-site/internal/models"
)

const timestampLayout = "1/2/2006, 3:04:05 PM"

// Email is a rendered notification
type Email struct {
	Subject string
	HTML    string
	Text    string
}

// guestList accepts guest_responses either as a JSON array or as a string
// holding one.
type guestList []models.GuestResponse

func (g *guestList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = []byte(inner)
	}
	if len(data) == 0 || string(data) == "null" {
		*g = nil
		return nil
	}

	var list []models.GuestResponse
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("invalid guest_responses: %w", err)
	}
	*g = list
	return nil
}

type rsvpRecord struct {
	ID                  string    `json:"id"`
	InvitationID        string    `json:"invitation_id"`
	GuestResponses      guestList `json:"guest_responses"`
	DietaryRestrictions string    `json:"dietary_restrictions"`
	CastlePreference    string    `json:"castle_preference"`
	Message             string    `json:"message"`
	SubmittedAt         time.Time `json:"submitted_at"`
}

type photoRecord struct {
	ID           string    `json:"id"`
	FileURL      string    `json:"file_url"`
	UploaderName string    `json:"uploader_name"`
	Caption      string    `json:"caption"`
	CreatedAt    time.Time `json:"created_at"`
}

var rsvpTemplate = template.Must(template.New("rsvp").Parse(
	`<html><body style="font-family: Arial, sans-serif; padding: 20px;">` +
		`<h2 style="color: #333;">Wedding RSVP {{.Action}}</h2>` +
		`<h3 style="color: #4ade80;">Attending:</h3><p>{{.Attending}}</p>` +
		`<h3 style="color: #f87171;">Unable to Attend:</h3><p>{{.Declining}}</p>` +
		`<h3>Accommodation Preference:</h3><p>{{.Accommodation}}</p>` +
		`<h3>Dietary Notes:</h3><p>{{.Dietary}}</p>` +
		`<h3>Message:</h3><p>{{.Message}}</p>` +
		`<hr style="border: none; border-top: 1px solid #ddd; margin: 20px 0;">` +
		`<p style="color: #666; font-size: 12px;">Submitted: {{.Timestamp}}</p>` +
		`</body></html>`))

var photoTemplate = template.Must(template.New("photo").Parse(
	`<html><body style="font-family: Arial, sans-serif; padding: 20px;">` +
		`<h2 style="color: #333;">New Wedding Photo Uploaded</h2>` +
		`<p><strong>Shared by:</strong> {{.Uploader}}</p>` +
		`{{if .Caption}}<p><strong>Caption:</strong> {{.Caption}}</p>{{end}}` +
		`<p><img src="{{.URL}}" alt="Shared photo" style="max-width: 400px; border-radius: 8px; margin: 10px 0;"></p>` +
		`<hr style="border: none; border-top: 1px solid #ddd; margin: 20px 0;">` +
		`<p style="color: #666; font-size: 12px;">Uploaded: {{.Timestamp}}</p>` +
		`</body></html>`))

// FormatRSVP renders the host email for an RSVP insert or update
func FormatRSVP(ev models.ChangeEvent, loc *time.Location) (Email, error) {
	var rec rsvpRecord
	if err := json.Unmarshal(ev.Record, &rec); err != nil {
		return Email{}, fmt.Errorf("invalid rsvp record: %w", err)
	}

	var attending, declining []string
	for _, g := range rec.GuestResponses {
		if g.Attending {
			attending = append(attending, g.Name)
		} else {
			declining = append(declining, g.Name)
		}
	}

	updated := ev.Type == models.ChangeUpdate
	action := "Received"
	subject := "New RSVP: " + joinOr(attending, "Declined")
	if updated {
		action = "Updated"
		subject = "RSVP Updated: " + joinOr(attending, "Response changed")
	}

	data := struct {
		Action, Attending, Declining, Accommodation, Dietary, Message, Timestamp string
	}{
		Action:        action,
		Attending:     joinOr(attending, "None"),
		Declining:     joinOr(declining, "None"),
		Accommodation: orDefault(rec.CastlePreference, "Not specified"),
		Dietary:       orDefault(rec.DietaryRestrictions, "None"),
		Message:       orDefault(rec.Message, "No message"),
		Timestamp:     formatTime(rec.SubmittedAt, loc),
	}

	var body bytes.Buffer
	if err := rsvpTemplate.Execute(&body, data); err != nil {
		return Email{}, err
	}

	return Email{
		Subject: subject,
		HTML:    body.String(),
		Text:    fmt.Sprintf("RSVP %s: %s attending, %s declined.", action, data.Attending, data.Declining),
	}, nil
}

// FormatPhoto renders the host email for a new shared photo
func FormatPhoto(ev models.ChangeEvent, loc *time.Location) (Email, error) {
	var rec photoRecord
	if err := json.Unmarshal(ev.Record, &rec); err != nil {
		return Email{}, fmt.Errorf("invalid photo record: %w", err)
	}

	data := struct {
		Uploader, Caption, URL, Timestamp string
	}{
		Uploader:  rec.UploaderName,
		Caption:   rec.Caption,
		URL:       rec.FileURL,
		Timestamp: formatTime(rec.CreatedAt, loc),
	}

	var body bytes.Buffer
	if err := photoTemplate.Execute(&body, data); err != nil {
		return Email{}, err
	}

	return Email{
		Subject: "New Photo Shared by " + rec.UploaderName,
		HTML:    body.String(),
		Text:    fmt.Sprintf("New photo shared by %s. View at your wedding website.", rec.UploaderName),
	}, nil
}

func joinOr(names []string, fallback string) string {
	if len(names) == 0 {
		return fallback
	}
	return strings.Join(names, ", ")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		t = time.Now()
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(timestampLayout)
}
