package notify

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"wedding-site/internal/models"
)

// ErrUnsupportedTable is returned for change events from other tables
var ErrUnsupportedTable = errors.New("unsupported table")

// SecretHeader carries the shared secret on notification function calls
const SecretHeader = "X-Webhook-Secret"

// Authorized reports whether got matches secret. An empty secret authorizes
// nothing.
func Authorized(secret, got string) bool {
	return secret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(got)) == 1
}

// ChatSender sends a text message to a phone number
type ChatSender interface {
	SendMessage(ctx context.Context, phone, text string) error
}

// Notifier formats change events and sends them to the host
type Notifier struct {
	mailer     Mailer
	chat       ChatSender
	hostPhones []string
	secret     string
	loc        *time.Location
	log        zerolog.Logger
}

// Option configures a Notifier
type Option func(*Notifier)

// WithChat also sends a short text for each event to phones
func WithChat(chat ChatSender, phones []string) Option {
	return func(n *Notifier) {
		n.chat = chat
		n.hostPhones = phones
	}
}

// WithSecret sets the secret Handler expects in SecretHeader. Without it
// Handler rejects every call.
func WithSecret(secret string) Option {
	return func(n *Notifier) { n.secret = secret }
}

// WithLocation sets the time zone used for timestamps
func WithLocation(loc *time.Location) Option {
	return func(n *Notifier) { n.loc = loc }
}

// NewNotifier creates a notifier sending email through mailer
func NewNotifier(mailer Mailer, log zerolog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		mailer: mailer,
		loc:    time.Local,
		log:    log.With().Str("component", "notify").Logger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Render formats ev according to its table
func (n *Notifier) Render(ev models.ChangeEvent) (Email, error) {
	switch ev.Table {
	case models.TableRSVPs:
		return FormatRSVP(ev, n.loc)
	case models.TableSharedPhotos:
		return FormatPhoto(ev, n.loc)
	default:
		return Email{}, fmt.Errorf("%w: %q", ErrUnsupportedTable, ev.Table)
	}
}

// HandleEvent emails the host about ev and, when configured, sends the plain
// text summary by chat. Chat failures are logged only.
func (n *Notifier) HandleEvent(ctx context.Context, ev models.ChangeEvent) error {
	email, err := n.Render(ev)
	if err != nil {
		return err
	}

	if err := n.mailer.Send(ctx, email); err != nil {
		return err
	}
	n.log.Info().Str("table", ev.Table).Str("type", ev.Type).Str("subject", email.Subject).Msg("Notification sent")

	if n.chat != nil {
		for _, phone := range n.hostPhones {
			if err := n.chat.SendMessage(ctx, phone, email.Subject+"\n"+email.Text); err != nil {
				n.log.Warn().Err(err).Str("phone", phone).Msg("Failed to send chat notification")
			}
		}
	}
	return nil
}

// Deliver lets a Notifier act as a Feed sink
func (n *Notifier) Deliver(ctx context.Context, ev models.ChangeEvent) error {
	return n.HandleEvent(ctx, ev)
}

// Handler serves a notification function for table. The body is a change
// event; a missing table in the body defaults to table.
func (n *Notifier) Handler(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !Authorized(n.secret, r.Header.Get(SecretHeader)) {
			n.log.Warn().Str("table", table).Str("remote", r.RemoteAddr).Msg("Rejected notification call")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write(unauthorizedBody)
			return
		}

		ev, err := decodeEvent(r.Body, table)
		if err == nil {
			err = n.HandleEvent(r.Context(), ev)
		}

		status, body := Response(err)
		if err != nil {
			n.log.Error().Err(err).Str("table", table).Msg("Email error")
		}
		w.WriteHeader(status)
		w.Write(body)
	}
}

var unauthorizedBody = []byte(`{"error":"Unauthorized"}`)

// Response is the status and JSON body a notification function returns. The
// cause of a failure is logged by the caller, never returned.
func Response(err error) (int, []byte) {
	if err != nil {
		return http.StatusInternalServerError, []byte(`{"error":"Failed to send notification"}`)
	}
	return http.StatusOK, []byte(`{"success":true,"message":"Email sent"}`)
}

// UnauthorizedResponse is returned when the secret is missing or wrong
func UnauthorizedResponse() (int, []byte) {
	return http.StatusUnauthorized, unauthorizedBody
}

// DecodeEvent parses a change event, defaulting its table
func DecodeEvent(data []byte, table string) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("invalid payload: %w", err)
	}
	if ev.Table == "" {
		ev.Table = table
	}
	if ev.Type == "" {
		ev.Type = models.ChangeInsert
	}
	if len(ev.Record) == 0 {
		return ev, errors.New("invalid payload: missing record")
	}
	return ev, nil
}

func decodeEvent(body io.Reader, table string) (models.ChangeEvent, error) {
	data, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return models.ChangeEvent{}, err
	}
	return DecodeEvent(data, table)
}
