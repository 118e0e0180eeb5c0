package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-site/internal/models"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (m *recordingMailer) Send(_ context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

func (m *recordingMailer) all() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}

type recordingChat struct {
	messages map[string]string
}

func (c *recordingChat) SendMessage(_ context.Context, phone, text string) error {
	if c.messages == nil {
		c.messages = map[string]string{}
	}
	c.messages[phone] = text
	return nil
}

func rsvpEvent(t *testing.T, changeType string, responses models.GuestResponses) models.ChangeEvent {
	t.Helper()
	ev, err := models.NewChangeEvent(changeType, models.TableRSVPs, models.RSVPResponse{
		ID:               "r1",
		InvitationID:     "demo-2",
		GuestResponses:   responses,
		CastlePreference: "castle",
		SubmittedAt:      time.Date(2026, 6, 20, 14, 5, 9, 0, time.UTC),
	})
	require.NoError(t, err)
	return ev
}

func TestFormatRSVP(t *testing.T) {
	both := models.GuestResponses{{Name: "Michael Jones", Attending: true}, {Name: "Lisa Jones", Attending: false}}
	none := models.GuestResponses{{Name: "Michael Jones"}, {Name: "Lisa Jones"}}

	tests := []struct {
		name        string
		ev          models.ChangeEvent
		wantSubject string
		wantText    string
	}{
		{"insert partial", rsvpEvent(t, models.ChangeInsert, both), "New RSVP: Michael Jones", "RSVP Received: Michael Jones attending, Lisa Jones declined."},
		{"insert declined", rsvpEvent(t, models.ChangeInsert, none), "New RSVP: Declined", "RSVP Received: None attending, Michael Jones, Lisa Jones declined."},
		{"update declined", rsvpEvent(t, models.ChangeUpdate, none), "RSVP Updated: Response changed", "RSVP Updated: None attending, Michael Jones, Lisa Jones declined."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := FormatRSVP(tt.ev, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, email.Subject)
			assert.Equal(t, tt.wantText, email.Text)
			assert.Contains(t, email.HTML, "<p>castle</p>")
			assert.Contains(t, email.HTML, "<p>No message</p>")
			assert.Contains(t, email.HTML, "<h3>Dietary Notes:</h3><p>None</p>")
			assert.Contains(t, email.HTML, "Submitted: 6/20/2026, 2:05:09 PM")
		})
	}
}

func TestFormatRSVP_GuestResponsesAsString(t *testing.T) {
	ev := models.ChangeEvent{
		Type:   models.ChangeInsert,
		Table:  models.TableRSVPs,
		Record: json.RawMessage(`{"guest_responses":"[{\"name\":\"David Brown\",\"attending\":true}]","message":"<b>hi</b>"}`),
	}

	email, err := FormatRSVP(ev, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "New RSVP: David Brown", email.Subject)
	assert.Contains(t, email.HTML, "&lt;b&gt;hi&lt;/b&gt;")
	assert.Contains(t, email.HTML, "<p>Not specified</p>")
}

func TestFormatPhoto(t *testing.T) {
	ev, err := models.NewChangeEvent(models.ChangeInsert, models.TableSharedPhotos, models.SharedPhoto{
		FileURL:      "https://cdn.example.com/1_abc_a.jpg",
		UploaderName: "Ann",
		Caption:      "First dance",
		CreatedAt:    time.Date(2026, 6, 20, 21, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	email, err := FormatPhoto(ev, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "New Photo Shared by Ann", email.Subject)
	assert.Equal(t, "New photo shared by Ann. View at your wedding website.", email.Text)
	assert.Contains(t, email.HTML, "<strong>Caption:</strong> First dance")
	assert.Contains(t, email.HTML, `src="https://cdn.example.com/1_abc_a.jpg"`)
	assert.Contains(t, email.HTML, "Uploaded: 6/20/2026, 9:00:00 PM")

	ev.Record = json.RawMessage(`{"file_url":"x.jpg","uploader_name":"Bob","caption":null}`)
	email, err = FormatPhoto(ev, time.UTC)
	require.NoError(t, err)
	assert.NotContains(t, email.HTML, "Caption:")
}

func TestNotifier_HandleEvent(t *testing.T) {
	mailer := &recordingMailer{}
	chat := &recordingChat{}
	n := NewNotifier(mailer, zerolog.Nop(), WithLocation(time.UTC), WithChat(chat, []string{"15550001", "15550002"}))

	require.NoError(t, n.HandleEvent(context.Background(), rsvpEvent(t, models.ChangeInsert, models.GuestResponses{{Name: "A", Attending: true}})))
	require.Len(t, mailer.all(), 1)
	assert.Len(t, chat.messages, 2)
	assert.True(t, strings.HasPrefix(chat.messages["15550001"], "New RSVP: A\n"))

	err := n.HandleEvent(context.Background(), models.ChangeEvent{Table: "invitations", Record: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, ErrUnsupportedTable)
}

func TestNotifier_Handler(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, zerolog.Nop(), WithLocation(time.UTC), WithSecret("s3cret"))
	h := n.Handler(models.TableRSVPs)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/hooks/rsvp", strings.NewReader(body))
		req.Header.Set(SecretHeader, "s3cret")
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	body := `{"type":"UPDATE","record":{"guest_responses":[{"name":"A","attending":true}]}}`
	rec := post(body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Email sent"}`, rec.Body.String())
	require.Len(t, mailer.all(), 1)
	assert.Equal(t, "RSVP Updated: A", mailer.all()[0].Subject)

	mailer.err = errors.New("smtp: 535 authentication failed")
	rec = post(body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to send notification"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "535")

	rec = post("not json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNotifier_HandlerRejectsMissingSecret(t *testing.T) {
	body := `{"type":"INSERT","record":{"uploader_name":"Ann","file_url":"x"}}`

	tests := []struct {
		name   string
		secret string
		header string
	}{
		{name: "no header", secret: "s3cret", header: ""},
		{name: "wrong header", secret: "s3cret", header: "guess"},
		{name: "no secret configured", secret: "", header: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &recordingMailer{}
			h := NewNotifier(mailer, zerolog.Nop(), WithSecret(tt.secret)).Handler(models.TableSharedPhotos)

			req := httptest.NewRequest(http.MethodPost, "/hooks/photo", strings.NewReader(body))
			if tt.header != "" {
				req.Header.Set(SecretHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, mailer.all())
		})
	}
}

func TestFeed_DeliversAndDrainsOnClose(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, zerolog.Nop())
	feed := NewFeed(8, zerolog.Nop(), n)
	go feed.Run(context.Background())

	for i := 0; i < 5; i++ {
		feed.Publish(rsvpEvent(t, models.ChangeInsert, models.GuestResponses{{Name: "A", Attending: true}}))
	}
	feed.Close()

	assert.Len(t, mailer.all(), 5)
}

func TestFeed_DropsWhenFull(t *testing.T) {
	mailer := &recordingMailer{}
	feed := NewFeed(1, zerolog.Nop(), NewNotifier(mailer, zerolog.Nop()))

	ev := rsvpEvent(t, models.ChangeInsert, nil)
	feed.Publish(ev)
	feed.Publish(ev)

	go feed.Run(context.Background())
	feed.Close()
	assert.Len(t, mailer.all(), 1)
}

func TestWebhookSink(t *testing.T) {
	var gotPath, gotSecret string
	var got models.ChangeEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecret = r.Header.Get(SecretHeader)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		if strings.Contains(string(data), "fail") {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL+"/", "s3cret", srv.Client())
	ev, err := models.NewChangeEvent(models.ChangeInsert, models.TableSharedPhotos, models.SharedPhoto{UploaderName: "Ann"})
	require.NoError(t, err)

	require.NoError(t, sink.Deliver(context.Background(), ev))
	assert.Equal(t, "/hooks/photo", gotPath)
	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, models.TableSharedPhotos, got.Table)

	ev.Record = json.RawMessage(`{"uploader_name":"fail"}`)
	require.Error(t, sink.Deliver(context.Background(), ev))

	require.ErrorIs(t, sink.Deliver(context.Background(), models.ChangeEvent{Table: "other"}), ErrUnsupportedTable)
}

func TestSMTPMailer_SendStopsAtContextDeadline(t *testing.T) {
	// accepts connections but never sends a greeting
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		var conns []net.Conn
		for {
			conn, err := ln.Accept()
			if err != nil {
				for _, c := range conns {
					c.Close()
				}
				return
			}
			conns = append(conns, conn)
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	m, err := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, User: "host@example.com", Recipients: []string{"host@example.com"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.Send(ctx, Email{Subject: "New RSVP: A", Text: "A", HTML: "<p>A</p>"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
