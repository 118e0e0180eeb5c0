package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wedding-site/internal/models"
)

// Sink receives change events from a Feed
type Sink interface {
	Deliver(ctx context.Context, ev models.ChangeEvent) error
}

// Feed delivers change events to sinks from a background worker so store
// writes never wait on email or webhooks.
type Feed struct {
	events  chan models.ChangeEvent
	sinks   []Sink
	timeout time.Duration
	log     zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewFeed creates a feed buffering up to size events
func NewFeed(size int, log zerolog.Logger, sinks ...Sink) *Feed {
	if size < 1 {
		size = 1
	}
	return &Feed{
		events:  make(chan models.ChangeEvent, size),
		sinks:   sinks,
		timeout: 30 * time.Second,
		log:     log.With().Str("component", "feed").Logger(),
		done:    make(chan struct{}),
	}
}

// Publish queues ev. When the buffer is full the event is dropped.
func (f *Feed) Publish(ev models.ChangeEvent) {
	select {
	case f.events <- ev:
	default:
		f.log.Warn().Str("table", ev.Table).Str("type", ev.Type).Msg("Change feed full, event dropped")
	}
}

// Run delivers events until Close is called and the buffer is drained
func (f *Feed) Run(ctx context.Context) {
	defer close(f.done)
	for ev := range f.events {
		for _, sink := range f.sinks {
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
			if err := sink.Deliver(dctx, ev); err != nil {
				f.log.Error().Err(err).Str("table", ev.Table).Str("type", ev.Type).Msg("Failed to deliver change event")
			}
			cancel()
		}
	}
}

// Close stops accepting events and waits for Run to drain the buffer. Run
// must have been started.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.events) })
	<-f.done
}

// WebhookSink posts change events to <base>/hooks/rsvp or <base>/hooks/photo
// with the shared secret in SecretHeader.
type WebhookSink struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewWebhookSink creates a sink for the notification functions at baseURL
func NewWebhookSink(baseURL, secret string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebhookSink{baseURL: strings.TrimRight(baseURL, "/"), secret: secret, client: client}
}

func (s *WebhookSink) Deliver(ctx context.Context, ev models.ChangeEvent) error {
	var path string
	switch ev.Table {
	case models.TableRSVPs:
		path = "/hooks/rsvp"
	case models.TableSharedPhotos:
		path = "/hooks/photo"
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedTable, ev.Table)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, s.secret)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
