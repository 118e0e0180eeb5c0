// Command notify-lambda runs the RSVP and photo notification functions as an
// API Gateway backed Lambda. POST /hooks/rsvp and /hooks/photo take the same
// change event payload and secret header as the HTTP server's hooks.
package main

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"wedding-site/internal/config"
	"wedding-site/internal/models"
	"wedding-site/internal/notify"
)

type eventHandler interface {
	HandleEvent(ctx context.Context, ev models.ChangeEvent) error
}

// tableFor maps the request path to the table whose events it handles
func tableFor(path string) string {
	switch {
	case strings.HasSuffix(path, "/rsvp"):
		return models.TableRSVPs
	case strings.HasSuffix(path, "/photo"):
		return models.TableSharedPhotos
	}
	return ""
}

// header looks up name ignoring case, as API Gateway passes headers through
// as sent
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func newHandler(n eventHandler, secret string, log zerolog.Logger) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		var status int
		var body []byte
		if notify.Authorized(secret, header(req.Headers, notify.SecretHeader)) {
			ev, err := notify.DecodeEvent([]byte(req.Body), tableFor(req.Path))
			if err == nil {
				err = n.HandleEvent(ctx, ev)
			}
			if err != nil {
				log.Error().Err(err).Str("path", req.Path).Msg("Email error")
			}
			status, body = notify.Response(err)
		} else {
			log.Warn().Str("path", req.Path).Msg("Rejected notification call")
			status, body = notify.UnauthorizedResponse()
		}

		return events.APIGatewayProxyResponse{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       string(body),
		}, nil
	}
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("component", "notify-lambda").Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.NotifyWebhookSecret == "" {
		log.Fatal().Msg("NOTIFY_WEBHOOK_SECRET is required")
	}

	var mailer notify.Mailer = notify.NewLogMailer(log)
	if cfg.SMTPEnabled() {
		if mailer, err = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			User:       cfg.SMTPUser,
			Password:   cfg.SMTPPassword,
			Recipients: cfg.NotificationEmails,
		}); err != nil {
			log.Fatal().Err(err).Msg("Failed to configure SMTP")
		}
	}

	lambda.Start(newHandler(notify.NewNotifier(mailer, log), cfg.NotifyWebhookSecret, log))
}
