package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/domodwyer/mailyak/v3"
	"github.com/rs/zerolog"
)

// Mailer delivers a rendered email to the configured recipients
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SMTPConfig configures an SMTP relay
type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	Recipients []string
}

// SMTPMailer sends through an authenticated SMTP relay. Port 465 uses
// implicit TLS, other ports upgrade with STARTTLS when offered.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a mailer for cfg
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, fmt.Errorf("SMTP host and user are required")
	}
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("NOTIFICATION_EMAILS is empty")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

func (m *SMTPMailer) addr() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}

// Send delivers e to every recipient. ctx bounds the whole exchange,
// including the dial.
func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	mail := mailyak.New(m.addr(), nil)
	mail.From(m.cfg.User)
	mail.To(m.cfg.Recipients...)
	mail.Subject(e.Subject)
	mail.Plain().Set(e.Text)
	mail.HTML().Set(e.HTML)

	msg, err := mail.MimeBuf()
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}
	if err := m.deliver(ctx, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	if m.cfg.Port == 465 {
		d := &tls.Dialer{Config: &tls.Config{ServerName: m.cfg.Host}}
		return d.DialContext(ctx, "tcp", m.addr())
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", m.addr())
}

func (m *SMTPMailer) deliver(ctx context.Context, msg []byte) error {
	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	// unblock reads and writes once ctx is done
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if m.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return err
			}
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(m.cfg.User); err != nil {
		return err
	}
	for _, rcpt := range m.cfg.Recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogMailer only logs what would have been sent. Used when SMTP is not
// configured.
type LogMailer struct {
	log zerolog.Logger
}

// NewLogMailer creates a LogMailer
func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, e Email) error {
	m.log.Info().Str("subject", e.Subject).Str("text", e.Text).Msg("Email not sent, SMTP not configured")
	return nil
}
