package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	mail "github.com/go-mail/mail"
)

type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	User     string
	Password string
	// TLSMode is "auto" (STARTTLS when offered), "ssl" or "none".
	TLSMode string
}

type SMTPSender struct {
	cfg  SMTPConfig
	send func(d *mail.Dialer, m *mail.Message) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPSender{
		cfg: cfg,
		send: func(d *mail.Dialer, m *mail.Message) error {
			return d.DialAndSend(m)
		},
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := s.buildMessage(msg)

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}

	if err := s.send(d, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	slog.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (s *SMTPSender) buildMessage(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	// multipart/alternative with the plain text part first
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}

	return m
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no SMTP host is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	slog.Info("email delivery disabled, logging message", "to", msg.To, "subject", msg.Subject, "body", msg.TextBody)
	return nil
}
