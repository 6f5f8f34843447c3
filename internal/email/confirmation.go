package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*
var templatesFS embed.FS

const confirmationSubject = "Confirm your email"

type Confirmation struct {
	To          string
	Username    string
	Link        string
	TrackingURL string
}

// ConfirmationMailer renders and sends the signup confirmation email.
type ConfirmationMailer struct {
	sender Sender
	html   *htmltemplate.Template
	text   *texttemplate.Template
}

func NewConfirmationMailer(sender Sender) (*ConfirmationMailer, error) {
	html, err := htmltemplate.ParseFS(templatesFS, "templates/confirm_email.html")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}

	text, err := texttemplate.ParseFS(templatesFS, "templates/confirm_email.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}

	return &ConfirmationMailer{sender: sender, html: html, text: text}, nil
}

func (m *ConfirmationMailer) SendConfirmation(ctx context.Context, c Confirmation) error {
	var html, text bytes.Buffer
	if err := m.html.Execute(&html, c); err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}
	if err := m.text.Execute(&text, c); err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	return m.sender.Send(ctx, Message{
		To:       c.To,
		Subject:  confirmationSubject,
		HTMLBody: html.String(),
		TextBody: text.String(),
	})
}
