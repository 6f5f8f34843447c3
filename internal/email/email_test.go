package email

import (
	"context"
	"errors"
	"testing"

	mail "github.com/go-mail/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestConfirmationMailerRendersLinkAndPixel(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg Message) bool {
		return msg.To == "a@x.com" &&
			msg.Subject == confirmationSubject &&
			assert.Contains(t, msg.HTMLBody, "https://api.example/api/v1/auth/confirmed_email/tok") &&
			assert.Contains(t, msg.HTMLBody, `src="https://api.example/api/v1/auth/opened/alice"`) &&
			assert.Contains(t, msg.TextBody, "Hi alice,")
	})).Return(nil).Once()

	mailer, err := NewConfirmationMailer(sender)
	require.NoError(t, err)

	err = mailer.SendConfirmation(context.Background(), Confirmation{
		To:          "a@x.com",
		Username:    "alice",
		Link:        "https://api.example/api/v1/auth/confirmed_email/tok",
		TrackingURL: "https://api.example/api/v1/auth/opened/alice",
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestConfirmationMailerEscapesUsername(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg Message) bool {
		return assert.NotContains(t, msg.HTMLBody, "<script>")
	})).Return(nil).Once()

	mailer, err := NewConfirmationMailer(sender)
	require.NoError(t, err)

	require.NoError(t, mailer.SendConfirmation(context.Background(), Confirmation{
		To:       "a@x.com",
		Username: "<script>",
		Link:     "https://api.example/confirm",
	}))
}

func TestSMTPSenderBuildsDialer(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example", Port: 465, From: "no-reply@example", TLSMode: "ssl"})

	var captured *mail.Dialer
	s.send = func(d *mail.Dialer, m *mail.Message) error {
		captured = d
		assert.Equal(t, []string{"a@x.com"}, m.GetHeader("To"))
		return nil
	}

	require.NoError(t, s.Send(context.Background(), Message{To: "a@x.com", Subject: "hi", TextBody: "hello"}))
	require.NotNil(t, captured)
	assert.True(t, captured.SSL)
	assert.Equal(t, "smtp.example", captured.Host)
}

func TestSMTPSenderWrapsFailure(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example", Port: 587})
	boom := errors.New("connection refused")
	s.send = func(*mail.Dialer, *mail.Message) error { return boom }

	err := s.Send(context.Background(), Message{To: "a@x.com"})
	assert.ErrorIs(t, err, boom)
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example", Port: 587})
	s.send = func(*mail.Dialer, *mail.Message) error {
		t.Fatal("send must not be attempted")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@x.com"}), context.Canceled)
}
