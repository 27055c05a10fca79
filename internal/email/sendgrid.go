package email

import (
	"context"
	"fmt"
	netmail "net/mail"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender implements the Sender interface using the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender creates a new SendGrid email sender.
func NewSendGridSender(apiKey string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey)}
}

// Name implements Sender.
func (s *SendGridSender) Name() string { return "sendgrid" }

// Send sends an email via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, email *Email) (string, error) {
	if len(email.To) == 0 {
		return "", ErrInvalidToAddress
	}

	m := mail.NewV3Mail()
	// From may arrive as a bare address or "Name <addr>".
	from := mail.NewEmail("", email.From)
	if addr, err := netmail.ParseAddress(email.From); err == nil {
		from = mail.NewEmail(addr.Name, addr.Address)
	}
	m.SetFrom(from)
	if email.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", email.ReplyTo))
	}
	m.Subject = email.Subject

	personalization := mail.NewPersonalization()
	for _, to := range email.To {
		personalization.AddTos(mail.NewEmail("", to))
	}
	for name, value := range email.Headers {
		personalization.SetHeader(name, value)
	}
	m.AddPersonalizations(personalization)

	if email.TextBody != "" {
		m.AddContent(mail.NewContent("text/plain", email.TextBody))
	}
	if email.HTMLBody != "" {
		m.AddContent(mail.NewContent("text/html", email.HTMLBody))
	}

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return "", fmt.Errorf("failed to send via sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("sendgrid API error (status %d): %s", resp.StatusCode, resp.Body)
	}

	// SendGrid exposes the message ID as a response header.
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
