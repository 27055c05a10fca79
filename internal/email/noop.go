package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NoopSender is the development/staging fallback used when no email
// provider is configured. Sends report success without any outbound
// call, so the surrounding dispatch flow (log rows, status updates)
// behaves exactly as in production.
type NoopSender struct {
	logger *slog.Logger
}

// NewNoopSender creates a no-op sender.
func NewNoopSender(logger *slog.Logger) *NoopSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopSender{logger: logger}
}

// Name implements Sender.
func (s *NoopSender) Name() string { return "noop" }

// Send logs the email and reports success.
func (s *NoopSender) Send(ctx context.Context, email *Email) (string, error) {
	s.logger.Info("email provider not configured, skipping send",
		"to", email.To,
		"subject", email.Subject,
	)
	return fmt.Sprintf("noop-%d", time.Now().UnixNano()), nil
}
