package events

import (
	"context"
)

// Event subjects published after each dispatch attempt. Downstream
// consumers (client portal notifications, analytics) subscribe to
// these; the reminder core never reads them back.
const (
	SubjectReminderSent   = "reminders.sent"
	SubjectReminderFailed = "reminders.failed"
)

// ReminderEvent is the JSON payload for both subjects.
type ReminderEvent struct {
	CompanyID    string `json:"company_id"`
	InvoiceID    string `json:"invoice_id"`
	ReminderType string `json:"reminder_type"`
	Recipient    string `json:"recipient"`
	Error        string `json:"error,omitempty"`
}

// Publisher emits reminder lifecycle events. Publishing is best-effort:
// a failed publish never fails the dispatch that triggered it.
type Publisher interface {
	Publish(ctx context.Context, subject string, event ReminderEvent) error
	Close()
}

// NoopPublisher discards all events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, event ReminderEvent) error {
	return nil
}

func (NoopPublisher) Close() {}
