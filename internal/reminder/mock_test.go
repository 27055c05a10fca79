package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/sitecraft/reminders/internal/domain"
	"github.com/sitecraft/reminders/internal/email"
	"github.com/sitecraft/reminders/internal/events"
	"github.com/sitecraft/reminders/internal/telemetry"
)

type mockStore = domain.MockReminderStore

// mockSender records sent emails and fails on demand.
type mockSender struct {
	mu    sync.Mutex
	sent  []*email.Email
	err   error
	msgID string
}

func (m *mockSender) Send(ctx context.Context, e *email.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, e)
	if m.msgID != "" {
		return m.msgID, nil
	}
	return "mock-message-id", nil
}

func (m *mockSender) Name() string { return "mock" }

func (m *mockSender) sentEmails() []*email.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*email.Email(nil), m.sent...)
}

// mockPublisher records published events.
type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []events.ReminderEvent
	err      error
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, event events.ReminderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, event)
	return nil
}

func (m *mockPublisher) Close() {}

// fixedClock pins "now" for classification and dedup tests.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// newTestMetrics returns one metrics set shared by the whole package:
// promauto registers on the default registry, and registering the same
// collectors twice panics.
var metricsOnce sync.Once
var sharedMetrics *telemetry.Metrics

func newTestMetrics() *telemetry.Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = telemetry.NewMetrics("reminders_test")
	})
	return sharedMetrics
}
