package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/reminders/internal/domain"
	"github.com/sitecraft/reminders/internal/email"
	"github.com/sitecraft/reminders/internal/events"
	"github.com/sitecraft/reminders/internal/reminder"
	"github.com/sitecraft/reminders/internal/telemetry"
)

var testMetrics = telemetry.NewMetrics("worker_test")

func newTestWorker(store *domain.MockReminderStore) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	settings := reminder.NewSettingsService(store)
	scheduler := reminder.NewScheduler(store, settings, testMetrics, logger)
	dispatcher := reminder.NewDispatcher(
		store, settings, email.NewNoopSender(logger), events.NoopPublisher{},
		testMetrics, reminder.NewRenderer("https://app.sitecraft.example"), logger,
		"reminders@sitecraft.example", "SiteCraft",
	)
	batch := reminder.NewBatchProcessor(store, dispatcher, testMetrics, logger)
	return NewWorker(store, scheduler, batch, Config{WorkerID: "test"}, logger)
}

func TestRunCycle_SchedulesEveryEnabledTenant(t *testing.T) {
	companyA := uuid.New()
	companyB := uuid.New()
	due := time.Now().UTC()

	scheduledFor := map[uuid.UUID]int{}
	store := &domain.MockReminderStore{
		ListEnabledCompanyIDsFn: func(ctx context.Context) ([]uuid.UUID, error) {
			return []uuid.UUID{companyA, companyB}, nil
		},
		ListRemindableFn: func(ctx context.Context, companyID uuid.UUID) ([]domain.Invoice, error) {
			return []domain.Invoice{{
				ID: uuid.New(), CompanyID: companyID, Number: "INV-1",
				ClientEmail: "c@example.com", Status: "sent", DueDate: &due,
			}}, nil
		},
		CreatePendingFn: func(ctx context.Context, companyID, _ uuid.UUID, _ domain.Bucket) error {
			scheduledFor[companyID]++
			return nil
		},
	}

	newTestWorker(store).runCycle(context.Background())

	assert.Equal(t, 1, scheduledFor[companyA])
	assert.Equal(t, 1, scheduledFor[companyB])
}

func TestRunCycle_TenantFailureDoesNotStallOthers(t *testing.T) {
	companyA := uuid.New()
	companyB := uuid.New()
	due := time.Now().UTC()

	scheduledFor := map[uuid.UUID]int{}
	store := &domain.MockReminderStore{
		ListEnabledCompanyIDsFn: func(ctx context.Context) ([]uuid.UUID, error) {
			return []uuid.UUID{companyA, companyB}, nil
		},
		ListRemindableFn: func(ctx context.Context, companyID uuid.UUID) ([]domain.Invoice, error) {
			if companyID == companyA {
				return nil, errors.New("query timeout")
			}
			return []domain.Invoice{{
				ID: uuid.New(), CompanyID: companyID, Number: "INV-1",
				ClientEmail: "c@example.com", Status: "sent", DueDate: &due,
			}}, nil
		},
		CreatePendingFn: func(ctx context.Context, companyID, _ uuid.UUID, _ domain.Bucket) error {
			scheduledFor[companyID]++
			return nil
		},
	}

	newTestWorker(store).runCycle(context.Background())

	assert.Zero(t, scheduledFor[companyA])
	assert.Equal(t, 1, scheduledFor[companyB])
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestWorker(&domain.MockReminderStore{}).Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewWorker_Defaults(t *testing.T) {
	w := newTestWorker(&domain.MockReminderStore{})
	assert.Equal(t, "test", w.config.WorkerID)
	assert.Equal(t, 15*time.Minute, w.config.Interval)
}
