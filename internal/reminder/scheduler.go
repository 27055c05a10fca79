package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sitecraft/reminders/internal/domain"
	"github.com/sitecraft/reminders/internal/telemetry"
)

// Scheduler scans a tenant's open invoices and records which reminder
// buckets apply today as pending rows. It sends nothing itself.
type Scheduler struct {
	store    domain.ReminderStore
	settings *SettingsService
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler.
func NewScheduler(store domain.ReminderStore, settings *SettingsService, metrics *telemetry.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Schedule runs one scheduling pass for a tenant and returns the
// number of newly created pending reminders.
//
// The pass is idempotent per UTC day: an invoice/bucket pair that
// already has a reminder from today is skipped. A storage error aborts
// the remainder of the pass; rows created before the failure are kept
// (at-least-once, not atomic).
func (s *Scheduler) Schedule(ctx context.Context, companyID uuid.UUID) (int, error) {
	settings, err := s.settings.Get(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if !settings.Enabled {
		s.logger.Debug("reminders disabled, skipping scheduling", "company_id", companyID)
		return 0, nil
	}

	today := UTCDate(s.now())

	invoices, err := s.store.ListRemindableInvoices(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	scheduled := 0
	for i := range invoices {
		inv := &invoices[i]
		if inv.DueDate == nil {
			continue
		}

		bucket := Classify(*inv.DueDate, today, settings.DaysBeforeDue, settings.DaysAfterDue)
		if bucket == domain.BucketNone {
			continue
		}

		exists, err := s.store.HasReminderForDay(ctx, inv.ID, bucket, today)
		if err != nil {
			return scheduled, fmt.Errorf("failed to check existing reminder for invoice %s: %w", inv.ID, err)
		}
		if exists {
			continue
		}

		if err := s.store.CreatePendingReminder(ctx, companyID, inv.ID, bucket); err != nil {
			return scheduled, fmt.Errorf("failed to schedule reminder for invoice %s: %w", inv.ID, err)
		}

		scheduled++
		s.metrics.RemindersScheduled.WithLabelValues(companyID.String(), string(bucket)).Inc()
		s.logger.Info("reminder scheduled",
			"company_id", companyID,
			"invoice_id", inv.ID,
			"invoice_number", inv.Number,
			"reminder_type", bucket,
		)
	}

	return scheduled, nil
}
