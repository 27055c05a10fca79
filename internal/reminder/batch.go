package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sitecraft/reminders/internal/domain"
	"github.com/sitecraft/reminders/internal/telemetry"
)

// batchSize caps how many pending reminders one processing run claims.
// Remaining rows are picked up by the next run.
const batchSize = 50

// BatchProcessor drains pending reminders through the dispatcher.
type BatchProcessor struct {
	store      domain.ReminderStore
	dispatcher *Dispatcher
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(store domain.ReminderStore, dispatcher *Dispatcher, metrics *telemetry.Metrics, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// BatchResult summarizes one processing run.
type BatchResult struct {
	Processed int
	Sent      int
	Failed    int
}

// ProcessScheduled sends one page of pending reminders, oldest first.
//
// Failures are isolated per item: a rejected or errored dispatch is
// counted and the run continues. Items that fail stay pending and are
// retried on the next run, so delivery is at-least-once.
func (p *BatchProcessor) ProcessScheduled(ctx context.Context) (*BatchResult, error) {
	p.metrics.BatchRuns.Inc()

	pending, err := p.store.ListPendingReminders(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reminders: %w", err)
	}

	result := &BatchResult{}
	for _, pr := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Processed++
		p.metrics.BatchProcessed.Inc()

		sendResult, err := p.dispatcher.Send(ctx, SendParams{
			CompanyID: pr.CompanyID,
			InvoiceID: pr.InvoiceID,
			Type:      pr.Type,
		})
		if err != nil {
			result.Failed++
			p.logger.Error("failed to process pending reminder",
				"pending_id", pr.ID,
				"invoice_id", pr.InvoiceID,
				"error", err,
			)
			continue
		}
		if !sendResult.Sent {
			result.Failed++
			continue
		}

		if err := p.store.MarkReminderSent(ctx, pr.ID); err != nil {
			// The email went out but the row stays pending; the next
			// run resends. Accepted over losing reminders.
			p.logger.Error("failed to mark reminder sent", "pending_id", pr.ID, "error", err)
		}
		result.Sent++
	}

	p.logger.Info("batch run complete",
		"processed", result.Processed,
		"sent", result.Sent,
		"failed", result.Failed,
	)
	return result, nil
}
