package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sitecraft/reminders/internal/domain"
	"github.com/sitecraft/reminders/internal/reminder"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// Interval is how often to run a scheduling and dispatch cycle
	Interval time.Duration
}

// Worker periodically runs the reminder pipeline: one scheduling pass
// per enabled tenant, then one batch dispatch across all tenants. The
// same cycle the API exposes as schedule and process_scheduled, driven
// by a clock instead of a caller.
type Worker struct {
	config    Config
	store     domain.ReminderStore
	scheduler *reminder.Scheduler
	batch     *reminder.BatchProcessor
	logger    *slog.Logger
}

// NewWorker creates a new reminder worker
func NewWorker(
	store domain.ReminderStore,
	scheduler *reminder.Scheduler,
	batch *reminder.BatchProcessor,
	config Config,
	logger *slog.Logger,
) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.Interval == 0 {
		config.Interval = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config:    config,
		store:     store,
		scheduler: scheduler,
		batch:     batch,
		logger:    logger,
	}
}

// Start runs cycles until the context is cancelled. The first cycle
// runs immediately; scheduling is idempotent per day, so overlapping
// restarts are harmless.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"interval", w.config.Interval,
	)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			return ctx.Err()
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle schedules reminders for every enabled tenant, then drains
// one batch of pending reminders. Per-tenant failures are logged and
// skipped so one broken tenant never stalls the rest.
func (w *Worker) runCycle(ctx context.Context) {
	start := time.Now()

	companyIDs, err := w.store.ListEnabledCompanyIDs(ctx)
	if err != nil {
		w.logger.Error("failed to list enabled companies", "error", err)
		return
	}

	scheduled := 0
	for _, companyID := range companyIDs {
		if ctx.Err() != nil {
			return
		}
		n, err := w.scheduler.Schedule(ctx, companyID)
		if err != nil {
			w.logger.Error("scheduling pass failed", "company_id", companyID, "error", err)
			continue
		}
		scheduled += n
	}

	result, err := w.batch.ProcessScheduled(ctx)
	if err != nil {
		w.logger.Error("batch dispatch failed", "error", err)
		return
	}

	w.logger.Info("worker cycle complete",
		"worker_id", w.config.WorkerID,
		"companies", len(companyIDs),
		"scheduled", scheduled,
		"sent", result.Sent,
		"failed", result.Failed,
		"duration", time.Since(start),
	)
}
