package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for reminder-level observability.
// Counters carry a company_id label for per-tenant dashboards; the
// reminder type label distinguishes the four buckets.
type Metrics struct {
	RemindersScheduled *prometheus.CounterVec
	RemindersSent      *prometheus.CounterVec
	RemindersFailed    *prometheus.CounterVec

	BatchRuns      prometheus.Counter
	BatchProcessed prometheus.Counter

	SendDuration prometheus.Histogram
}

// NewMetrics creates and registers all reminder metrics.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "reminders"
	}

	return &Metrics{
		RemindersScheduled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_total",
				Help:      "Pending reminders created by the scheduler",
			},
			[]string{"company_id", "reminder_type"},
		),
		RemindersSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sent_total",
				Help:      "Reminder emails dispatched successfully",
			},
			[]string{"company_id", "reminder_type"},
		),
		RemindersFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failed_total",
				Help:      "Reminder dispatch attempts rejected by the email provider",
			},
			[]string{"company_id", "reminder_type"},
		),
		BatchRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_runs_total",
				Help:      "Batch processor invocations",
			},
		),
		BatchProcessed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_processed_total",
				Help:      "Pending reminders handled by the batch processor",
			},
		),
		SendDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "send_duration_seconds",
				Help:      "Wall time of a single dispatch including the provider call",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
	}
}
