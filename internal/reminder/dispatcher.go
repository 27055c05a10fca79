package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitecraft/reminders/internal/domain"
	"github.com/sitecraft/reminders/internal/email"
	"github.com/sitecraft/reminders/internal/events"
	"github.com/sitecraft/reminders/internal/telemetry"
)

// Dispatcher renders and sends a single reminder email, writing an
// audit log row around the provider call and publishing a lifecycle
// event afterwards.
type Dispatcher struct {
	store     domain.ReminderStore
	settings  *SettingsService
	sender    email.Sender
	publisher events.Publisher
	metrics   *telemetry.Metrics
	renderer  *Renderer
	logger    *slog.Logger

	fromAddress string
	fromName    string

	now func() time.Time
}

// NewDispatcher creates a dispatcher. fromAddress is the envelope
// sender; fromName is overridden per tenant by their sender name.
func NewDispatcher(
	store domain.ReminderStore,
	settings *SettingsService,
	sender email.Sender,
	publisher events.Publisher,
	metrics *telemetry.Metrics,
	renderer *Renderer,
	logger *slog.Logger,
	fromAddress, fromName string,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:       store,
		settings:    settings,
		sender:      sender,
		publisher:   publisher,
		metrics:     metrics,
		renderer:    renderer,
		logger:      logger,
		fromAddress: fromAddress,
		fromName:    fromName,
		now:         time.Now,
	}
}

// SendParams describes one dispatch request.
type SendParams struct {
	CompanyID uuid.UUID
	InvoiceID uuid.UUID

	// Type forces a specific bucket. When empty the bucket is derived
	// from the invoice due date.
	Type domain.Bucket

	// CustomMessage, when set, is appended to the rendered body as a
	// trailing paragraph.
	CustomMessage string
}

// SendResult reports a dispatch outcome. A provider rejection is a
// result with Sent false, not an error: the log row and event already
// captured the failure, and retrying is the caller's decision.
type SendResult struct {
	Sent         bool
	ReminderType domain.Bucket
	Recipient    string
	Subject      string
	MessageID    string
	Error        string
}

// Send dispatches one reminder for an invoice.
//
// Errors are returned only for problems before the provider call is
// committed to the audit trail: unknown invoice, unresolvable
// recipient (ErrNoRecipient, no log row written) or storage failures.
func (d *Dispatcher) Send(ctx context.Context, params SendParams) (*SendResult, error) {
	inv, err := d.store.GetInvoice(ctx, params.CompanyID, params.InvoiceID)
	if err != nil {
		return nil, err
	}

	settings, err := d.settings.Get(ctx, params.CompanyID)
	if err != nil {
		return nil, err
	}

	recipient := inv.RecipientEmail()
	if recipient == "" {
		return nil, domain.ErrNoRecipient
	}

	bucket, daysUntil, err := d.resolveBucket(inv, params.Type)
	if err != nil {
		return nil, err
	}

	subject, body := d.renderer.Render(inv, settings, bucket, daysUntil)
	if params.CustomMessage != "" {
		body = body + "\n\n" + strings.TrimSpace(params.CustomMessage)
	}

	logID, err := d.store.CreateReminderLog(ctx, &domain.ReminderLog{
		CompanyID: params.CompanyID,
		InvoiceID: inv.ID,
		Type:      bucket,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    domain.StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder log: %w", err)
	}

	msg := &email.Email{
		To:       []string{recipient},
		From:     d.fromHeader(settings),
		ReplyTo:  settings.ReplyTo,
		Subject:  subject,
		TextBody: body,
	}

	start := d.now()
	messageID, sendErr := d.sender.Send(ctx, msg)
	d.metrics.SendDuration.Observe(time.Since(start).Seconds())

	result := &SendResult{
		ReminderType: bucket,
		Recipient:    recipient,
		Subject:      subject,
	}

	if sendErr != nil {
		if closeErr := d.store.CloseReminderLog(ctx, logID, domain.StatusFailed, sendErr.Error()); closeErr != nil {
			d.logger.Error("failed to record dispatch failure", "log_id", logID, "error", closeErr)
		}
		d.metrics.RemindersFailed.WithLabelValues(params.CompanyID.String(), string(bucket)).Inc()
		d.publish(ctx, events.SubjectReminderFailed, inv, bucket, recipient, sendErr.Error())
		d.logger.Warn("reminder dispatch failed",
			"company_id", params.CompanyID,
			"invoice_id", inv.ID,
			"reminder_type", bucket,
			"provider", d.sender.Name(),
			"error", sendErr,
		)

		result.Error = sendErr.Error()
		return result, nil
	}

	if closeErr := d.store.CloseReminderLog(ctx, logID, domain.StatusSent, ""); closeErr != nil {
		d.logger.Error("failed to record dispatch success", "log_id", logID, "error", closeErr)
	}
	d.metrics.RemindersSent.WithLabelValues(params.CompanyID.String(), string(bucket)).Inc()
	d.publish(ctx, events.SubjectReminderSent, inv, bucket, recipient, "")
	d.logger.Info("reminder sent",
		"company_id", params.CompanyID,
		"invoice_id", inv.ID,
		"invoice_number", inv.Number,
		"reminder_type", bucket,
		"recipient", recipient,
		"provider", d.sender.Name(),
		"message_id", messageID,
	)

	result.Sent = true
	result.MessageID = messageID
	return result, nil
}

// PreviewResult is a rendered reminder that was never sent or logged.
type PreviewResult struct {
	ReminderType domain.Bucket
	Recipient    string
	Subject      string
	Body         string
}

// Preview renders the reminder an invoice would receive right now,
// without sending, logging or publishing anything. Invoices with no
// resolvable recipient still preview; the recipient field is empty.
func (d *Dispatcher) Preview(ctx context.Context, params SendParams) (*PreviewResult, error) {
	inv, err := d.store.GetInvoice(ctx, params.CompanyID, params.InvoiceID)
	if err != nil {
		return nil, err
	}

	settings, err := d.settings.Get(ctx, params.CompanyID)
	if err != nil {
		return nil, err
	}

	bucket, daysUntil, err := d.resolveBucket(inv, params.Type)
	if err != nil {
		return nil, err
	}

	subject, body := d.renderer.Render(inv, settings, bucket, daysUntil)
	if params.CustomMessage != "" {
		body = body + "\n\n" + strings.TrimSpace(params.CustomMessage)
	}

	return &PreviewResult{
		ReminderType: bucket,
		Recipient:    inv.RecipientEmail(),
		Subject:      subject,
		Body:         body,
	}, nil
}

// resolveBucket picks the bucket for a manual dispatch: the caller's
// explicit type when given, otherwise classified from the due date.
func (d *Dispatcher) resolveBucket(inv *domain.Invoice, forced domain.Bucket) (domain.Bucket, int, error) {
	daysUntil := 0
	if inv.DueDate != nil {
		daysUntil = DaysUntilDue(*inv.DueDate, d.now())
	}

	if forced != "" {
		if !forced.Valid() {
			return "", 0, domain.Invalid("reminder.send", fmt.Sprintf("unknown reminder type %q", forced))
		}
		return forced, daysUntil, nil
	}

	if inv.DueDate == nil {
		return "", 0, domain.Invalid("reminder.send", "invoice has no due date; specify a reminder type")
	}
	return ClassifyForSend(*inv.DueDate, d.now()), daysUntil, nil
}

func (d *Dispatcher) fromHeader(settings *domain.ReminderSettings) string {
	name := settings.SenderName
	if name == "" {
		name = d.fromName
	}
	if name == "" {
		return d.fromAddress
	}
	return fmt.Sprintf("%s <%s>", name, d.fromAddress)
}

func (d *Dispatcher) publish(ctx context.Context, subject string, inv *domain.Invoice, bucket domain.Bucket, recipient, errMsg string) {
	event := events.ReminderEvent{
		CompanyID:    inv.CompanyID.String(),
		InvoiceID:    inv.ID.String(),
		ReminderType: string(bucket),
		Recipient:    recipient,
		Error:        errMsg,
	}
	if err := d.publisher.Publish(ctx, subject, event); err != nil {
		d.logger.Warn("failed to publish reminder event", "subject", subject, "error", err)
	}
}
