package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Bucket identifies which reminder rule matched an invoice on a given
// day, and therefore which template pair is used for the email.
type Bucket string

const (
	BucketUpcoming    Bucket = "upcoming"
	BucketDueToday    Bucket = "due_today"
	BucketOverdue     Bucket = "overdue"
	BucketFinalNotice Bucket = "final_notice"

	// BucketNone means no reminder rule applies today.
	BucketNone Bucket = "none"
)

// Valid reports whether b is one of the four sendable buckets.
func (b Bucket) Valid() bool {
	switch b {
	case BucketUpcoming, BucketDueToday, BucketOverdue, BucketFinalNotice:
		return true
	}
	return false
}

// PendingReminder and ReminderLog status values.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Invoice statuses eligible for reminders. Draft, paid and cancelled
// invoices are never reminded about.
var RemindableStatuses = []string{"sent", "overdue", "partially_paid"}

// Reminder-specific domain errors.
var (
	ErrCompanyNotFound = &Error{Code: ENOTFOUND, Message: "Company not found"}
	ErrInvoiceNotFound = &Error{Code: ENOTFOUND, Message: "Invoice not found"}
	ErrInvalidToken    = &Error{Code: EUNAUTHORIZED, Message: "Invalid or missing API token"}

	// ErrNoRecipient is a configuration failure, not a transient send
	// failure: no log row is written and no email is attempted.
	ErrNoRecipient = &Error{Code: EINVALID, Message: "Invoice has no resolvable recipient email"}

	// ErrSettingsNotFound signals a tenant that has never configured
	// reminders; callers substitute the built-in defaults.
	ErrSettingsNotFound = &Error{Code: ENOTFOUND, Message: "Reminder settings not found"}
)

// Company is a tenant of the platform. API tokens back the bearer
// header on the reminder endpoint.
type Company struct {
	ID        uuid.UUID
	Name      string
	APIToken  string
	CreatedAt time.Time
}

// Project is the construction project an invoice bills against. Its
// client contact is the fallback recipient for reminders.
type Project struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Name        string
	ClientName  string
	ClientEmail string
}

// Invoice is read-only from the reminder core's perspective: the
// scheduler and dispatcher never mutate invoices, only read them.
type Invoice struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	ProjectID   *uuid.UUID
	Number      string
	BillToName  string
	ClientEmail string
	AmountCents int64
	Status      string
	DueDate     *time.Time

	// Project is populated by the store when the invoice references one.
	Project *Project
}

// RecipientEmail resolves the reminder recipient: the invoice's direct
// client email wins, then the related project's client email.
func (inv *Invoice) RecipientEmail() string {
	if inv.ClientEmail != "" {
		return inv.ClientEmail
	}
	if inv.Project != nil {
		return inv.Project.ClientEmail
	}
	return ""
}

// ClientDisplayName falls back through project client name, invoice
// bill-to name, and finally a generic salutation.
func (inv *Invoice) ClientDisplayName() string {
	if inv.Project != nil && inv.Project.ClientName != "" {
		return inv.Project.ClientName
	}
	if inv.BillToName != "" {
		return inv.BillToName
	}
	return "Valued Customer"
}

// TemplatePair is one subject/body template for a bucket.
type TemplatePair struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ReminderSettings is the per-tenant reminder configuration. There is
// at most one row per company; tenants reset to defaults rather than
// deleting.
type ReminderSettings struct {
	CompanyID          uuid.UUID
	Enabled            bool
	DaysBeforeDue      []int32
	DaysAfterDue       []int32
	SenderName         string
	ReplyTo            string
	IncludePaymentLink bool
	Templates          map[Bucket]TemplatePair
	UpdatedAt          time.Time
}

// PendingReminder is one scheduled-but-not-yet-sent reminder. The
// store enforces uniqueness per (invoice, bucket, UTC day).
type PendingReminder struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	InvoiceID uuid.UUID
	Type      Bucket
	Status    string
	CreatedAt time.Time
	SentAt    *time.Time
}

// ReminderLog is the immutable audit row for one dispatch attempt.
// It is written with status pending before the provider call and
// updated exactly once with the outcome.
type ReminderLog struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	InvoiceID    uuid.UUID
	Type         Bucket
	Recipient    string
	Subject      string
	Body         string
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
	SentAt       *time.Time
}

// ReminderStore is the persistence boundary for the reminder core.
// Implemented by internal/postgres.
type ReminderStore interface {
	// GetCompanyByToken resolves a bearer API token to its company.
	// Returns ErrInvalidToken when no company matches.
	GetCompanyByToken(ctx context.Context, token string) (*Company, error)

	// GetCompany fetches a company by ID. Returns ErrCompanyNotFound.
	GetCompany(ctx context.Context, id uuid.UUID) (*Company, error)

	// ListEnabledCompanyIDs returns companies whose reminder settings
	// are enabled (or who have never configured settings, since the
	// defaults are enabled).
	ListEnabledCompanyIDs(ctx context.Context) ([]uuid.UUID, error)

	// GetSettings fetches a tenant's reminder settings.
	// Returns ErrSettingsNotFound when the tenant has never configured them.
	GetSettings(ctx context.Context, companyID uuid.UUID) (*ReminderSettings, error)

	// UpsertSettings creates or replaces a tenant's reminder settings.
	UpsertSettings(ctx context.Context, settings *ReminderSettings) error

	// GetInvoice fetches an invoice (with its related project, when
	// any) scoped to a company. Returns ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (*Invoice, error)

	// ListRemindableInvoices returns a company's invoices in a
	// remindable status with a non-null due date.
	ListRemindableInvoices(ctx context.Context, companyID uuid.UUID) ([]Invoice, error)

	// HasReminderForDay reports whether a reminder of the given bucket
	// already exists for the invoice within the UTC calendar day.
	HasReminderForDay(ctx context.Context, invoiceID uuid.UUID, bucket Bucket, day time.Time) (bool, error)

	// CreatePendingReminder inserts one pending reminder row.
	CreatePendingReminder(ctx context.Context, companyID, invoiceID uuid.UUID, bucket Bucket) error

	// ListPendingReminders returns up to limit pending, unsent
	// reminders across all tenants, oldest first.
	ListPendingReminders(ctx context.Context, limit int32) ([]PendingReminder, error)

	// MarkReminderSent transitions a pending reminder to sent.
	MarkReminderSent(ctx context.Context, id uuid.UUID) error

	// CreateReminderLog inserts a dispatch log row and returns its ID.
	CreateReminderLog(ctx context.Context, log *ReminderLog) (uuid.UUID, error)

	// CloseReminderLog records the dispatch outcome on a log row.
	// status is StatusSent or StatusFailed; errMsg accompanies failures.
	CloseReminderLog(ctx context.Context, id uuid.UUID, status, errMsg string) error
}
