package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitecraft/reminders/internal/domain"
)

// Store implements domain.ReminderStore using PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

// Compile-time check to ensure Store implements domain.ReminderStore.
var _ domain.ReminderStore = (*Store)(nil)

// NewStore creates a new Store instance.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// =============================================================================
// Companies
// =============================================================================

func (s *Store) GetCompanyByToken(ctx context.Context, token string) (*domain.Company, error) {
	const query = `
		SELECT id, name, api_token, created_at
		FROM companies
		WHERE api_token = $1`

	var c domain.Company
	err := s.db.QueryRow(ctx, query, token).Scan(&c.ID, &c.Name, &c.APIToken, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up company by token: %w", err)
	}
	return &c, nil
}

func (s *Store) GetCompany(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	const query = `
		SELECT id, name, api_token, created_at
		FROM companies
		WHERE id = $1`

	var c domain.Company
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.APIToken, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

func (s *Store) ListEnabledCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	// Companies with no settings row count as enabled: the defaults are.
	const query = `
		SELECT c.id
		FROM companies c
		LEFT JOIN reminder_settings rs ON rs.company_id = c.id
		WHERE rs.company_id IS NULL OR rs.enabled
		ORDER BY c.created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled companies: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// Reminder settings
// =============================================================================

func (s *Store) GetSettings(ctx context.Context, companyID uuid.UUID) (*domain.ReminderSettings, error) {
	const query = `
		SELECT company_id, enabled, days_before_due, days_after_due,
		       sender_name, reply_to, include_payment_link, templates, updated_at
		FROM reminder_settings
		WHERE company_id = $1`

	var (
		settings     domain.ReminderSettings
		templatesRaw []byte
	)
	err := s.db.QueryRow(ctx, query, companyID).Scan(
		&settings.CompanyID,
		&settings.Enabled,
		&settings.DaysBeforeDue,
		&settings.DaysAfterDue,
		&settings.SenderName,
		&settings.ReplyTo,
		&settings.IncludePaymentLink,
		&templatesRaw,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get reminder settings: %w", err)
	}

	settings.Templates = map[domain.Bucket]domain.TemplatePair{}
	if len(templatesRaw) > 0 {
		if err := json.Unmarshal(templatesRaw, &settings.Templates); err != nil {
			return nil, fmt.Errorf("failed to decode reminder templates: %w", err)
		}
	}
	return &settings, nil
}

func (s *Store) UpsertSettings(ctx context.Context, settings *domain.ReminderSettings) error {
	const query = `
		INSERT INTO reminder_settings
			(company_id, enabled, days_before_due, days_after_due,
			 sender_name, reply_to, include_payment_link, templates, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (company_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			days_before_due = EXCLUDED.days_before_due,
			days_after_due = EXCLUDED.days_after_due,
			sender_name = EXCLUDED.sender_name,
			reply_to = EXCLUDED.reply_to,
			include_payment_link = EXCLUDED.include_payment_link,
			templates = EXCLUDED.templates,
			updated_at = now()`

	templatesRaw, err := json.Marshal(settings.Templates)
	if err != nil {
		return fmt.Errorf("failed to encode reminder templates: %w", err)
	}

	_, err = s.db.Exec(ctx, query,
		settings.CompanyID,
		settings.Enabled,
		settings.DaysBeforeDue,
		settings.DaysAfterDue,
		settings.SenderName,
		settings.ReplyTo,
		settings.IncludePaymentLink,
		templatesRaw,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reminder settings: %w", err)
	}
	return nil
}

// =============================================================================
// Invoices
// =============================================================================

const invoiceColumns = `
	i.id, i.company_id, i.project_id, i.invoice_number, i.bill_to_name,
	i.client_email, i.amount_cents, i.status, i.due_date,
	p.id, p.company_id, p.name, p.client_name, p.client_email`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv          domain.Invoice
		billTo       *string
		clientEmail  *string
		pID          *uuid.UUID
		pCompanyID   *uuid.UUID
		pName        *string
		pClientName  *string
		pClientEmail *string
	)
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.ProjectID, &inv.Number, &billTo,
		&clientEmail, &inv.AmountCents, &inv.Status, &inv.DueDate,
		&pID, &pCompanyID, &pName, &pClientName, &pClientEmail,
	)
	if err != nil {
		return nil, err
	}

	if billTo != nil {
		inv.BillToName = *billTo
	}
	if clientEmail != nil {
		inv.ClientEmail = *clientEmail
	}
	if pID != nil {
		inv.Project = &domain.Project{ID: *pID}
		if pCompanyID != nil {
			inv.Project.CompanyID = *pCompanyID
		}
		if pName != nil {
			inv.Project.Name = *pName
		}
		if pClientName != nil {
			inv.Project.ClientName = *pClientName
		}
		if pClientEmail != nil {
			inv.Project.ClientEmail = *pClientEmail
		}
	}
	return &inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices i
		LEFT JOIN projects p ON p.id = i.project_id
		WHERE i.company_id = $1 AND i.id = $2`

	inv, err := scanInvoice(s.db.QueryRow(ctx, query, companyID, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func (s *Store) ListRemindableInvoices(ctx context.Context, companyID uuid.UUID) ([]domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices i
		LEFT JOIN projects p ON p.id = i.project_id
		WHERE i.company_id = $1
		  AND i.status = ANY($2)
		  AND i.due_date IS NOT NULL
		ORDER BY i.due_date, i.invoice_number`

	rows, err := s.db.Query(ctx, query, companyID, domain.RemindableStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list remindable invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// =============================================================================
// Pending reminders
// =============================================================================

func (s *Store) HasReminderForDay(ctx context.Context, invoiceID uuid.UUID, bucket domain.Bucket, day time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM pending_reminders
			WHERE invoice_id = $1
			  AND reminder_type = $2
			  AND (created_at AT TIME ZONE 'UTC')::date = $3::date
		)`

	var exists bool
	err := s.db.QueryRow(ctx, query, invoiceID, string(bucket), day.UTC()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing reminder: %w", err)
	}
	return exists, nil
}

func (s *Store) CreatePendingReminder(ctx context.Context, companyID, invoiceID uuid.UUID, bucket domain.Bucket) error {
	// ON CONFLICT matches the per-day dedup index, so two schedulers
	// racing on the same invoice and day insert exactly one row.
	const query = `
		INSERT INTO pending_reminders (company_id, invoice_id, reminder_type, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (invoice_id, reminder_type, ((created_at AT TIME ZONE 'UTC')::date))
		DO NOTHING`

	_, err := s.db.Exec(ctx, query, companyID, invoiceID, string(bucket))
	if err != nil {
		return fmt.Errorf("failed to create pending reminder: %w", err)
	}
	return nil
}

func (s *Store) ListPendingReminders(ctx context.Context, limit int32) ([]domain.PendingReminder, error) {
	const query = `
		SELECT id, company_id, invoice_id, reminder_type, status, created_at, sent_at
		FROM pending_reminders
		WHERE status = 'pending' AND sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	defer rows.Close()

	var pending []domain.PendingReminder
	for rows.Next() {
		var pr domain.PendingReminder
		if err := rows.Scan(&pr.ID, &pr.CompanyID, &pr.InvoiceID, &pr.Type, &pr.Status, &pr.CreatedAt, &pr.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending reminder: %w", err)
		}
		pending = append(pending, pr)
	}
	return pending, rows.Err()
}

func (s *Store) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE pending_reminders
		SET status = 'sent', sent_at = now()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.MarkReminderSent", "pending reminder", id.String())
	}
	return nil
}

// =============================================================================
// Reminder logs
// =============================================================================

func (s *Store) CreateReminderLog(ctx context.Context, log *domain.ReminderLog) (uuid.UUID, error) {
	const query = `
		INSERT INTO reminder_logs
			(company_id, invoice_id, reminder_type, recipient, subject, body, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, query,
		log.CompanyID,
		log.InvoiceID,
		string(log.Type),
		log.Recipient,
		log.Subject,
		log.Body,
		log.Status,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create reminder log: %w", err)
	}
	return id, nil
}

func (s *Store) CloseReminderLog(ctx context.Context, id uuid.UUID, status, errMsg string) error {
	const query = `
		UPDATE reminder_logs
		SET status = $2,
		    error_message = NULLIF($3, ''),
		    sent_at = CASE WHEN $2 = 'sent' THEN now() ELSE sent_at END
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to close reminder log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.CloseReminderLog", "reminder log", id.String())
	}
	return nil
}
