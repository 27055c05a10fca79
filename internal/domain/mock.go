package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MockReminderStore is a hand-written ReminderStore mock for tests.
// Each method delegates to the matching Fn field when set; unset
// fields return the zero value or the operation's not-found error.
type MockReminderStore struct {
	GetCompanyByTokenFn     func(ctx context.Context, token string) (*Company, error)
	GetCompanyFn            func(ctx context.Context, id uuid.UUID) (*Company, error)
	ListEnabledCompanyIDsFn func(ctx context.Context) ([]uuid.UUID, error)
	GetSettingsFn           func(ctx context.Context, companyID uuid.UUID) (*ReminderSettings, error)
	UpsertSettingsFn        func(ctx context.Context, settings *ReminderSettings) error
	GetInvoiceFn            func(ctx context.Context, companyID, invoiceID uuid.UUID) (*Invoice, error)
	ListRemindableFn        func(ctx context.Context, companyID uuid.UUID) ([]Invoice, error)
	HasReminderForDayFn     func(ctx context.Context, invoiceID uuid.UUID, bucket Bucket, day time.Time) (bool, error)
	CreatePendingFn         func(ctx context.Context, companyID, invoiceID uuid.UUID, bucket Bucket) error
	ListPendingFn           func(ctx context.Context, limit int32) ([]PendingReminder, error)
	MarkReminderSentFn      func(ctx context.Context, id uuid.UUID) error
	CreateReminderLogFn     func(ctx context.Context, log *ReminderLog) (uuid.UUID, error)
	CloseReminderLogFn      func(ctx context.Context, id uuid.UUID, status, errMsg string) error
}

// Compile-time check to ensure MockReminderStore implements ReminderStore.
var _ ReminderStore = (*MockReminderStore)(nil)

func (m *MockReminderStore) GetCompanyByToken(ctx context.Context, token string) (*Company, error) {
	if m.GetCompanyByTokenFn == nil {
		return nil, ErrInvalidToken
	}
	return m.GetCompanyByTokenFn(ctx, token)
}

func (m *MockReminderStore) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	if m.GetCompanyFn == nil {
		return nil, ErrCompanyNotFound
	}
	return m.GetCompanyFn(ctx, id)
}

func (m *MockReminderStore) ListEnabledCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	if m.ListEnabledCompanyIDsFn == nil {
		return nil, nil
	}
	return m.ListEnabledCompanyIDsFn(ctx)
}

func (m *MockReminderStore) GetSettings(ctx context.Context, companyID uuid.UUID) (*ReminderSettings, error) {
	if m.GetSettingsFn == nil {
		return nil, ErrSettingsNotFound
	}
	return m.GetSettingsFn(ctx, companyID)
}

func (m *MockReminderStore) UpsertSettings(ctx context.Context, settings *ReminderSettings) error {
	if m.UpsertSettingsFn == nil {
		return nil
	}
	return m.UpsertSettingsFn(ctx, settings)
}

func (m *MockReminderStore) GetInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (*Invoice, error) {
	if m.GetInvoiceFn == nil {
		return nil, ErrInvoiceNotFound
	}
	return m.GetInvoiceFn(ctx, companyID, invoiceID)
}

func (m *MockReminderStore) ListRemindableInvoices(ctx context.Context, companyID uuid.UUID) ([]Invoice, error) {
	if m.ListRemindableFn == nil {
		return nil, nil
	}
	return m.ListRemindableFn(ctx, companyID)
}

func (m *MockReminderStore) HasReminderForDay(ctx context.Context, invoiceID uuid.UUID, bucket Bucket, day time.Time) (bool, error) {
	if m.HasReminderForDayFn == nil {
		return false, nil
	}
	return m.HasReminderForDayFn(ctx, invoiceID, bucket, day)
}

func (m *MockReminderStore) CreatePendingReminder(ctx context.Context, companyID, invoiceID uuid.UUID, bucket Bucket) error {
	if m.CreatePendingFn == nil {
		return nil
	}
	return m.CreatePendingFn(ctx, companyID, invoiceID, bucket)
}

func (m *MockReminderStore) ListPendingReminders(ctx context.Context, limit int32) ([]PendingReminder, error) {
	if m.ListPendingFn == nil {
		return nil, nil
	}
	return m.ListPendingFn(ctx, limit)
}

func (m *MockReminderStore) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	if m.MarkReminderSentFn == nil {
		return nil
	}
	return m.MarkReminderSentFn(ctx, id)
}

func (m *MockReminderStore) CreateReminderLog(ctx context.Context, log *ReminderLog) (uuid.UUID, error) {
	if m.CreateReminderLogFn == nil {
		return uuid.New(), nil
	}
	return m.CreateReminderLogFn(ctx, log)
}

func (m *MockReminderStore) CloseReminderLog(ctx context.Context, id uuid.UUID, status, errMsg string) error {
	if m.CloseReminderLogFn == nil {
		return nil
	}
	return m.CloseReminderLogFn(ctx, id, status, errMsg)
}
