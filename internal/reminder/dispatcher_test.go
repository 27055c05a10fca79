package reminder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/reminders/internal/domain"
	"github.com/sitecraft/reminders/internal/events"
)

type dispatcherFixture struct {
	dispatcher *Dispatcher
	store      *mockStore
	sender     *mockSender
	publisher  *mockPublisher
}

func newDispatcherFixture(store *mockStore) *dispatcherFixture {
	sender := &mockSender{}
	publisher := &mockPublisher{}
	d := NewDispatcher(
		store,
		NewSettingsService(store),
		sender,
		publisher,
		newTestMetrics(),
		NewRenderer("https://app.sitecraft.example"),
		discardLogger(),
		"reminders@sitecraft.example",
		"SiteCraft",
	)
	d.now = fixedClock(date(2026, 3, 15).Add(9 * time.Hour))
	return &dispatcherFixture{dispatcher: d, store: store, sender: sender, publisher: publisher}
}

func TestSend_HappyPath(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 3, 18)) // 3 days out

	var createdLog *domain.ReminderLog
	logID := uuid.New()
	var closedStatus string
	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, cid, iid uuid.UUID) (*domain.Invoice, error) {
			assert.Equal(t, companyID, cid)
			assert.Equal(t, inv.ID, iid)
			return &inv, nil
		},
		CreateReminderLogFn: func(ctx context.Context, log *domain.ReminderLog) (uuid.UUID, error) {
			createdLog = log
			return logID, nil
		},
		CloseReminderLogFn: func(ctx context.Context, id uuid.UUID, status, errMsg string) error {
			assert.Equal(t, logID, id)
			closedStatus = status
			assert.Empty(t, errMsg)
			return nil
		},
	}

	f := newDispatcherFixture(store)
	result, err := f.dispatcher.Send(context.Background(), SendParams{
		CompanyID: companyID,
		InvoiceID: inv.ID,
	})
	require.NoError(t, err)

	assert.True(t, result.Sent)
	assert.Equal(t, domain.BucketUpcoming, result.ReminderType)
	assert.Equal(t, "client@example.com", result.Recipient)
	assert.Equal(t, "mock-message-id", result.MessageID)

	// Log row written pending before the provider call, closed as sent.
	require.NotNil(t, createdLog)
	assert.Equal(t, domain.StatusPending, createdLog.Status)
	assert.Equal(t, "client@example.com", createdLog.Recipient)
	assert.NotEmpty(t, createdLog.Body)
	assert.Equal(t, domain.StatusSent, closedStatus)

	sent := f.sender.sentEmails()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"client@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].From, "reminders@sitecraft.example")

	require.Len(t, f.publisher.subjects, 1)
	assert.Equal(t, events.SubjectReminderSent, f.publisher.subjects[0])
	assert.Equal(t, inv.ID.String(), f.publisher.payloads[0].InvoiceID)
}

func TestSend_ProviderFailureIsResultNotError(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 3, 10))

	logID := uuid.New()
	var closedStatus, closedErr string
	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
		CreateReminderLogFn: func(ctx context.Context, log *domain.ReminderLog) (uuid.UUID, error) {
			return logID, nil
		},
		CloseReminderLogFn: func(ctx context.Context, id uuid.UUID, status, errMsg string) error {
			closedStatus = status
			closedErr = errMsg
			return nil
		},
	}

	f := newDispatcherFixture(store)
	f.sender.err = errors.New("postmark: 429 too many requests")

	result, err := f.dispatcher.Send(context.Background(), SendParams{
		CompanyID: companyID,
		InvoiceID: inv.ID,
	})
	require.NoError(t, err, "a provider rejection is an outcome, not a transport error")

	assert.False(t, result.Sent)
	assert.Contains(t, result.Error, "429")
	assert.Equal(t, domain.StatusFailed, closedStatus)
	assert.Contains(t, closedErr, "429")

	require.Len(t, f.publisher.subjects, 1)
	assert.Equal(t, events.SubjectReminderFailed, f.publisher.subjects[0])
	assert.NotEmpty(t, f.publisher.payloads[0].Error)
}

func TestSend_NoRecipient(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 3, 10))
	inv.ClientEmail = ""
	inv.Project = nil

	logCalls := 0
	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
		CreateReminderLogFn: func(ctx context.Context, log *domain.ReminderLog) (uuid.UUID, error) {
			logCalls++
			return uuid.New(), nil
		},
	}

	f := newDispatcherFixture(store)
	result, err := f.dispatcher.Send(context.Background(), SendParams{
		CompanyID: companyID,
		InvoiceID: inv.ID,
	})

	require.ErrorIs(t, err, domain.ErrNoRecipient)
	assert.Nil(t, result)
	assert.Zero(t, logCalls, "no audit row for an unsendable reminder")
	assert.Empty(t, f.sender.sentEmails())
	assert.Empty(t, f.publisher.subjects)
}

func TestSend_RecipientFallsBackToProject(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 3, 10))
	inv.ClientEmail = ""
	inv.Project = &domain.Project{ClientName: "Dana", ClientEmail: "dana@client.example"}

	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
	}

	f := newDispatcherFixture(store)
	result, err := f.dispatcher.Send(context.Background(), SendParams{CompanyID: companyID, InvoiceID: inv.ID})
	require.NoError(t, err)
	assert.Equal(t, "dana@client.example", result.Recipient)
}

func TestSend_InvoiceNotFound(t *testing.T) {
	f := newDispatcherFixture(&mockStore{}) // GetInvoice returns ErrInvoiceNotFound

	_, err := f.dispatcher.Send(context.Background(), SendParams{
		CompanyID: uuid.New(),
		InvoiceID: uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestSend_ForcedTypeOverridesClassification(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 4, 1)) // well before due

	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
	}

	f := newDispatcherFixture(store)
	result, err := f.dispatcher.Send(context.Background(), SendParams{
		CompanyID: companyID,
		InvoiceID: inv.ID,
		Type:      domain.BucketFinalNotice,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BucketFinalNotice, result.ReminderType)
}

func TestSend_UnknownForcedTypeRejected(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 3, 10))

	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
	}

	f := newDispatcherFixture(store)
	_, err := f.dispatcher.Send(context.Background(), SendParams{
		CompanyID: companyID,
		InvoiceID: inv.ID,
		Type:      domain.Bucket("gentle_poke"),
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestSend_CustomMessageAppended(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 3, 10))

	var createdLog *domain.ReminderLog
	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
		CreateReminderLogFn: func(ctx context.Context, log *domain.ReminderLog) (uuid.UUID, error) {
			createdLog = log
			return uuid.New(), nil
		},
	}

	f := newDispatcherFixture(store)
	_, err := f.dispatcher.Send(context.Background(), SendParams{
		CompanyID:     companyID,
		InvoiceID:     inv.ID,
		CustomMessage: "  We spoke on the phone Tuesday; sending this as agreed.  ",
	})
	require.NoError(t, err)

	require.NotNil(t, createdLog)
	assert.True(t, strings.HasSuffix(createdLog.Body, "We spoke on the phone Tuesday; sending this as agreed."))
}

func TestSend_NoDueDateRequiresExplicitType(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 3, 10))
	inv.DueDate = nil

	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
	}

	f := newDispatcherFixture(store)

	_, err := f.dispatcher.Send(context.Background(), SendParams{CompanyID: companyID, InvoiceID: inv.ID})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	result, err := f.dispatcher.Send(context.Background(), SendParams{
		CompanyID: companyID,
		InvoiceID: inv.ID,
		Type:      domain.BucketOverdue,
	})
	require.NoError(t, err)
	assert.True(t, result.Sent)
}

func TestSend_ReplyToFromSettings(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-7", date(2026, 3, 10))

	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
		GetSettingsFn: func(ctx context.Context, id uuid.UUID) (*domain.ReminderSettings, error) {
			s := DefaultSettings(id)
			s.ReplyTo = "office@builder.example"
			s.SenderName = "Builder Office"
			return s, nil
		},
	}

	f := newDispatcherFixture(store)
	_, err := f.dispatcher.Send(context.Background(), SendParams{CompanyID: companyID, InvoiceID: inv.ID})
	require.NoError(t, err)

	sent := f.sender.sentEmails()
	require.Len(t, sent, 1)
	assert.Equal(t, "office@builder.example", sent[0].ReplyTo)
	assert.Equal(t, "Builder Office <reminders@sitecraft.example>", sent[0].From)
}

func TestPreview_RendersWithoutSideEffects(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-9", date(2026, 3, 1)) // 14 days overdue

	logCalls := 0
	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
		CreateReminderLogFn: func(ctx context.Context, log *domain.ReminderLog) (uuid.UUID, error) {
			logCalls++
			return uuid.New(), nil
		},
	}

	f := newDispatcherFixture(store)
	preview, err := f.dispatcher.Preview(context.Background(), SendParams{
		CompanyID: companyID,
		InvoiceID: inv.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BucketFinalNotice, preview.ReminderType)
	assert.Contains(t, preview.Subject, "Final notice")
	assert.Contains(t, preview.Body, "14 days past due")
	assert.Equal(t, "client@example.com", preview.Recipient)

	assert.Zero(t, logCalls)
	assert.Empty(t, f.sender.sentEmails())
	assert.Empty(t, f.publisher.subjects)
}

func TestPreview_NoRecipientStillRenders(t *testing.T) {
	companyID := uuid.New()
	inv := invoiceDue(companyID, "INV-9", date(2026, 3, 14))
	inv.ClientEmail = ""

	store := &mockStore{
		GetInvoiceFn: func(ctx context.Context, _, _ uuid.UUID) (*domain.Invoice, error) {
			return &inv, nil
		},
	}

	f := newDispatcherFixture(store)
	preview, err := f.dispatcher.Preview(context.Background(), SendParams{CompanyID: companyID, InvoiceID: inv.ID})
	require.NoError(t, err)
	assert.Empty(t, preview.Recipient)
	assert.NotEmpty(t, preview.Body)
}
