package reminder

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sitecraft/reminders/internal/domain"
)

// Default offset sets applied until a tenant customizes them.
var (
	defaultDaysBeforeDue = []int32{7, 3, 1}
	defaultDaysAfterDue  = []int32{1, 3, 7, 14, 30}
)

// SettingsService reads and writes per-tenant reminder configuration,
// substituting built-in defaults for tenants that never configured it.
type SettingsService struct {
	store    domain.ReminderStore
	validate *validator.Validate
}

// UpdateSettingsParams is the validated shape of a settings update.
type UpdateSettingsParams struct {
	Enabled            bool                                  `validate:"-"`
	DaysBeforeDue      []int32                               `validate:"max=31,dive,gte=1,lte=365"`
	DaysAfterDue       []int32                               `validate:"max=31,dive,gte=1,lte=365"`
	SenderName         string                                `validate:"max=120"`
	ReplyTo            string                                `validate:"omitempty,email"`
	IncludePaymentLink bool                                  `validate:"-"`
	Templates          map[domain.Bucket]domain.TemplatePair `validate:"-"`
}

// NewSettingsService creates a settings service.
func NewSettingsService(store domain.ReminderStore) *SettingsService {
	return &SettingsService{
		store:    store,
		validate: validator.New(),
	}
}

// DefaultSettings returns the built-in configuration for a tenant that
// has never customized reminders.
func DefaultSettings(companyID uuid.UUID) *domain.ReminderSettings {
	return &domain.ReminderSettings{
		CompanyID:          companyID,
		Enabled:            true,
		DaysBeforeDue:      append([]int32(nil), defaultDaysBeforeDue...),
		DaysAfterDue:       append([]int32(nil), defaultDaysAfterDue...),
		SenderName:         "Accounts Receivable",
		ReplyTo:            "",
		IncludePaymentLink: true,
		Templates:          DefaultTemplates(),
	}
}

// Get returns the tenant's settings, falling back to the defaults when
// none have been stored.
func (s *SettingsService) Get(ctx context.Context, companyID uuid.UUID) (*domain.ReminderSettings, error) {
	settings, err := s.store.GetSettings(ctx, companyID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return DefaultSettings(companyID), nil
		}
		return nil, fmt.Errorf("failed to get reminder settings: %w", err)
	}

	// Tenants may customize only some buckets; the renderer falls back
	// per bucket, so partial template maps are fine as stored.
	return settings, nil
}

// Update validates and persists a tenant's settings.
func (s *SettingsService) Update(ctx context.Context, companyID uuid.UUID, params UpdateSettingsParams) (*domain.ReminderSettings, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, domain.Invalid("settings.update", fmt.Sprintf("invalid settings: %v", err))
	}
	if err := ValidateTemplates(params.Templates); err != nil {
		return nil, domain.Invalid("settings.update", err.Error())
	}

	settings := &domain.ReminderSettings{
		CompanyID:          companyID,
		Enabled:            params.Enabled,
		DaysBeforeDue:      params.DaysBeforeDue,
		DaysAfterDue:       params.DaysAfterDue,
		SenderName:         params.SenderName,
		ReplyTo:            params.ReplyTo,
		IncludePaymentLink: params.IncludePaymentLink,
		Templates:          params.Templates,
	}
	if settings.DaysBeforeDue == nil {
		settings.DaysBeforeDue = []int32{}
	}
	if settings.DaysAfterDue == nil {
		settings.DaysAfterDue = []int32{}
	}
	if settings.Templates == nil {
		settings.Templates = map[domain.Bucket]domain.TemplatePair{}
	}

	if err := s.store.UpsertSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save reminder settings: %w", err)
	}

	return settings, nil
}

// Reset restores the built-in defaults for a tenant. Settings rows are
// never deleted; reset overwrites in place.
func (s *SettingsService) Reset(ctx context.Context, companyID uuid.UUID) (*domain.ReminderSettings, error) {
	settings := DefaultSettings(companyID)
	if err := s.store.UpsertSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to reset reminder settings: %w", err)
	}
	return settings, nil
}
