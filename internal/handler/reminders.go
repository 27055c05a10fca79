package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sitecraft/reminders/internal/domain"
	"github.com/sitecraft/reminders/internal/middleware"
	"github.com/sitecraft/reminders/internal/reminder"
)

// ReminderHandler serves the single action endpoint for the reminder
// API: POST /api/reminders with a JSON body naming the action.
type ReminderHandler struct {
	store      domain.ReminderStore
	settings   *reminder.SettingsService
	scheduler  *reminder.Scheduler
	dispatcher *reminder.Dispatcher
	batch      *reminder.BatchProcessor
	logger     *slog.Logger
}

// NewReminderHandler creates a new reminder handler.
func NewReminderHandler(
	store domain.ReminderStore,
	settings *reminder.SettingsService,
	scheduler *reminder.Scheduler,
	dispatcher *reminder.Dispatcher,
	batch *reminder.BatchProcessor,
	logger *slog.Logger,
) *ReminderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderHandler{
		store:      store,
		settings:   settings,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		batch:      batch,
		logger:     logger,
	}
}

// actionRequest is the envelope every API call arrives in.
type actionRequest struct {
	Action        string           `json:"action"`
	CompanyID     string           `json:"company_id,omitempty"`
	InvoiceID     string           `json:"invoice_id,omitempty"`
	ReminderType  string           `json:"reminder_type,omitempty"`
	CustomMessage string           `json:"custom_message,omitempty"`
	Reset         bool             `json:"reset,omitempty"`
	Settings      *settingsPayload `json:"settings,omitempty"`
}

// settingsPayload is the wire shape of reminder settings, shared by
// get_settings responses and update_settings requests.
type settingsPayload struct {
	Enabled            bool                                  `json:"enabled"`
	DaysBeforeDue      []int32                               `json:"days_before_due"`
	DaysAfterDue       []int32                               `json:"days_after_due"`
	SenderName         string                                `json:"sender_name"`
	ReplyTo            string                                `json:"reply_to"`
	IncludePaymentLink bool                                  `json:"include_payment_link"`
	Templates          map[domain.Bucket]domain.TemplatePair `json:"templates"`
}

func settingsToPayload(s *domain.ReminderSettings) *settingsPayload {
	return &settingsPayload{
		Enabled:            s.Enabled,
		DaysBeforeDue:      s.DaysBeforeDue,
		DaysAfterDue:       s.DaysAfterDue,
		SenderName:         s.SenderName,
		ReplyTo:            s.ReplyTo,
		IncludePaymentLink: s.IncludePaymentLink,
		Templates:          s.Templates,
	}
}

// HandleAction handles POST /api/reminders.
//
// Response codes:
// - 200 OK: action executed; send failures still return 200 with
//   success=false, since the request itself was valid
// - 400 Bad Request: unknown action, malformed body or invalid IDs
// - 401 Unauthorized: bad or missing API token
// - 404 Not Found: company or invoice does not exist
// - 500 Internal Server Error: storage failure
func (h *ReminderHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("reminders.action", "invalid JSON body"))
		return
	}

	ctx := r.Context()

	switch req.Action {
	case "process_scheduled":
		// Operates across all tenants; no tenant resolution needed.
		h.handleProcessScheduled(w, r)
		return
	case "send", "schedule", "get_settings", "update_settings", "preview":
	case "":
		ErrorResponse(w, r, domain.Invalid("reminders.action", "action is required"))
		return
	default:
		ErrorResponse(w, r, domain.Invalid("reminders.action", "unknown action: "+req.Action))
		return
	}

	companyID, err := h.resolveCompany(r, req.CompanyID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(ctx, h.logger).Debug("reminder action", "action", req.Action, "company_id", companyID)

	switch req.Action {
	case "send":
		h.handleSend(w, r, companyID, &req)
	case "schedule":
		h.handleSchedule(w, r, companyID)
	case "get_settings":
		h.handleGetSettings(w, r, companyID)
	case "update_settings":
		h.handleUpdateSettings(w, r, companyID, &req)
	case "preview":
		h.handlePreview(w, r, companyID, &req)
	}
}

// resolveCompany determines the tenant for the request: an explicit
// company_id wins, otherwise the bearer API token is looked up.
func (h *ReminderHandler) resolveCompany(r *http.Request, explicitID string) (uuid.UUID, error) {
	if explicitID != "" {
		id, err := uuid.Parse(explicitID)
		if err != nil {
			return uuid.Nil, domain.Invalid("reminders.action", "company_id is not a valid UUID")
		}
		if _, err := h.store.GetCompany(r.Context(), id); err != nil {
			return uuid.Nil, err
		}
		return id, nil
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return uuid.Nil, domain.Unauthorized("reminders.action", "company_id or bearer API token required")
	}

	company, err := h.store.GetCompanyByToken(r.Context(), token)
	if err != nil {
		return uuid.Nil, err
	}
	return company.ID, nil
}

func (h *ReminderHandler) handleSend(w http.ResponseWriter, r *http.Request, companyID uuid.UUID, req *actionRequest) {
	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("reminders.send", "invoice_id is not a valid UUID"))
		return
	}

	result, err := h.dispatcher.Send(r.Context(), reminder.SendParams{
		CompanyID:     companyID,
		InvoiceID:     invoiceID,
		Type:          domain.Bucket(req.ReminderType),
		CustomMessage: req.CustomMessage,
	})
	if err != nil {
		// An unresolvable recipient is a tenant data problem, not a
		// malformed request: report it as an unsuccessful send.
		if errors.Is(err, domain.ErrNoRecipient) {
			JSONResponse(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   domain.ErrorMessage(err),
			})
			return
		}
		ErrorResponse(w, r, err)
		return
	}

	resp := map[string]any{
		"success":       result.Sent,
		"reminder_type": result.ReminderType,
		"recipient":     result.Recipient,
	}
	if result.MessageID != "" {
		resp["message_id"] = result.MessageID
	}
	if result.Error != "" {
		resp["error"] = result.Error
	}
	JSONResponse(w, http.StatusOK, resp)
}

func (h *ReminderHandler) handleSchedule(w http.ResponseWriter, r *http.Request, companyID uuid.UUID) {
	scheduled, err := h.scheduler.Schedule(r.Context(), companyID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"scheduled": scheduled,
	})
}

func (h *ReminderHandler) handleProcessScheduled(w http.ResponseWriter, r *http.Request) {
	result, err := h.batch.ProcessScheduled(r.Context())
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"processed": result.Processed,
		"sent":      result.Sent,
		"failed":    result.Failed,
	})
}

func (h *ReminderHandler) handleGetSettings(w http.ResponseWriter, r *http.Request, companyID uuid.UUID) {
	settings, err := h.settings.Get(r.Context(), companyID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"settings": settingsToPayload(settings),
	})
}

func (h *ReminderHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request, companyID uuid.UUID, req *actionRequest) {
	if req.Reset {
		settings, err := h.settings.Reset(r.Context(), companyID)
		if err != nil {
			ErrorResponse(w, r, err)
			return
		}
		JSONResponse(w, http.StatusOK, map[string]any{
			"success":  true,
			"settings": settingsToPayload(settings),
		})
		return
	}

	if req.Settings == nil {
		ErrorResponse(w, r, domain.Invalid("reminders.update_settings", "settings object is required"))
		return
	}

	settings, err := h.settings.Update(r.Context(), companyID, reminder.UpdateSettingsParams{
		Enabled:            req.Settings.Enabled,
		DaysBeforeDue:      req.Settings.DaysBeforeDue,
		DaysAfterDue:       req.Settings.DaysAfterDue,
		SenderName:         req.Settings.SenderName,
		ReplyTo:            req.Settings.ReplyTo,
		IncludePaymentLink: req.Settings.IncludePaymentLink,
		Templates:          req.Settings.Templates,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"settings": settingsToPayload(settings),
	})
}

func (h *ReminderHandler) handlePreview(w http.ResponseWriter, r *http.Request, companyID uuid.UUID, req *actionRequest) {
	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("reminders.preview", "invoice_id is not a valid UUID"))
		return
	}

	preview, err := h.dispatcher.Preview(r.Context(), reminder.SendParams{
		CompanyID:     companyID,
		InvoiceID:     invoiceID,
		Type:          domain.Bucket(req.ReminderType),
		CustomMessage: req.CustomMessage,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"preview": map[string]any{
			"reminder_type": preview.ReminderType,
			"recipient":     preview.Recipient,
			"subject":       preview.Subject,
			"body":          preview.Body,
		},
	})
}
