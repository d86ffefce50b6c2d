package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/model"
)

// ReminderService is the part of the reminder engine the handlers need.
type ReminderService interface {
	EligibleCandidates(ctx context.Context, policy model.ReminderPolicy) ([]model.ReminderCandidate, error)
	RecordReminder(ctx context.Context, messageID int64, emailAddress string) (model.ReminderLogEntry, error)
	History(ctx context.Context, messageID int64) (model.ReminderLogEntry, error)
}

type ReminderHandler struct {
	service       ReminderService
	defaultPolicy model.ReminderPolicy
	logger        *logger.Logger
}

func NewReminderHandler(service ReminderService, defaultPolicy model.ReminderPolicy, logger *logger.Logger) *ReminderHandler {
	return &ReminderHandler{
		service:       service,
		defaultPolicy: defaultPolicy,
		logger:        logger,
	}
}

type candidateResponse struct {
	MessageID      int64     `json:"message_id"`
	UniqueID       string    `json:"unique_id"`
	RecipientEmail string    `json:"recipient_email"`
	Created        time.Time `json:"created"`
	DaysOld        int       `json:"days_old"`
}

type recordReminderRequest struct {
	MessageID    int64  `json:"message_id"`
	EmailAddress string `json:"email_address"`
}

type reminderEntryResponse struct {
	MessageID        int64     `json:"message_id"`
	EmailAddress     string    `json:"email_address"`
	ReminderCount    int       `json:"reminder_count"`
	LastReminderSent time.Time `json:"last_reminder_sent"`
}

// Unviewed lists the secrets currently due a reminder. Policy knobs default
// to the server configuration and can be overridden per request via query
// parameters.
func (h *ReminderHandler) Unviewed(w http.ResponseWriter, r *http.Request) {
	policy, err := h.policyFromQuery(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	candidates, err := h.service.EligibleCandidates(r.Context(), policy)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	out := make([]candidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		out = append(out, candidateResponse{
			MessageID:      candidate.MessageID,
			UniqueID:       candidate.UniqueID,
			RecipientEmail: candidate.RecipientEmail,
			Created:        candidate.CreatedAt,
			DaysOld:        candidate.DaysOld,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *ReminderHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, h.logger, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
		return
	}

	entry, err := h.service.RecordReminder(r.Context(), req.MessageID, req.EmailAddress)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, reminderEntryResponse{
		MessageID:        entry.MessageID,
		EmailAddress:     entry.EmailAddress,
		ReminderCount:    entry.ReminderCount,
		LastReminderSent: entry.LastReminderSent,
	})
}

func (h *ReminderHandler) History(w http.ResponseWriter, r *http.Request) {
	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		handleError(w, h.logger, fmt.Errorf("%w: invalid message id", model.ErrInvalidInput))
		return
	}

	entry, err := h.service.History(r.Context(), messageID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, reminderEntryResponse{
		MessageID:        entry.MessageID,
		EmailAddress:     entry.EmailAddress,
		ReminderCount:    entry.ReminderCount,
		LastReminderSent: entry.LastReminderSent,
	})
}

func (h *ReminderHandler) policyFromQuery(r *http.Request) (model.ReminderPolicy, error) {
	policy := h.defaultPolicy
	query := r.URL.Query()

	if raw := query.Get("older_than_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return model.ReminderPolicy{}, fmt.Errorf("%w: invalid older_than_hours", model.ErrInvalidInput)
		}
		policy.OlderThan = time.Duration(hours) * time.Hour
	}
	if raw := query.Get("max_reminders"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.ReminderPolicy{}, fmt.Errorf("%w: invalid max_reminders", model.ErrInvalidInput)
		}
		policy.MaxReminders = n
	}
	if raw := query.Get("reminder_interval_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return model.ReminderPolicy{}, fmt.Errorf("%w: invalid reminder_interval_hours", model.ErrInvalidInput)
		}
		policy.Interval = time.Duration(hours) * time.Hour
	}

	return policy, nil
}
