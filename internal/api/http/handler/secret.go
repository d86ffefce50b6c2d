package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/model"
)

// SecretService is the part of the lifecycle facade the handlers need.
type SecretService interface {
	Insert(ctx context.Context, params model.InsertParams) (model.Secret, error)
	Redeem(ctx context.Context, uniqueID string) (model.Secret, error)
	Peek(ctx context.Context, uniqueID string) (model.Secret, error)
}

type SecretHandler struct {
	service SecretService
	logger  *logger.Logger
}

func NewSecretHandler(service SecretService, logger *logger.Logger) *SecretHandler {
	return &SecretHandler{
		service: service,
		logger:  logger,
	}
}

type insertRequest struct {
	UniqueID       string `json:"unique_id"`
	Content        []byte `json:"content"`
	Passphrase     string `json:"passphrase"`
	MaxViewCount   int    `json:"max_view_count"`
	RecipientEmail string `json:"recipient_email"`
}

type insertResponse struct {
	MessageID int64     `json:"message_id"`
	UniqueID  string    `json:"unique_id"`
	Created   time.Time `json:"created"`
}

type secretResponse struct {
	MessageID    int64     `json:"message_id"`
	UniqueID     string    `json:"unique_id"`
	Content      []byte    `json:"content,omitempty"`
	Passphrase   string    `json:"passphrase,omitempty"`
	ViewCount    int       `json:"view_count"`
	MaxViewCount int       `json:"max_view_count"`
	Created      time.Time `json:"created"`
}

func (h *SecretHandler) Insert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, h.logger, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
		return
	}

	secret, err := h.service.Insert(r.Context(), model.InsertParams{
		UniqueID:       req.UniqueID,
		Ciphertext:     req.Content,
		Passphrase:     req.Passphrase,
		MaxViewCount:   req.MaxViewCount,
		RecipientEmail: req.RecipientEmail,
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, insertResponse{
		MessageID: secret.MessageID,
		UniqueID:  secret.UniqueID,
		Created:   secret.CreatedAt,
	})
}

func (h *SecretHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	uniqueID := chi.URLParam(r, "uniqueID")

	secret, err := h.service.Redeem(r.Context(), uniqueID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, secretResponse{
		MessageID:    secret.MessageID,
		UniqueID:     secret.UniqueID,
		Content:      secret.Ciphertext,
		Passphrase:   secret.Passphrase,
		ViewCount:    secret.ViewCount,
		MaxViewCount: secret.MaxViewCount,
		Created:      secret.CreatedAt,
	})
}

func (h *SecretHandler) Peek(w http.ResponseWriter, r *http.Request) {
	uniqueID := chi.URLParam(r, "uniqueID")

	secret, err := h.service.Peek(r.Context(), uniqueID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, secretResponse{
		MessageID:    secret.MessageID,
		UniqueID:     secret.UniqueID,
		ViewCount:    secret.ViewCount,
		MaxViewCount: secret.MaxViewCount,
		Created:      secret.CreatedAt,
	})
}
