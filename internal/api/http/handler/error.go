package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

// handleError maps domain errors onto HTTP status codes. Exhausted secrets
// answer 410 so clients can tell a burned link from a dead one.
func handleError(w http.ResponseWriter, l *logger.Logger, err error) {
	var status int

	switch {
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, model.ErrExhausted):
		status = http.StatusGone
	default:
		l.Error("internal error", "error", err)
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
