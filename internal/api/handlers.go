package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/terra-clan/training-engine/internal/career"
	"github.com/terra-clan/training-engine/internal/catalog"
	"github.com/terra-clan/training-engine/internal/session"
)

var validate = validator.New()

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// decodeBody reads a JSON body and runs struct validation. It writes the
// error response itself and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

// errorStatus maps engine sentinels to HTTP responses
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{catalog.ErrTaskNotFound, http.StatusNotFound, "task_not_found"},
	{session.ErrSessionActive, http.StatusConflict, "session_active"},
	{session.ErrNoActiveSession, http.StatusConflict, "no_active_session"},
	{session.ErrUnsupportedAction, http.StatusUnprocessableEntity, "unsupported_action"},
	{session.ErrHintsUnavailable, http.StatusForbidden, "hints_unavailable"},
	{session.ErrNoHint, http.StatusNotFound, "no_hint"},
	{session.ErrInvalidMode, http.StatusBadRequest, "invalid_mode"},
	{career.ErrNoDay, http.StatusConflict, "no_day"},
	{career.ErrDayInProgress, http.StatusConflict, "day_in_progress"},
	{career.ErrDayOver, http.StatusConflict, "day_over"},
	{career.ErrJobInProgress, http.StatusConflict, "job_in_progress"},
	{career.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{career.ErrOrderMismatch, http.StatusConflict, "order_mismatch"},
}

func respondEngineError(w http.ResponseWriter, err error, action string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			respondError(w, e.status, e.code, err.Error())
			return
		}
	}
	slog.Error("engine call failed", "action", action, "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		slog.Warn("readiness check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
