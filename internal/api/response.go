package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-resale/internal/apperr"
)

// APIResponse is the envelope every JSON endpoint writes.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func ErrorResponse(message, error, code string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}

// StatusFor maps an error's kind onto an HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindStateConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) ok(w http.ResponseWriter, status int, message string, data interface{}) {
	h.writeJSON(w, status, SuccessResponse(message, data))
}

// fail writes err with its mapped status. Errors without a known kind are
// logged and hidden from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := StatusFor(err)
	detail := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		detail = "internal server error"
	case errors.Is(err, apperr.ErrStorage):
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	default:
		h.Logger.Debug("API", fmt.Sprintf("%s %s rejected: %v", r.Method, r.URL.Path, err))
	}
	h.writeJSON(w, status, ErrorResponse(message, detail, apperr.CodeOf(err)))
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	h.Logger.LogSecurity("UNAUTHORIZED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	h.writeJSON(w, http.StatusUnauthorized, ErrorResponse("Authentication required", err.Error(), "unauthorized"))
}
