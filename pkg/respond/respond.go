package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes carried in the "code" field of JSON error bodies.
const (
	CodeAuthRequired        = "authentication_required"
	CodeInvalidToken        = "invalid_or_expired_token"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamError       = "upstream_error"
	CodeBadRequest          = "bad_request"
	CodeNotFound            = "not_found"
	CodeInternal            = "internal_error"
)

type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) bool {
	resp, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to serialize JSON response", "error", err)
		Error(w, http.StatusInternalServerError, CodeInternal, "failed json marshal")
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(resp); err != nil {
		logger.Error("failed to write response to client", "error", err)
		return false
	}
	return true
}

func Error(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorBody{Error: msg, Code: code}); err != nil {
		return
	}
}
