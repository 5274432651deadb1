package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// renderJSON writes v with the given status.
func renderJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// renderError renders a standard error response
func renderError(w http.ResponseWriter, statusCode int, code, message string) {
	renderErrorWithDetails(w, statusCode, code, message, nil)
}

// renderErrorWithDetails renders an error with additional details
func renderErrorWithDetails(w http.ResponseWriter, statusCode int, code, message string, details any) {
	renderJSON(w, statusCode, &ErrorResponse{
		Error:   errorNameFromStatus(statusCode),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// errorNameFromStatus maps a status code to a snake_case error name.
func errorNameFromStatus(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
