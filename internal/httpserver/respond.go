package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope. Field and Suggestion
// are populated for the validation/conflict-style {field, reason,
// suggestion} triple spec §7 requires ("every error carries a short human
// message plus an actionable suggestion"); Error is the stable error_code
// every other failure still carries for callers to match on.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Field      string `json:"field,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// RespondError writes a JSON error response carrying only the stable error
// code and a human message.
func RespondError(w http.ResponseWriter, status int, err string, message string) {
	Respond(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// RespondFieldError writes a JSON error response that also carries the
// offending field and an actionable suggestion, for the validation/conflict
// errors spec §7 asks to surface as a {field, reason, suggestion} triple.
func RespondFieldError(w http.ResponseWriter, status int, err, message, field, suggestion string) {
	Respond(w, status, ErrorResponse{
		Error:      err,
		Message:    message,
		Field:      field,
		Suggestion: suggestion,
	})
}
