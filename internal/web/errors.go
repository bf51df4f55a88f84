package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and the request id, then
// returned to the client as a user message with an action and a support
// code from importer.MapError. API routes get JSON; pages get plain text.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/taxonomy-import/internal/importer"
	"github.com/JonMunkholm/taxonomy-import/internal/logging"
	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

var (
	errRateLimited    = errors.New("rate limit exceeded")
	errReportNotFound = errors.New("import not found")
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// RunID points at the stored report of a failed import.
	RunID string `json:"run_id,omitempty"`
}

// writeError logs err and writes the mapped user message.
func writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	writeRunError(w, r, err, status, "")
}

func writeRunError(w http.ResponseWriter, r *http.Request, err error, status int, runID string) {
	msg := importer.MapError(err)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", args...)
	} else {
		log.Warn("request error", args...)
	}

	if !wantsJSON(r) {
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		RunID:   runID,
	})
}

// statusFor picks the HTTP status for an import or resolve error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, importer.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrInvalidOptions),
		errors.Is(err, importer.ErrInvalidHeader),
		errors.Is(err, importer.ErrEmptyFile),
		errors.Is(err, importer.ErrNoFile),
		errors.Is(err, importer.ErrUnknownNamespace),
		errors.Is(err, taxonomy.ErrEmptyValue):
		return http.StatusBadRequest
	case errors.Is(err, errReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
