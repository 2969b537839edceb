// Package apierr defines the error taxonomy shared by the decision engine
// and the HTTP layer. Every user-visible failure maps to exactly one code.
package apierr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Error is a typed application error with an HTTP status mapping.
type Error struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// Validation reports malformed required input (bad timestamps, URLs).
// Never retried.
func Validation(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "VALIDATION", Message: msg}
}

// Unauthorized reports a run-id convention violation. No state is mutated.
func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: "UNAUTHORIZED", Message: msg}
}

// NotFound reports a missing cached plan.
func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: msg}
}

// Gone reports an expired plan. The caller must re-run analysis.
func Gone(msg string) *Error {
	return &Error{Status: http.StatusGone, Code: "GONE", Message: msg}
}

// BadRequest reports a structurally invalid plan or request.
func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: msg}
}

// Upstream reports a source-control collaborator failure for one call.
func Upstream(status int, msg string) *Error {
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	return &Error{Status: status, Code: "UPSTREAM", Message: msg}
}

// envelope is the JSON error body written to clients.
type envelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// JSON writes an error envelope with the given status, code, and message.
func JSON(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	var e envelope
	e.Error.Code = code
	e.Error.Message = msg
	if err := json.NewEncoder(w).Encode(e); err != nil {
		slog.Warn("Failed to encode error response", "error", err)
	}
}

// Write maps err onto the wire: a typed *Error keeps its status and code,
// anything else becomes an opaque 500.
func Write(w http.ResponseWriter, err error) {
	var appErr *Error
	if errors.As(err, &appErr) {
		JSON(w, appErr.Status, appErr.Code, appErr.Message)
		return
	}
	JSON(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}
