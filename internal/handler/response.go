// Package handler holds the chi HTTP handlers.
//
// Handlers decode and validate requests, call one service method and write
// the result. Business rules live in the service package; this package only
// translates between HTTP and service calls.
package handler

// RESPONSE HELPERS:
// Every JSON error from the API has the same shape:
//
//	{"ok": false, "error": "not_found", "message": "project not found with id abc123"}
//
// so the front end can parse failures without looking at the status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Ross11547/Automatizacion/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`            // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`          // Human-readable description
	Field   string `json:"field,omitempty"`  // Request field at fault, for validation errors
	Detail  string `json:"detail,omitempty"` // Upstream diagnostics (GitHub API message)
}

// dataResponse wraps a payload with a human-readable confirmation.
type dataResponse struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and the status code must be set before the body is written; once
// Encode writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, dataResponse{Data: data, Message: message})
}

// errorKinds maps each apperror sentinel to its HTTP status and the
// machine-readable "error" value. Order matters only for readability; an
// AppError carries exactly one sentinel.
var errorKinds = []struct {
	kind   error
	status int
	name   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
	{apperror.ErrAppNotInstalled, http.StatusBadRequest, "app_not_installed"},
	{apperror.ErrMissingInstitutionalLink, http.StatusBadRequest, "missing_institutional_link"},
	{apperror.ErrMissingPersonalLink, http.StatusBadRequest, "missing_personal_link"},
	{apperror.ErrLinkDenied, http.StatusBadRequest, "link_denied"},
	{apperror.ErrDomainNotAllowed, http.StatusForbidden, "domain_not_allowed"},
	{apperror.ErrInstallationFetch, http.StatusBadGateway, "installation_fetch_error"},
	{apperror.ErrProvider, http.StatusBadGateway, "provider_error"},
}

// StatusOf returns the HTTP status and error name for err. Errors that are
// not an *apperror.AppError are internal errors.
func StatusOf(err error) (int, string) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, "internal_error"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, k.name
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.As walks the whole Unwrap chain, so a service may wrap an AppError
// with fmt.Errorf("...: %w", err) and the mapping still applies.
func writeError(w http.ResponseWriter, err error) {
	status, name := StatusOf(err)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{
			Error:   name,
			Message: appErr.Message,
			Field:   appErr.Field,
			Detail:  appErr.Detail,
		})
		return
	}

	// Never expose internal error details to the client: the raw message may
	// contain SQL, file paths or tokens.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
