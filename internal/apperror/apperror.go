// Package apperror defines the error taxonomy shared by services and handlers.
//
// Every failure a service wants to surface to a caller is an *AppError whose
// Err field is one of the sentinels below. Callers branch with errors.Is on the
// sentinel and read Message (human readable) and Detail (upstream diagnostics)
// for display. Anything that is not an *AppError is an unexpected failure.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthenticated means no identity token, or one that failed verification.
	ErrUnauthenticated = errors.New("unauthenticated")

	// GitHub linking and provisioning failures.
	ErrLinkDenied               = errors.New("link denied")
	ErrDomainNotAllowed         = errors.New("domain not allowed")
	ErrInstallationFetch        = errors.New("installation fetch error")
	ErrAppNotInstalled          = errors.New("app not installed")
	ErrMissingInstitutionalLink = errors.New("missing institutional link")
	ErrMissingPersonalLink      = errors.New("missing personal link")
	ErrProvider                 = errors.New("provider api error")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Detail  string // Optional: upstream diagnostic text
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError of the given kind.
func New(kind error, message string) *AppError {
	return &AppError{Err: kind, Message: message}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthenticated(message string) *AppError {
	return &AppError{Err: ErrUnauthenticated, Message: message}
}

func LinkDenied(message string) *AppError {
	return &AppError{Err: ErrLinkDenied, Message: message}
}

func DomainNotAllowed(message string) *AppError {
	return &AppError{Err: ErrDomainNotAllowed, Message: message}
}

// InstallationFetch records the upstream cause in Detail so operators can see
// it in logs, while Message stays safe to show in a browser redirect.
func InstallationFetch(message string, cause error) *AppError {
	return &AppError{Err: ErrInstallationFetch, Message: message, Detail: detailOf(cause)}
}

func AppNotInstalled() *AppError {
	return &AppError{Err: ErrAppNotInstalled, Message: "install the GitHub App first"}
}

func MissingInstitutionalLink() *AppError {
	return &AppError{
		Err:     ErrMissingInstitutionalLink,
		Message: "link your INSTITUTIONAL GitHub account first",
	}
}

func MissingPersonalLink() *AppError {
	return &AppError{
		Err:     ErrMissingPersonalLink,
		Message: "link your PERSONAL GitHub account first",
	}
}

// Provider wraps an opaque GitHub API failure. The upstream message is passed
// through in Detail for diagnostics.
func Provider(message string, cause error) *AppError {
	return &AppError{Err: ErrProvider, Message: message, Detail: detailOf(cause)}
}

// MessageOf returns the human-readable message of err when it is an *AppError,
// or fallback otherwise.
func MessageOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

func detailOf(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
