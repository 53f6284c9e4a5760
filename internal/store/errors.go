package store

import (
	"fmt"
	"net/http"
)

// Error is a store error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{
		Code:    e.Code,
		Message: msg,
		Err:     e.Err,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Sentinel errors.
var (
	// ErrLinkNotFound is returned when a link cannot be found by ID or slug.
	ErrLinkNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "link not found",
	}

	// ErrGuestNotFound is returned when a guest cannot be found.
	ErrGuestNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "guest not found",
	}

	// ErrSlugExists is returned when a link slug collides with an existing one.
	ErrSlugExists = &Error{
		Code:    http.StatusConflict,
		Message: "slug already exists",
	}

	// ErrGuestExists is returned when a guest with the same fingerprint was
	// already created for the link (a concurrent registration won the race).
	ErrGuestExists = &Error{
		Code:    http.StatusConflict,
		Message: "guest already registered",
	}

	// ErrQuotaExceeded is returned by ReserveSlot when the bound would be
	// exceeded or the link is no longer active.
	ErrQuotaExceeded = &Error{
		Code:    http.StatusConflict,
		Message: "no remaining slots",
	}

	// ErrInvalidState is returned when a conditional lifecycle update finds
	// the row in an unexpected state.
	ErrInvalidState = &Error{
		Code:    http.StatusConflict,
		Message: "link is not in the required state",
	}
)
