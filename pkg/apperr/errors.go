// Package apperr classifies service errors so transports can map them to
// status codes without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a service error
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindQuotaExceeded
	KindNotFound
	KindConflict
	KindValidation
	KindRateLimited
	// KindUpstream is a failed call to an external provider. It maps to 500
	// but, unlike KindInternal, keeps its message.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified error. Message is safe to show to clients; Err is not.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err under kind with a client-safe message
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Unauthenticated is returned when no caller identity can be resolved
func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

// Forbidden is returned when the caller lacks a role or ownership
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// QuotaExceeded is returned when a subscription limit has been reached
func QuotaExceeded(message string, cause error) *Error {
	return Wrap(KindQuotaExceeded, message, cause)
}

// NotFound is returned when a referenced record does not exist
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Conflict is returned for duplicate invitations, memberships or names
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Validation is returned for missing or malformed input
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Validationf is Validation with formatting
func Validationf(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// RateLimited is returned when the caller or an upstream provider throttles
func RateLimited(message string) *Error {
	return New(KindRateLimited, message)
}

// Upstream wraps a provider failure with a client-safe message
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

// Internal wraps an unexpected failure. The message is logged, not returned to clients.
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the client-safe message for err
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Server error"
}
