// Package apperr defines the error taxonomy shared by services and handlers.
// Handlers branch on Kind, never on the message text.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for transport mapping
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindUnavailable
)

// Error codes for API responses
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error is a classified application error
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Fields holds per-field messages for validation failures
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a validation error with optional field details
func Validation(message string, fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidationError, Message: message, Fields: fields}
}

// Field builds a validation error for a single field
func Field(field, message string) *Error {
	return Validation(message, map[string][]string{field: {message}})
}

// Authentication builds an authentication error
func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Code: CodeUnauthenticated, Message: message}
}

// Authorization builds an authorization error
func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeForbidden, Message: message}
}

// NotFound builds a not-found error
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: message}
}

// Conflict builds a duplicate-resource error
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Unavailable builds an error for an unconfigured or unreachable collaborator
func Unavailable(message string) *Error {
	return &Error{Kind: KindUnavailable, Code: CodeUnavailable, Message: message}
}

// Internal wraps an infrastructure failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, KindInternal when err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the classified error, if any
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Status maps a kind to its HTTP status code
func Status(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
