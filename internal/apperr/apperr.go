// Package apperr defines the typed error taxonomy shared by all components.
// Lookup and verification failures are converted to these kinds at each
// component boundary; raw persistence errors never cross into callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error kind. Codes are stable strings exposed in API
// responses and matched by clients.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error is the application error type. Two errors are considered equivalent
// by errors.Is when their codes match, so sentinel values below can be used
// as targets even for errors constructed with extra detail.
type Error struct {
	Code    Code
	Message string
	// Field is set for validation errors.
	Field string
	// RetryAfter is the number of seconds until a rate-limited caller may
	// retry. Only meaningful when Code is CodeRateLimited.
	RetryAfter int64
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports code equality so errors.Is(err, ErrTokenExpired) works for any
// error carrying CodeTokenExpired.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeInvalidCredentials, CodeTokenExpired, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel errors for the parameter-free kinds. Services return these
// directly; handlers map them to status codes via Status.
var (
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrTokenExpired       = &Error{Code: CodeTokenExpired, Message: "token has expired"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "forbidden"}
)

// Validation returns a validation error for the given field.
func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

// NotFound returns a not-found error for the named resource.
func NotFound(resource string) *Error {
	return &Error{Code: CodeNotFound, Message: resource + " not found"}
}

// Conflict returns a conflict error with the given message.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// RateLimited returns a rate-limited error carrying the retry-after hint.
func RateLimited(retryAfter int64) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("rate limited, retry after %d seconds", retryAfter),
		RetryAfter: retryAfter,
	}
}

// Internal wraps a failure not attributable to the caller. The underlying
// error text is kept out of the message so it is never echoed to clients;
// callers should log err before converting.
func Internal(message string) *Error {
	return &Error{Code: CodeInternal, Message: message}
}

// FromError returns err as an *Error, wrapping unknown errors as Internal.
func FromError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("an internal error occurred")
}
