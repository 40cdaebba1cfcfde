// Package domain provides the gateway's canonical error types.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a gateway error.
type ErrorKind string

const (
	// ErrorKindMissingCredential indicates an authenticated route was called
	// without a usable credential cookie.
	ErrorKindMissingCredential ErrorKind = "MISSING_CREDENTIAL"

	// ErrorKindBackendUnreachable indicates a network-level failure while
	// talking to the backend.
	ErrorKindBackendUnreachable ErrorKind = "BACKEND_UNREACHABLE"

	// ErrorKindInvalidUpstreamResponse indicates the backend declared JSON but
	// sent something that does not parse.
	ErrorKindInvalidUpstreamResponse ErrorKind = "INVALID_UPSTREAM_RESPONSE"

	// ErrorKindValidation indicates a malformed inbound payload.
	ErrorKindValidation ErrorKind = "VALIDATION"

	// ErrorKindUnexpectedUpstreamStatus indicates a probe returned a status
	// outside the set it knows how to interpret.
	ErrorKindUnexpectedUpstreamStatus ErrorKind = "UNEXPECTED_UPSTREAM_STATUS"

	// ErrorKindMockUnavailable indicates mock mode is active and the route has
	// no fixture to serve.
	ErrorKindMockUnavailable ErrorKind = "MOCK_UNAVAILABLE"
)

// Fixed client-facing messages. Upstream detail never reaches the client.
const (
	MessageMissingCredential  = "Not authenticated"
	MessageBackendUnreachable = "Backend service unavailable"
	MessageInvalidUpstream    = "Invalid response from backend"
	MessageUnexpectedUpstream = "Unexpected response from backend"
	MessageMockUnavailable    = "Route unavailable in mock mode"
)

// Error is a canonical gateway error. Cause is kept for logging only.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case ErrorKindMissingCredential:
		return http.StatusUnauthorized
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindBackendUnreachable, ErrorKindInvalidUpstreamResponse, ErrorKindUnexpectedUpstreamStatus:
		return http.StatusBadGateway
	case ErrorKindMockUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new gateway error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// WithCause attaches an underlying cause for logging.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// AsError converts any error to a *Error. Unknown errors become
// BACKEND_UNREACHABLE with the generic message, keeping the original as cause.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return ErrBackendUnreachable(err)
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == kind
}

// Convenience constructors

// ErrMissingCredential creates a missing credential error.
func ErrMissingCredential() *Error {
	return NewError(ErrorKindMissingCredential, MessageMissingCredential)
}

// ErrBackendUnreachable creates a backend unreachable error wrapping cause.
func ErrBackendUnreachable(cause error) *Error {
	return NewError(ErrorKindBackendUnreachable, MessageBackendUnreachable).WithCause(cause)
}

// ErrInvalidUpstreamResponse creates an invalid upstream response error.
func ErrInvalidUpstreamResponse(cause error) *Error {
	return NewError(ErrorKindInvalidUpstreamResponse, MessageInvalidUpstream).WithCause(cause)
}

// ErrValidation creates a validation error. The message is shown to the client.
func ErrValidation(message string) *Error {
	return NewError(ErrorKindValidation, message)
}

// ErrUnexpectedUpstreamStatus creates an unexpected upstream status error.
func ErrUnexpectedUpstreamStatus(status int) *Error {
	return NewError(ErrorKindUnexpectedUpstreamStatus, MessageUnexpectedUpstream).
		WithCause(fmt.Errorf("upstream status %d", status))
}

// ErrMockUnavailable creates a mock unavailable error.
func ErrMockUnavailable() *Error {
	return NewError(ErrorKindMockUnavailable, MessageMockUnavailable)
}
