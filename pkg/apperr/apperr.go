// Package apperr defines the error kinds surfaced at the service boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by whose fault it is and how it is reported
type Kind int

// Defines error kinds
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindExternalService
)

var kindToString = []string{
	"INTERNAL_ERROR",
	"VALIDATION_ERROR",
	"AUTHENTICATION_ERROR",
	"AUTHORIZATION_ERROR",
	"NOT_FOUND",
	"EXTERNAL_SERVICE_ERROR",
}

var kindToHTTPStatus = []int{
	http.StatusInternalServerError,
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusBadGateway,
}

// InternalMessage is what callers see for internal errors
const InternalMessage = "Internal server error"

func (k Kind) String() string {
	i := int(k)
	if i < 0 || i >= len(kindToString) {
		return kindToString[0]
	}
	return kindToString[i]
}

// HTTPStatus returns the status code used for the kind at the HTTP boundary
func (k Kind) HTTPStatus() int {
	i := int(k)
	if i < 0 || i >= len(kindToHTTPStatus) {
		return http.StatusInternalServerError
	}
	return kindToHTTPStatus[i]
}

// Error is an error with a kind and a caller-facing message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage returns the message safe to show to the caller
func (e *Error) PublicMessage() string {
	if e.Kind == KindInternal {
		return InternalMessage
	}
	return e.Message
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping err
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation creates a validation error
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Authentication creates an authentication error
func Authentication(format string, args ...any) *Error {
	return New(KindAuthentication, format, args...)
}

// Authorization creates an authorization error
func Authorization(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}

// NotFound creates a not found error
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Internal wraps err as an internal error
func Internal(err error, format string, args ...any) *Error {
	return Wrap(KindInternal, err, format, args...)
}

// ExternalService wraps err as an error of an unavailable collaborator
func ExternalService(err error, format string, args ...any) *Error {
	return Wrap(KindExternalService, err, format, args...)
}

// KindOf returns the kind of err, errors without a kind are internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
