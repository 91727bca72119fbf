// Package apperr defines the typed errors returned by the service layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

// Error codes.
const (
	InvalidRequest    Code = "INVALID_REQUEST"
	ValidationFailed  Code = "VALIDATION_FAILED"
	InvalidReference  Code = "INVALID_REFERENCE"
	NotFound          Code = "NOT_FOUND"
	EmailExists       Code = "EMAIL_EXISTS"
	UploadUnavailable Code = "UPLOAD_UNAVAILABLE"
	UploadFailed      Code = "UPLOAD_FAILED"
	RateLimited       Code = "RATE_LIMITED"
	Internal          Code = "INTERNAL"
)

var messages = map[Code]string{
	InvalidRequest:    "invalid JSON",
	ValidationFailed:  "validation failed",
	InvalidReference:  "referenced developer does not exist",
	NotFound:          "resource not found",
	EmailExists:       "email already exists",
	UploadUnavailable: "image storage not configured",
	UploadFailed:      "image upload failed",
	RateLimited:       "rate limit exceeded",
	Internal:          "internal server error",
}

var statusByCode = map[Code]int{
	InvalidRequest:    http.StatusBadRequest,
	ValidationFailed:  http.StatusBadRequest,
	InvalidReference:  http.StatusBadRequest,
	NotFound:          http.StatusNotFound,
	EmailExists:       http.StatusConflict,
	UploadUnavailable: http.StatusServiceUnavailable,
	UploadFailed:      http.StatusBadGateway,
	RateLimited:       http.StatusTooManyRequests,
	Internal:          http.StatusInternalServerError,
}

// Error is an application error carrying a code, a caller-facing message
// and optionally the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the code to an HTTP status.
func (e *Error) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates an Error with the default message for code.
func New(code Code) *Error {
	return &Error{Code: code, Message: messageFor(code)}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the default message for code and cause err.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Message: messageFor(code), Err: err}
}

// As returns the *Error in err's chain. Errors that are not application
// errors are reported as Internal with err as the cause.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(Internal, err)
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

func messageFor(code Code) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return messages[Internal]
}
