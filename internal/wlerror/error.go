package wlerror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// A Kind classifies a WLError.
type Kind string

// Error kinds.
const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not-found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

var codes = map[Kind]int{
	KindValidation: http.StatusBadRequest,
	KindNotFound:   http.StatusNotFound,
	KindForbidden:  http.StatusForbidden,
	KindConflict:   http.StatusInternalServerError,
	KindInternal:   http.StatusInternalServerError,
}

// A WLError represents the error format that can be rendered by the workload server.
type WLError struct {
	HTTPCode int    `json:"-"`
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	cause    error
}

// New returns a new WLError of the given kind.
func New(kind Kind, message string) *WLError {
	return &WLError{
		HTTPCode: codes[kind],
		Kind:     kind,
		Message:  message,
	}
}

// Newf returns a new WLError of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *WLError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Validation returns a new validation error.
func Validation(format string, args ...any) *WLError {
	return Newf(KindValidation, format, args...)
}

// NotFound returns a new not found error.
func NotFound(format string, args ...any) *WLError {
	return Newf(KindNotFound, format, args...)
}

// Forbidden returns a new forbidden error.
func Forbidden(format string, args ...any) *WLError {
	return Newf(KindForbidden, format, args...)
}

// Conflict returns a new conflict error wrapping the given cause.
func Conflict(cause error, format string, args ...any) *WLError {
	e := Newf(KindConflict, format, args...)
	e.cause = cause
	return e
}

// Internal returns a new internal error wrapping the given cause.
func Internal(cause error, format string, args ...any) *WLError {
	e := Newf(KindInternal, format, args...)
	e.cause = cause
	return e
}

// Error implements error interface.
func (e *WLError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Cause returns the underlying error, if any.
func (e *WLError) Cause() error {
	return e.cause
}

// Unwrap returns the underlying error, if any.
func (e *WLError) Unwrap() error {
	return e.cause
}

// From returns the WLError carried by err, if any.
func From(err error) (*WLError, bool) {
	var wlerr *WLError
	if errors.As(err, &wlerr) {
		return wlerr, true
	}
	return nil, false
}

// Is returns true if err carries a WLError of the given kind.
func Is(err error, kind Kind) bool {
	wlerr, ok := From(err)
	return ok && wlerr.Kind == kind
}

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if wlerr, ok := From(err); ok && wlerr.HTTPCode != 0 {
		return wlerr.HTTPCode
	}
	return http.StatusInternalServerError
}
