// Package apperr defines the business error taxonomy shared by the decision
// core. Infrastructure errors are never wrapped in these types; they propagate
// unchanged so callers can tell a bad request from a database outage.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a business failure.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindNotFound     Kind = "resource_not_found"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidState = errors.New("invalid state for operation")
	ErrConflict     = errors.New("scheduling conflict")
)

var codes = map[Kind]string{
	KindValidation:   "CSE-4001",
	KindNotFound:     "CSE-4004",
	KindInvalidState: "CSE-4009",
	KindConflict:     "CSE-4010",
}

// Error is a typed business error carrying a stable code for API clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is match an *Error against the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidState:
		return e.Kind == KindInvalidState
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: codes[kind], Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input.
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// NotFound reports a missing referenced entity.
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// InvalidState reports a valid entity in the wrong state for the operation.
func InvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, format, args...)
}

// Conflict reports a scheduling overlap.
func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

// HTTPStatus maps an error to the status code the HTTP layer should return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the stable error code, or the server error code for
// anything that is not a business error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "SSE-5000"
}
