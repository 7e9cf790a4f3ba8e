// Package errors provides the error taxonomy shared by the facility finder,
// the symptom checker and the HTTP API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies a failure class surfaced to the user.
type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeNoResults       ErrorCode = "NO_RESULTS"
	ErrCodeTransport       ErrorCode = "TRANSPORT_ERROR"
	ErrCodeLoadFailed      ErrorCode = "LOAD_FAILED"
	ErrCodeNotReady        ErrorCode = "NOT_READY"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError is a structured application error carrying a code, a
// user-facing message and the underlying cause.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, details string, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   Notice(code),
		Details:   details,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewNotFoundError reports an empty geocoding or place lookup.
func NewNotFoundError(details string) *StandardError {
	return newError(ErrCodeNotFound, details, nil)
}

// NewNoResultsError reports a search that yielded nothing after filtering.
func NewNoResultsError(details string) *StandardError {
	return newError(ErrCodeNoResults, details, nil)
}

// NewTransportError wraps a network or provider failure.
func NewTransportError(service string, err error) *StandardError {
	details := service
	if err != nil {
		details = fmt.Sprintf("%s: %v", service, err)
	}
	return newError(ErrCodeTransport, details, err)
}

// NewLoadFailedError wraps a script or model bundle load failure.
func NewLoadFailedError(asset string, err error) *StandardError {
	details := asset
	if err != nil {
		details = fmt.Sprintf("%s: %v", asset, err)
	}
	return newError(ErrCodeLoadFailed, details, err)
}

// NewNotReadyError reports a recognition action requested before the model
// finished loading.
func NewNotReadyError(state string) *StandardError {
	return newError(ErrCodeNotReady, "recognizer state: "+state, nil)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, details, nil)
}

func NewSessionNotFoundError(id string) *StandardError {
	return newError(ErrCodeSessionNotFound, "session: "+id, nil)
}

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Notice is the user-visible message for a code.
func Notice(code ErrorCode) string {
	switch code {
	case ErrCodeNotFound:
		return "Invalid zip code"
	case ErrCodeNoResults:
		return "No facilities found"
	case ErrCodeTransport:
		return "The map service is unavailable, please try again"
	case ErrCodeLoadFailed:
		return "The voice model could not be loaded"
	case ErrCodeNotReady:
		return "The voice model is still loading"
	case ErrCodeInvalidInput:
		return "Invalid request"
	case ErrCodeSessionNotFound:
		return "Session not found"
	default:
		return "Unexpected error"
	}
}

// HTTPStatus maps a code onto the status returned by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound, ErrCodeNoResults:
		return http.StatusUnprocessableEntity
	case ErrCodeTransport:
		return http.StatusBadGateway
	case ErrCodeLoadFailed, ErrCodeNotReady:
		return http.StatusServiceUnavailable
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeSessionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
