package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNetwork      = errors.New("network unreachable")
	ErrServer       = errors.New("server error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrRequest      = errors.New("request failed")
)

// Kind is the closed failure taxonomy used to pick user-facing copy.
// It never decides retry eligibility.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindServer       Kind = "server"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindGeneric      Kind = "generic"
)

// KindForStatus maps an HTTP status to a Kind. Status 0 means no response was received.
func KindForStatus(status int) Kind {
	switch {
	case status == 0:
		return KindNetwork
	case status >= 500:
		return KindServer
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	default:
		return KindGeneric
	}
}

// AppError represents a structured failure of a backend call.
type AppError struct {
	Kind     Kind   `json:"kind"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status,omitempty"`
	Attempts int    `json:"-"`
	Err      error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Network creates an error for a request that never got a response.
func Network(err error) *AppError {
	return &AppError{
		Kind:    KindNetwork,
		Code:    "NETWORK_ERROR",
		Message: "network request failed",
		Err:     fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

// InvalidInput creates a validation error raised before any request is sent.
func InvalidInput(message string) *AppError {
	return &AppError{
		Kind:    KindGeneric,
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// FromResponse creates an error for a non-2xx response. An empty code is
// derived from the status.
func FromResponse(status int, code, message string) *AppError {
	if code == "" {
		code = codeForStatus(status)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &AppError{
		Kind:    KindForStatus(status),
		Code:    code,
		Message: message,
		Status:  status,
		Err:     sentinelForStatus(status),
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "INVALID_INPUT"
	case status == http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case status == http.StatusForbidden:
		return "FORBIDDEN"
	case status == http.StatusNotFound:
		return "NOT_FOUND"
	case status == http.StatusConflict:
		return "CONFLICT"
	case status == http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case status == http.StatusRequestTimeout:
		return "REQUEST_TIMEOUT"
	case status == http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case status >= 500:
		return "INTERNAL_ERROR"
	default:
		return "REQUEST_FAILED"
	}
}

func sentinelForStatus(status int) error {
	switch {
	case status >= 500:
		return ErrServer
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrInvalidInput
	case status == http.StatusConflict:
		return ErrConflict
	default:
		return ErrRequest
	}
}

// KindOf returns the Kind of err, or KindGeneric if it is not an AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, ErrNetwork) {
		return KindNetwork
	}
	return KindGeneric
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// CodeOf returns the machine-readable code carried by err, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}
