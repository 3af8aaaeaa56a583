package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an Objective error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION" // 400
	ErrNotFound   ErrorCode = "NOT_FOUND"  // 404
	ErrBusy       ErrorCode = "BUSY"       // 409
	ErrPaused     ErrorCode = "PAUSED"     // 409
	ErrConfig     ErrorCode = "CONFIG"     // 412
	ErrStorage    ErrorCode = "STORAGE"    // 500
	ErrInternal   ErrorCode = "INTERNAL"   // 500
	ErrProvider   ErrorCode = "PROVIDER"   // 502
	ErrProtocol   ErrorCode = "PROTOCOL"   // 502
	ErrTimeout    ErrorCode = "TIMEOUT"    // 504
)

// Error represents a structured error with code, status, and details.
// Cause is the underlying error, if any, and is reachable through Unwrap.
type Error struct {
	Code      ErrorCode
	Status    int
	Message   string
	Retryable bool
	Details   map[string]any
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewValidation creates a 400 error for input rejected before any model call.
func NewValidation(msg string) *Error {
	return &Error{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown resource.
func NewNotFound(kind, identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewBusy creates a 409 error for a request that overlaps a pending one.
func NewBusy(msg string) *Error {
	return &Error{
		Code:    ErrBusy,
		Status:  409,
		Message: msg,
	}
}

// NewPaused creates a 409 error for a judgement requested while paused.
func NewPaused(until string) *Error {
	return &Error{
		Code:    ErrPaused,
		Status:  409,
		Message: fmt.Sprintf("judgements are paused until %s", until),
		Details: map[string]any{"until": until},
	}
}

// NewConfig creates a 412 error for missing user-actionable settings
// (API key, local model name). Not retryable.
func NewConfig(msg string) *Error {
	return &Error{
		Code:    ErrConfig,
		Status:  412,
		Message: msg,
	}
}

// NewStorage creates a 500 error for a persistence failure.
func NewStorage(op string, err error) *Error {
	return &Error{
		Code:    ErrStorage,
		Status:  500,
		Message: op + " failed",
		Cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewProvider creates a 502 error for a transport failure reaching a model
// provider. Safe to retry with backoff.
func NewProvider(provider string, err error) *Error {
	return &Error{
		Code:      ErrProvider,
		Status:    502,
		Message:   fmt.Sprintf("%s request failed", provider),
		Retryable: true,
		Details:   map[string]any{"provider": provider},
		Cause:     err,
	}
}

// NewProviderStatus creates a 502 error for a non-2xx provider response.
func NewProviderStatus(provider string, status int, body string) *Error {
	return &Error{
		Code:      ErrProvider,
		Status:    502,
		Message:   fmt.Sprintf("%s returned status %d: %s", provider, status, body),
		Retryable: status == 429 || status >= 500,
		Details:   map[string]any{"provider": provider, "status": status},
	}
}

// NewProtocol creates a 502 error for a provider response of unexpected shape.
func NewProtocol(provider, msg string) *Error {
	return &Error{
		Code:    ErrProtocol,
		Status:  502,
		Message: fmt.Sprintf("unexpected %s response: %s", provider, msg),
		Details: map[string]any{"provider": provider},
	}
}

// NewTimeout creates a 504 error for a provider call that exceeded its deadline.
func NewTimeout(provider string, err error) *Error {
	return &Error{
		Code:      ErrTimeout,
		Status:    504,
		Message:   fmt.Sprintf("%s request timed out", provider),
		Retryable: true,
		Details:   map[string]any{"provider": provider},
		Cause:     err,
	}
}

// Wrap annotates err with the operation that was running and extra details.
// Structured errors keep their code, status and retryability; anything else
// becomes INTERNAL. The original error stays reachable through Unwrap.
func Wrap(err error, op string, details map[string]any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !stderrors.As(err, &e) {
		return &Error{
			Code:    ErrInternal,
			Status:  500,
			Message: op,
			Details: details,
			Cause:   err,
		}
	}

	merged := make(map[string]any, len(e.Details)+len(details)+1)
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	merged["op"] = op

	return &Error{
		Code:      e.Code,
		Status:    e.Status,
		Message:   op + ": " + e.Message,
		Retryable: e.Retryable,
		Details:   merged,
		Cause:     e.Cause,
	}
}

// Is checks if err (or anything it wraps) is an Error with the given code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of a structured error, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// IsRetryable reports whether err is marked safe to retry.
func IsRetryable(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// As is a re-export of the standard library's errors.As so callers that
// import this package do not need both.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
