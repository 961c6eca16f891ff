// Package errors provides structured error types for the slideforge application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the batch runner
//   - Machine-readable error codes for the retry state machine
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes map onto the render failure taxonomy:
//   - ROUTING_FAILED: no backend can serve a slide type (never retried)
//   - ADAPTER_TIMEOUT: a render exceeded its time budget (retried)
//   - ADAPTER_CRASH: the external renderer process died (retried after restart)
//   - VALIDATION_FAILED: the artifact failed size/dimension checks (retried)
//   - BATCH_CONFIG: malformed batch input or empty registry (fatal for the run)
//
// # Usage
//
//	err := errors.New(errors.ErrCodeBatchConfig, "no backends registered")
//	if errors.Is(err, errors.ErrCodeBatchConfig) {
//	    // Fatal configuration error, abort the run
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeAdapterCrash, origErr, "browser surface died")
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Render failure taxonomy
	ErrCodeRoutingFailed    Code = "ROUTING_FAILED"
	ErrCodeAdapterTimeout   Code = "ADAPTER_TIMEOUT"
	ErrCodeAdapterCrash     Code = "ADAPTER_CRASH"
	ErrCodeValidationFailed Code = "VALIDATION_FAILED"
	ErrCodeBatchConfig      Code = "BATCH_CONFIG"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidTemplate Code = "INVALID_TEMPLATE"
	ErrCodeInvalidRatio    Code = "INVALID_RATIO"
	ErrCodeInvalidSlide    Code = "INVALID_SLIDE"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Retryable reports whether an error belongs to the recoverable part of the
// taxonomy. Timeouts, crashes, and validation failures go back through the
// retry state machine; routing and configuration errors surface immediately.
func Retryable(err error) bool {
	switch GetCode(err) {
	case ErrCodeAdapterTimeout, ErrCodeAdapterCrash, ErrCodeValidationFailed:
		return true
	}
	return false
}

// RoutingError reports that no registered backend can serve a slide type.
// It carries the backends that were considered so the caller can log a
// useful diagnostic. Routing failures are configuration-level and never
// retried.
type RoutingError struct {
	SlideType string   // slide type that could not be routed
	Tried     []string // backend IDs considered, in decision order
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("no backend registered for slide type %q", e.SlideType)
	}
	return fmt.Sprintf("no backend can serve slide type %q (tried: %s)",
		e.SlideType, strings.Join(e.Tried, ", "))
}

// Code returns the error code for this error type.
func (e *RoutingError) Code() Code {
	return ErrCodeRoutingFailed
}
