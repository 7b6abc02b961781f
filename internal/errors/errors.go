// Package errors defines the structured error type shared by the export launcher,
// the progress poller and the storage adapters.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an AppError.
type ErrorCode string

// Submission failures.
const (
	// ErrCodeServerMessage means the export server rejected a request and said why.
	ErrCodeServerMessage ErrorCode = "server_message"
	// ErrCodeFallback means the request failed without a usable server message.
	ErrCodeFallback ErrorCode = "fallback"
)

// Terminal poll failures.
const (
	ErrCodeBackendUnavailable ErrorCode = "backend_unavailable"
	ErrCodeGenericTerminal    ErrorCode = "generic_terminal"
	ErrCodeExplicitTerminal   ErrorCode = "explicit_terminal"
)

// Storage failures, produced by MapDBError and the Redis adapters.
const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"
)

// FallbackMessage is shown to users when no server-supplied message is available.
const FallbackMessage = "default"

// AppError carries a code, a user-facing message and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for validation and conflict errors.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// New returns an AppError with no cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// ServerMessage is a submission rejected with message from the server.
func ServerMessage(message string) *AppError { return New(ErrCodeServerMessage, message) }

// Fallback is a submission failure with no server message. cause is for logs only.
func Fallback(cause error) *AppError {
	return &AppError{Code: ErrCodeFallback, Message: FallbackMessage, Cause: cause}
}

// BackendUnavailable ends polling when the task never registered with the task backend.
func BackendUnavailable(message string) *AppError { return New(ErrCodeBackendUnavailable, message) }

// GenericTerminal ends polling after too many generic failures. An empty message
// becomes FallbackMessage.
func GenericTerminal(message string) *AppError {
	if message == "" {
		message = FallbackMessage
	}
	return New(ErrCodeGenericTerminal, message)
}

// ExplicitTerminal ends polling with the error the task reported itself.
func ExplicitTerminal(message string) *AppError { return New(ErrCodeExplicitTerminal, message) }

func NotFound(message string) *AppError { return New(ErrCodeNotFound, message) }

func NotFoundf(format string, args ...any) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

func Conflict(message string) *AppError { return New(ErrCodeConflict, message) }

func Validation(message string) *AppError { return New(ErrCodeValidation, message) }

// ValidationField is a validation error about one input field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

func Internal(message string) *AppError { return New(ErrCodeInternal, message) }

// GetCode returns the code of the first AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsServerMessage(err error) bool { return GetCode(err) == ErrCodeServerMessage }
func IsFallback(err error) bool      { return GetCode(err) == ErrCodeFallback }
func IsNotFound(err error) bool      { return GetCode(err) == ErrCodeNotFound }
func IsConflict(err error) bool      { return GetCode(err) == ErrCodeConflict }
func IsValidation(err error) bool    { return GetCode(err) == ErrCodeValidation }
func IsTimeout(err error) bool       { return GetCode(err) == ErrCodeTimeout }
func IsCanceled(err error) bool      { return GetCode(err) == ErrCodeCanceled }

// IsTerminal reports whether err ended a poll run.
func IsTerminal(err error) bool {
	switch GetCode(err) {
	case ErrCodeBackendUnavailable, ErrCodeGenericTerminal, ErrCodeExplicitTerminal:
		return true
	}
	return false
}

// UserMessage is the text to show an end user for err. Anything that is not an
// AppError collapses to FallbackMessage.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return FallbackMessage
}

// ServerText returns the message a remote server attached to err, found through
// any error in the chain that implements ServerMessage() string.
func ServerText(err error) string {
	var carrier interface{ ServerMessage() string }
	if errors.As(err, &carrier) {
		return carrier.ServerMessage()
	}
	return ""
}
