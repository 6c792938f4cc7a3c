package errors

import (
	stderrors "errors"
	"fmt"

	"oncodetect/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is maps the error code onto the domain sentinel so callers can use
// errors.Is(err, core.ErrTransport) without knowing about AppError.
func (e *AppError) Is(target error) bool {
	if sentinel, ok := codeSentinels[e.Code]; ok {
		return sentinel == target
	}
	return false
}

// UserMessage returns the text that may be shown to an end user. Causes are
// never included because they can carry raw upstream payloads.
func (e *AppError) UserMessage() string {
	return e.Message
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// As extracts the AppError from an error chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := As(err)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeRejected          = "REJECTED_BY_SERVICE"
	CodeTransport         = "TRANSPORT_ERROR"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeNotFound          = "NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
)

var codeSentinels = map[string]error{
	CodeValidationError:   core.ErrValidation,
	CodeRejected:          core.ErrRejected,
	CodeTransport:         core.ErrTransport,
	CodeContractViolation: core.ErrContractViolation,
	CodeNotFound:          core.ErrNotFound,
}

// User-facing fallback messages
const (
	MsgGenericFailure     = "An error occurred during analysis. Please try again."
	MsgTimeout            = "The analysis service did not respond in time. Please try again."
	MsgUnexpectedResponse = "Unexpected response from the analysis service."
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func Rejected(reason string) *AppError {
	return New(CodeRejected, reason)
}

// Transport builds a transport/service failure. An empty message falls back
// to the generic retry text.
func Transport(message string, cause error) *AppError {
	if message == "" {
		message = MsgGenericFailure
	}
	return &AppError{
		Code:    CodeTransport,
		Message: message,
		Cause:   cause,
	}
}

// ContractViolation always carries the generic user message; the cause holds
// the integration detail for logs.
func ContractViolation(cause error) *AppError {
	return &AppError{
		Code:    CodeContractViolation,
		Message: MsgUnexpectedResponse,
		Cause:   cause,
	}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
