package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrSessionNotFound  = fmt.Errorf("%w: session", ErrNotFound)
	ErrPreviewNotFound  = fmt.Errorf("%w: preview", ErrNotFound)
	ErrUnknownPage      = fmt.Errorf("%w: page", ErrNotFound)
	ErrUnknownVariant   = fmt.Errorf("%w: form variant", ErrNotFound)
	ErrAttemptInFlight  = errors.New("an analysis is already in progress")
	ErrPreviewReleased  = errors.New("preview already released")
	ErrPreviewCapacity  = errors.New("preview capacity exhausted")
	ErrNoImageAvailable = errors.New("no image selected")

	// Outcome kinds. Every failure reaching the request machine wraps exactly
	// one of these.
	ErrValidation        = errors.New("validation failed")
	ErrRejected          = errors.New("input rejected by analysis service")
	ErrTransport         = errors.New("analysis service unavailable")
	ErrContractViolation = errors.New("unexpected response from analysis service")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewContractError(field string) error {
	return fmt.Errorf("%w: missing required field %q", ErrContractViolation, field)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}

func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContractViolation)
}
