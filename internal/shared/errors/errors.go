package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying reminder delivery failures. The delivery
// worker uses these to decide between retrying, cancelling and giving up.
var (
	// ErrNotFound means the appointment or user no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrIneligible means the appointment may no longer receive reminders.
	ErrIneligible = errors.New("appointment not eligible for reminders")
	// ErrTransientDelivery means the send failed but may succeed on retry.
	ErrTransientDelivery = errors.New("transient delivery failure")
	// ErrTerminalDelivery means the send failed and retrying cannot help.
	ErrTerminalDelivery = errors.New("terminal delivery failure")
	// ErrConfiguration means provider credentials or settings are missing.
	ErrConfiguration = errors.New("provider configuration error")
)

// AppError represents an application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	if err == nil {
		err = ErrNotFound
	}
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Err:     err,
	}
}

// NewIneligibleError creates an error for appointments that fail the
// reminder eligibility gate
func NewIneligibleError(message string) *AppError {
	return &AppError{
		Code:    "INELIGIBLE",
		Message: message,
		Err:     ErrIneligible,
	}
}

// NewTransientDeliveryError wraps a sender failure that should be retried
func NewTransientDeliveryError(message string, err error) *AppError {
	if err == nil {
		err = ErrTransientDelivery
	} else {
		err = fmt.Errorf("%w: %w", ErrTransientDelivery, err)
	}
	return &AppError{
		Code:    "DELIVERY_FAILED",
		Message: message,
		Err:     err,
	}
}

// NewConfigurationError wraps a missing-credentials failure; never retried
func NewConfigurationError(message string) *AppError {
	return &AppError{
		Code:    "CONFIGURATION_ERROR",
		Message: message,
		Err:     ErrConfiguration,
	}
}

// IsRetryable reports whether an error represents a transient delivery
// failure. Configuration and not-found errors are never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrIneligible) {
		return false
	}
	return errors.Is(err, ErrTransientDelivery)
}
