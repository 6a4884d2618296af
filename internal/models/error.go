package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors. Wrong identifier and wrong password share one
	// sentinel so callers cannot tell them apart.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrLockedOut           = errors.New("too many failed attempts")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenMalformed      = errors.New("token malformed")
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
	ErrValidation          = errors.New("validation failed")

	// ErrServiceUnavailable covers store and hasher infrastructure failures.
	// It must never be reported as ErrInvalidCredentials.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// LockedOutError is returned while a fingerprint is inside its lockout period.
type LockedOutError struct {
	RetryAfter time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("%s: retry after %ds", ErrLockedOut.Error(), e.RetryAfterSeconds())
}

// Is makes errors.Is(err, ErrLockedOut) match any *LockedOutError
func (e *LockedOutError) Is(target error) bool {
	return target == ErrLockedOut
}

// RetryAfterSeconds rounds the remaining lockout up to whole seconds, never below 1.
func (e *LockedOutError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
