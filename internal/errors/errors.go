// Package errors consolidates error definitions for skillvault.
//
// This package provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Storage errors
	ErrStorage  = errors.New("storage error")
	ErrDatabase = errors.New("database error")

	// Decode errors
	ErrDecode = errors.New("stored payload malformed")

	// Not found. Used internally only: public reads convert this to an
	// empty result, since "no data yet" is a normal state.
	ErrNotFound = errors.New("not found")

	// Validation errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrInvalidMetric      = errors.New("invalid metric")
	ErrInvalidTier        = errors.New("invalid tier")
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidEntityID    = errors.New("invalid entity id")
	ErrInvalidDisplayName = errors.New("invalid display name")

	// State errors
	ErrClosed         = errors.New("store is closed")
	ErrAlreadyRunning = errors.New("already running")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorage returns true if err is a storage-level failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage) || errors.Is(err, ErrDatabase)
}

// IsDecode returns true if err indicates a malformed stored payload.
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidMetric) ||
		errors.Is(err, ErrInvalidTier) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidEntityID) ||
		errors.Is(err, ErrInvalidDisplayName)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewStorage creates a storage error with operation context.
func NewStorage(op string, cause error) error {
	return fmt.Errorf("%s: %v: %w", op, cause, ErrStorage)
}

// NewDecode creates a decode error with payload context.
func NewDecode(what string, cause error) error {
	return fmt.Errorf("%s: %v: %w", what, cause, ErrDecode)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}
