package errors

import (
	"errors"
	"fmt"
)

// Common error types for categorization and handling

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid user input
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates a missing or invalid credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated account lacks the entitlement for an operation
	ErrForbidden = errors.New("forbidden")

	// ErrCollaboratorFailure indicates the document store or advice generator failed or timed out
	ErrCollaboratorFailure = errors.New("collaborator failure")

	// ErrServiceUnavailable indicates a collaborator is refusing calls, e.g. behind an open circuit breaker
	ErrServiceUnavailable = errors.New("service unavailable")
)

// WrapError wraps an error with context message and stack
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Collaborator marks err as a collaborator failure while keeping the
// underlying message and chain intact.
func Collaborator(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrCollaboratorFailure, name, err)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnauthorized checks if error is an unauthorized error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden checks if error is a forbidden error
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsCollaboratorFailure checks if error came from the document store or advice generator
func IsCollaboratorFailure(err error) bool {
	return errors.Is(err, ErrCollaboratorFailure)
}

// IsServiceUnavailable checks if error is a service unavailable error
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
