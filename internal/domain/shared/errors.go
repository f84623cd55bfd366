// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Infrastructure errors
	ErrServiceUnavailable     = errors.New("service unavailable")
	ErrTimeout                = errors.New("operation timeout")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "participant", "social", "storage"
	Op      string // Operation that failed, e.g., "Create", "Update"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Participant domain errors
var (
	ErrParticipantNotFound  = NewDomainError("participant", "Find", ErrNotFound, "participant not found")
	ErrInvalidParticipant   = NewDomainError("participant", "Validate", ErrInvalidEntity, "invalid participant")
	ErrInvalidParticipantID = NewDomainError("participant", "Validate", ErrInvalidID, "invalid participant ID")
	ErrInvalidProgram       = NewDomainError("participant", "Validate", ErrInvalidInput, "unknown program")
	ErrProgramNotActive     = NewDomainError("participant", "CheckProgram", ErrInvalidState, "program is not active for participant")
	ErrSelfBlock            = NewDomainError("participant", "Block", ErrInvalidInput, "cannot block self")
)

// Social domain errors
var (
	ErrSelfInterest       = NewDomainError("social", "ToggleInterest", ErrInvalidInput, "cannot express interest in self")
	ErrDuplicateEdge      = NewDomainError("social", "UpsertEdge", ErrAlreadyExists, "interest edge already exists")
	ErrConnectionNotFound = NewDomainError("social", "FindConnection", ErrNotFound, "connection not found")
	ErrInvalidPairKey     = NewDomainError("social", "Validate", ErrInvalidInput, "invalid pair key")
)

// Storage errors
var (
	ErrStorageUnavailable = NewDomainError("storage", "Request", ErrServiceUnavailable, "storage is unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsStorageUnavailable checks if the error means the backing store could not serve the call.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
