// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
	"github.com/Moeed-Tahir/perfect-connect/pkg/validation"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTIAL APPLY
// The edge write is the source of truth. When a follow-up connection write
// fails, the edge stays committed and reconciliation repairs the connection.
// ══════════════════════════════════════════════════════════════════════════════

// PartialApplyError reports a committed edge mutation whose connection write failed.
type PartialApplyError struct {
	// PairKey is the pair whose connection is out of date.
	PairKey social.PairKey

	// Op is the connection operation that failed ("upsert", "refresh" or "remove").
	Op string

	// Err wraps shared.ErrStorageUnavailable and the cause.
	Err error
}

// Error implements the error interface.
func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("edge committed, connection %s pending for %s: %v", e.Op, e.PairKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *PartialApplyError) Unwrap() error {
	return e.Err
}

// IsPartialApply reports whether err is a *PartialApplyError.
func IsPartialApply(err error) bool {
	var pa *PartialApplyError
	return errors.As(err, &pa)
}

func newPartialApplyError(key social.PairKey, op string, err error) *PartialApplyError {
	return &PartialApplyError{PairKey: key, Op: op, Err: asStorageError(err)}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// invalidCommand wraps validator output as a domain validation error.
func invalidCommand(op string, err error) error {
	return shared.WrapError("command", op, shared.ErrValidation, "invalid command", err)
}

// validateCommand runs struct tag validation.
func validateCommand(op string, cmd interface{}) error {
	if err := validation.Struct(cmd); err != nil {
		return invalidCommand(op, err)
	}
	return nil
}

// isDomainOutcome reports errors that describe the request rather than the store.
func isDomainOutcome(err error) bool {
	return shared.IsNotFound(err) ||
		shared.IsAlreadyExists(err) ||
		shared.IsValidation(err) ||
		errors.Is(err, shared.ErrInvalidState) ||
		errors.Is(err, shared.ErrInvalidEntity) ||
		errors.Is(err, shared.ErrInvalidFormat)
}

// asStorageError maps an unclassified store error to shared.ErrStorageUnavailable.
// Errors already classified, and context errors, are returned unchanged.
func asStorageError(err error) error {
	if err == nil ||
		errors.Is(err, shared.ErrStorageUnavailable) ||
		isDomainOutcome(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
}
