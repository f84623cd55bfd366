// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// invalidQuery оборачивает ошибку проверки параметров запроса.
func invalidQuery(op string, err error) error {
	return shared.WrapError("query", op, shared.ErrValidation, err.Error(), err)
}

// storageError пропускает доменные ошибки и ошибки контекста без изменений,
// остальные ошибки хранилища приводит к shared.ErrStorageUnavailable.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if shared.IsNotFound(err) ||
		shared.IsValidation(err) ||
		errors.Is(err, shared.ErrInvalidState) ||
		errors.Is(err, shared.ErrStorageUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, shared.ErrStorageUnavailable, err)
}
