// Package guarded wraps storage repositories with a circuit breaker.
//
// Every store call runs through the breaker. Driver failures and breaker
// rejections surface as shared.ErrStorageUnavailable; domain outcomes such as
// "not found" pass through untouched and never trip the breaker.
package guarded

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/pkg/circuitbreaker"
	"github.com/Moeed-Tahir/perfect-connect/pkg/metrics"
)

// GuardParams configures a Guard.
type GuardParams struct {
	// Name identifies the breaker in logs and metrics, e.g. "postgres".
	Name             string
	FailureThreshold int
	Timeout          time.Duration
	Logger           zerolog.Logger
	Metrics          *metrics.Manager
}

// Guard runs store calls through one circuit breaker.
type Guard struct {
	breaker *circuitbreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewGuard creates a guard.
func NewGuard(params GuardParams) *Guard {
	if params.FailureThreshold <= 0 {
		params.FailureThreshold = 5
	}
	if params.Timeout <= 0 {
		params.Timeout = 30 * time.Second
	}
	logger := params.Logger.With().Str("component", "storage_guard").Str("breaker", params.Name).Logger()

	onStateChange := func(name string, from, to circuitbreaker.State) {
		logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("storage breaker state changed")
		params.Metrics.RecordBreakerTransition(name, to.String())
	}

	return &Guard{
		breaker: circuitbreaker.StorageBreaker(params.Name, params.FailureThreshold, params.Timeout, isStorageFailure, onStateChange),
		logger:  logger,
	}
}

// Breaker returns the underlying breaker.
func (g *Guard) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}

// isDomainOutcome reports errors that describe the request, not the store.
func isDomainOutcome(err error) bool {
	return shared.IsNotFound(err) ||
		shared.IsAlreadyExists(err) ||
		shared.IsValidation(err) ||
		errors.Is(err, shared.ErrInvalidState) ||
		errors.Is(err, shared.ErrInvalidEntity) ||
		errors.Is(err, shared.ErrInvalidFormat)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isStorageFailure(err error) bool {
	return err != nil && !isDomainOutcome(err) && !isContextError(err)
}

// call runs fn through the breaker and classifies its error.
func call[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := circuitbreaker.Call(ctx, g.breaker, fn)
	if err == nil || isDomainOutcome(err) || isContextError(err) {
		return v, err
	}

	if !circuitbreaker.IsRejected(err) {
		g.logger.Error().Err(err).Str("op", op).Msg("storage call failed")
	}
	var zero T
	return zero, fmt.Errorf("%s: %w: %w", op, shared.ErrStorageUnavailable, err)
}

// exec is call for operations without a result.
func exec(ctx context.Context, g *Guard, op string, fn func(context.Context) error) error {
	_, err := call(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
