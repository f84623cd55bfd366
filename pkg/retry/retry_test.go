package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func fast(opts ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}, opts...)
}

func do(ctx context.Context, operation func(context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, operation)
}

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	err := do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	}, fast(WithMaxAttempts(5), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}))...)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errFlaky)
	}, fast(WithMaxAttempts(3))...)

	assert.ErrorIs(t, err, errFlaky)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetryPlainOrPermanentErrors(t *testing.T) {
	calls := 0
	err := do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	}, fast()...)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)

	calls = 0
	err = do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	}, fast(WithRetryIf(func(error) bool { return true }))...)
	assert.Equal(t, errFlaky, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIf(t *testing.T) {
	calls := 0
	r := New(fast(WithMaxAttempts(2), WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }))...)
	_, err := DoWithData(context.Background(), r, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
}

func TestDo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
