package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
)

var errBackend = errors.New("backend down")

func TestCircuitBreakerTransitions(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Second,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})
	clock := time.Unix(1000, 0)
	cb.now = func() time.Time { return clock }

	fail := func() error { return errBackend }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock = clock.Add(time.Second)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.GetState())

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreakerHalfOpenProbeFailure(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	clock := time.Unix(0, 0)
	cb.now = func() time.Time { return clock }

	_ = cb.Execute(func() error { return errBackend })
	clock = clock.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errBackend })
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	miss := errors.New("miss")
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return err != nil && !errors.Is(err, miss) },
	})
	for range 5 {
		assert.ErrorIs(t, cb.Execute(func() error { return miss }), miss)
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestRetry(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), "op", fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return errBackend
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), "op", fast, func(context.Context) error {
			calls++
			return errBackend
		})
		assert.ErrorIs(t, err, errBackend)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		cfg := fast
		cfg.Retryable = func(err error) bool { return !errors.Is(err, apperrors.ErrInvalidInput) }
		calls := 0
		err := Retry(context.Background(), "op", cfg, func(context.Context) error {
			calls++
			return apperrors.ErrInvalidInput
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
		err := Retry(ctx, "op", cfg, func(context.Context) error {
			cancel()
			return errBackend
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)

	err = WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return nil })
	assert.NoError(t, err)

	err = WithTimeout(context.Background(), 0, "unbounded", func(context.Context) error { return errBackend })
	assert.ErrorIs(t, err, errBackend)
}
