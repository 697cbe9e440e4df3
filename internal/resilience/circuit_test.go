package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
	})
	clock := time.Now()
	cb.now = func() time.Time { return clock }
	return cb, &clock
}

func failTransient(context.Context) error {
	return NewTransientError(errors.New("vendor down"), 503)
}

func succeed(context.Context) error { return nil }

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		require.Error(t, cb.Execute(context.Background(), failTransient))
		assert.Equal(t, CircuitClosed, cb.State())
	}
	require.Error(t, cb.Execute(context.Background(), failTransient))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestBreakerFailsFastWhileOpen(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	require.Error(t, cb.Execute(context.Background(), failTransient))

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	require.Error(t, cb.Execute(context.Background(), failTransient))
	require.NoError(t, cb.Execute(context.Background(), succeed))
	require.Error(t, cb.Execute(context.Background(), failTransient))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreakerIgnoresPermanentErrors(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(context.Background(), func(context.Context) error {
			return errors.New("bad token")
		}))
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreakerHalfOpenTrialCloses(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	require.Error(t, cb.Execute(context.Background(), failTransient))
	require.Equal(t, CircuitOpen, cb.State())

	*clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreakerHalfOpenTrialFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	require.Error(t, cb.Execute(context.Background(), failTransient))

	*clock = clock.Add(2 * time.Minute)
	require.Error(t, cb.Execute(context.Background(), failTransient))
	assert.Equal(t, CircuitOpen, cb.State())

	// The failed trial restarts the reset timer.
	require.ErrorIs(t, cb.Execute(context.Background(), succeed), ErrCircuitOpen)
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
}
