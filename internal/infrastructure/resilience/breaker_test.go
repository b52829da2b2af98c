package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(b *Breaker) error {
	_, err := b.Execute(func() (interface{}, error) { return nil, errBoom })
	return err
}

func succeed(b *Breaker) error {
	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	return err
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := New("test", Settings{})
	for i := 0; i < 10; i++ {
		require.NoError(t, succeed(b))
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(10), b.Counts().TotalSuccesses)
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
	})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, fail(b), errBoom)
	}
	assert.Equal(t, StateOpen, b.State())

	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
	})

	require.Error(t, fail(b))
	require.Error(t, fail(b))
	require.NoError(t, succeed(b))
	require.Error(t, fail(b))
	require.Error(t, fail(b))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New("test", Settings{
		MaxRequests: 2,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	require.Error(t, fail(b))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, succeed(b))
	require.NoError(t, succeed(b))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Settings{
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	require.Error(t, fail(b))
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.Error(t, fail(b))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	assert.Panics(t, func() {
		_, _ = b.Execute(func() (interface{}, error) { panic("bad") })
	})
	assert.Equal(t, StateOpen, b.State())
}
