package isolation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Warden/mediator/internal/channel"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/config"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

func testIsolationConfig() config.IsolationConfig {
	return config.IsolationConfig{
		CallTimeout:        time.Second,
		CallsPerSecond:     1000,
		CallBurst:          1000,
		RateLimitCooldown:  20 * time.Millisecond,
		MaxBytesPerSession: 1 << 20,
		MaxOpenHandles:     8,
	}
}

func newTestManager() *Manager {
	return NewManager(testIsolationConfig(), 8, logging.NewNop())
}

func activeSession(t *testing.T, m *Manager) *Session {
	t.Helper()
	s := m.Create("ext_test", types.NewGrantSet(nil))
	require.NoError(t, m.Activate(s.ID, &channel.SessionKeys{}))
	return s
}

func TestManagerLifecycle(t *testing.T) {
	m := newTestManager()
	s := m.Create("ext_test", types.NewGrantSet(nil))
	assert.Equal(t, types.StateHandshaking, s.State())

	require.NoError(t, m.Activate(s.ID, &channel.SessionKeys{}))
	assert.Equal(t, types.StateActive, s.State())
	assert.NotNil(t, s.Keys)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Len(t, m.List(), 1)
}

func TestActivateUnknownSession(t *testing.T) {
	m := newTestManager()
	err := m.Activate("sess_missing", &channel.SessionKeys{})
	assert.ErrorIs(t, err, types.ErrHandshakeFailed)
}

func TestContainIsOneWayAndIdempotent(t *testing.T) {
	m := newTestManager()
	s := activeSession(t, m)

	var hits int
	m.OnContain(func(string, float64) { hits++ })

	m.Contain(s.ID, 55)
	m.Contain(s.ID, 60)
	assert.Equal(t, types.StateContained, s.State())
	assert.Equal(t, 1, hits)

	// No route back to Active.
	assert.Error(t, s.transition(types.StateActive))
	assert.Error(t, s.transition(types.StateRateLimited))
}

func TestTerminateCancelsContextAndIsIdempotent(t *testing.T) {
	m := newTestManager()
	s := activeSession(t, m)

	var reasons []string
	m.OnTerminate(func(_, reason string) { reasons = append(reasons, reason) })

	m.Terminate(s.ID, "test")
	m.Terminate(s.ID, "again")

	assert.Equal(t, types.StateTerminated, s.State())
	assert.Equal(t, []string{"test"}, reasons)
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
	assert.True(t, s.State().Terminal())
}

func TestContainedSessionCanTerminate(t *testing.T) {
	m := newTestManager()
	s := activeSession(t, m)

	m.Contain(s.ID, 50)
	m.Terminate(s.ID, "operator")
	assert.Equal(t, types.StateTerminated, s.State())

	// Terminated sessions cannot be contained.
	m.Contain(s.ID, 99)
	assert.Equal(t, types.StateTerminated, s.State())
}

func TestRateLimitCooldownRestoresActive(t *testing.T) {
	m := newTestManager()
	s := activeSession(t, m)

	m.enterRateLimit(s, time.Now())
	assert.Equal(t, types.StateRateLimited, s.State())

	// Before the cooldown nothing changes.
	m.maybeExitRateLimit(s, time.Now())
	assert.Equal(t, types.StateRateLimited, s.State())

	m.maybeExitRateLimit(s, time.Now().Add(30*time.Millisecond))
	assert.Equal(t, types.StateActive, s.State())
}

func TestTerminateAll(t *testing.T) {
	m := newTestManager()
	a := activeSession(t, m)
	b := activeSession(t, m)

	m.TerminateAll("shutdown")
	assert.Equal(t, types.StateTerminated, a.State())
	assert.Equal(t, types.StateTerminated, b.State())
}

func TestSessionSendSeqMonotonic(t *testing.T) {
	m := newTestManager()
	s := activeSession(t, m)

	assert.Equal(t, uint64(1), s.NextSendSeq())
	assert.Equal(t, uint64(2), s.NextSendSeq())
	assert.Equal(t, uint64(3), s.NextSendSeq())
}

func TestRemoveDropsSession(t *testing.T) {
	m := newTestManager()
	s := activeSession(t, m)
	m.Terminate(s.ID, "done")
	m.Remove(s.ID)
	_, ok := m.Get(s.ID)
	assert.False(t, ok)
}
