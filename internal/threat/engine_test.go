package threat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/config"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

type fakeEscalator struct {
	mu         sync.Mutex
	contained  map[string]float64
	terminated map[string]string
}

func newFakeEscalator() *fakeEscalator {
	return &fakeEscalator{
		contained:  make(map[string]float64),
		terminated: make(map[string]string),
	}
}

func (f *fakeEscalator) Contain(sessionID string, score float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contained[sessionID] = score
}

func (f *fakeEscalator) Terminate(sessionID string, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated[sessionID] = reason
}

func testConfig() config.ThreatConfig {
	return config.ThreatConfig{ContainThreshold: 50, DecayHalfLife: 5 * time.Minute}
}

func newTestEngine(esc Escalator, at time.Time) *Engine {
	return NewEngine(testConfig(), esc, logging.NewNop(),
		WithClock(func() time.Time { return at }))
}

func TestScoreAtIsPureAndOrdered(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []types.ThreatEvent{
		{Kind: types.EventUnauthorizedFile, Timestamp: base},
		{Kind: types.EventCredentialHarvesting, Timestamp: base.Add(time.Minute)},
	}

	at := base.Add(2 * time.Minute)
	first := ScoreAt(events, 5*time.Minute, at)
	second := ScoreAt(events, 5*time.Minute, at)
	assert.Equal(t, first, second)

	// Full weights at zero age.
	assert.InDelta(t, 40.0, ScoreAt(events, 5*time.Minute, base.Add(time.Minute)),
		40*0.25)
}

func TestScoreDecaysByHalfLife(t *testing.T) {
	base := time.Now()
	events := []types.ThreatEvent{{Kind: types.EventCredentialHarvesting, Timestamp: base}}

	assert.InDelta(t, 25.0, ScoreAt(events, 5*time.Minute, base), 1e-9)
	assert.InDelta(t, 12.5, ScoreAt(events, 5*time.Minute, base.Add(5*time.Minute)), 1e-9)
	assert.InDelta(t, 6.25, ScoreAt(events, 5*time.Minute, base.Add(10*time.Minute)), 1e-9)
}

func TestScoreNeverNegative(t *testing.T) {
	base := time.Now()
	events := []types.ThreatEvent{{Kind: types.EventExcessiveNetwork, Timestamp: base}}
	assert.GreaterOrEqual(t, ScoreAt(events, 5*time.Minute, base.Add(48*time.Hour)), 0.0)
}

func TestEngineContainsAtThreshold(t *testing.T) {
	now := time.Now()
	esc := newFakeEscalator()
	e := newTestEngine(esc, now)

	// Three 15-point events: 45, below threshold.
	e.RecordAt("sess_1", types.EventUnauthorizedFile, "read outside grant", now)
	e.RecordAt("sess_1", types.EventUnauthorizedFile, "read outside grant", now)
	e.RecordAt("sess_1", types.EventUnauthorizedFile, "read outside grant", now)
	assert.Empty(t, esc.contained)

	// 45 + 10 = 55, crosses 50.
	e.RecordAt("sess_1", types.EventBlockedCall, "denied", now)
	require.Contains(t, esc.contained, "sess_1")
	assert.GreaterOrEqual(t, esc.contained["sess_1"], 50.0)
	assert.Empty(t, esc.terminated)
}

func TestEngineContainsAtExactThreshold(t *testing.T) {
	now := time.Now()
	esc := newFakeEscalator()
	e := newTestEngine(esc, now)

	// 25 + 10 + 15 = exactly 50.
	e.RecordAt("sess_1", types.EventCredentialHarvesting, "token sweep", now)
	e.RecordAt("sess_1", types.EventBlockedCall, "denied", now)
	assert.Empty(t, esc.contained)
	e.RecordAt("sess_1", types.EventUnauthorizedFile, "read outside grant", now)
	assert.Contains(t, esc.contained, "sess_1")
}

func TestEngineDecayKeepsSessionBelowThreshold(t *testing.T) {
	now := time.Now()
	esc := newFakeEscalator()
	e := newTestEngine(esc, now)

	// Two 25-point events one half-life apart: 12.5 + 25 = 37.5.
	e.RecordAt("sess_1", types.EventCredentialHarvesting, "token sweep", now)
	e.RecordAt("sess_1", types.EventCredentialHarvesting, "token sweep", now.Add(5*time.Minute))

	assert.Empty(t, esc.contained)
	assert.InDelta(t, 37.5, e.Score("sess_1", now.Add(5*time.Minute)), 1e-9)
}

func TestEngineTerminatesOnProcessScanning(t *testing.T) {
	now := time.Now()
	esc := newFakeEscalator()
	e := newTestEngine(esc, now)

	// Score is irrelevant: scanning is fatal from zero.
	e.RecordAt("sess_1", types.EventProcessScanning, "memory probe burst", now)

	assert.Equal(t, string(types.EventProcessScanning), esc.terminated["sess_1"])
	assert.Empty(t, esc.contained)
}

func TestEngineSessionsScoreIndependently(t *testing.T) {
	now := time.Now()
	esc := newFakeEscalator()
	e := newTestEngine(esc, now)

	for i := 0; i < 5; i++ {
		e.RecordAt("sess_loud", types.EventUnauthorizedFile, "x", now)
	}
	e.RecordAt("sess_quiet", types.EventBlockedCall, "y", now)

	assert.Contains(t, esc.contained, "sess_loud")
	assert.NotContains(t, esc.contained, "sess_quiet")
	assert.InDelta(t, 10.0, e.Score("sess_quiet", now), 1e-9)
}

func TestEngineEventsAreAppendOnlyCopies(t *testing.T) {
	now := time.Now()
	e := newTestEngine(newFakeEscalator(), now)

	e.RecordAt("sess_1", types.EventBlockedCall, "denied", now)
	events := e.Events("sess_1")
	require.Len(t, events, 1)

	events[0].Detail = "mutated"
	assert.Equal(t, "denied", e.Events("sess_1")[0].Detail)
}

func TestEngineScoresSnapshot(t *testing.T) {
	now := time.Now()
	e := newTestEngine(newFakeEscalator(), now)

	e.RecordAt("sess_a", types.EventBlockedCall, "x", now)
	e.RecordAt("sess_b", types.EventUnauthorizedFile, "y", now)

	scores := e.Scores(now)
	assert.InDelta(t, 10.0, scores["sess_a"], 1e-9)
	assert.InDelta(t, 15.0, scores["sess_b"], 1e-9)
}

func TestEngineForget(t *testing.T) {
	now := time.Now()
	e := newTestEngine(newFakeEscalator(), now)

	e.RecordAt("sess_1", types.EventBlockedCall, "x", now)
	e.Forget("sess_1")

	assert.Empty(t, e.Events("sess_1"))
	assert.Zero(t, e.Score("sess_1", now))
}

func TestReplayOfEventLogReproducesScore(t *testing.T) {
	now := time.Now()
	e := newTestEngine(newFakeEscalator(), now)

	times := []time.Duration{0, time.Minute, 3 * time.Minute}
	for _, d := range times {
		e.RecordAt("sess_1", types.EventUnauthorizedFile, "x", now.Add(d))
	}

	at := now.Add(4 * time.Minute)
	replayed := ScoreAt(e.Events("sess_1"), testConfig().DecayHalfLife, at)
	assert.Equal(t, e.Score("sess_1", at), replayed)
}
