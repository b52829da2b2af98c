package threat

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/config"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/id"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Escalator applies the engine's decisions to session lifecycle state.
// Implemented by the isolation manager; both methods must be idempotent.
type Escalator interface {
	Contain(sessionID string, score float64)
	Terminate(sessionID string, reason string)
}

// Engine is the per-session threat score accumulator.
//
// Within one session events arrive in pipeline order, so no ordering logic
// is needed here; the mutex only guards the cross-session read path used by
// the audit API.
type Engine struct {
	cfg       config.ThreatConfig
	escalator Escalator
	log       *logging.Logger
	clock     func() time.Time
	observer  func(kind types.EventKind)

	mu   sync.RWMutex
	logs map[string][]types.ThreatEvent
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock injects a deterministic clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithObserver registers a callback invoked for every recorded event, for
// metrics.
func WithObserver(fn func(kind types.EventKind)) Option {
	return func(e *Engine) { e.observer = fn }
}

// NewEngine creates a scoring engine.
func NewEngine(cfg config.ThreatConfig, escalator Escalator, log *logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		escalator: escalator,
		log:       log,
		clock:     time.Now,
		logs:      make(map[string][]types.ThreatEvent),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Record appends an event stamped with the engine clock and escalates if
// warranted. Satisfies gate.Recorder.
func (e *Engine) Record(sessionID string, kind types.EventKind, detail string) {
	e.RecordAt(sessionID, kind, detail, e.clock())
}

// RecordAt appends an event at an explicit instant. The score is recomputed
// from the full log at that instant before any escalation decision.
func (e *Engine) RecordAt(sessionID string, kind types.EventKind, detail string, at time.Time) {
	ev := types.ThreatEvent{
		ID:        id.NewEventID().String(),
		SessionID: sessionID,
		Kind:      kind,
		Detail:    detail,
		Timestamp: at,
	}

	e.mu.Lock()
	e.logs[sessionID] = append(e.logs[sessionID], ev)
	events := e.logs[sessionID]
	score := ScoreAt(events, e.cfg.DecayHalfLife, at)
	e.mu.Unlock()

	e.log.Info("threat event",
		zap.String("session_id", sessionID),
		zap.String("kind", string(kind)),
		zap.String("detail", detail),
		zap.Float64("score", score),
	)
	if e.observer != nil {
		e.observer(kind)
	}

	// Some behaviors are not safe to deceive against.
	if kind == types.EventProcessScanning {
		e.escalator.Terminate(sessionID, string(kind))
		return
	}
	if score >= e.cfg.ContainThreshold {
		e.escalator.Contain(sessionID, score)
	}
}

// Score returns the session's decayed score at the given instant.
func (e *Engine) Score(sessionID string, at time.Time) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ScoreAt(e.logs[sessionID], e.cfg.DecayHalfLife, at)
}

// Events returns a copy of the session's event log.
func (e *Engine) Events(sessionID string) []types.ThreatEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	events := e.logs[sessionID]
	out := make([]types.ThreatEvent, len(events))
	copy(out, events)
	return out
}

// Scores returns every session's current score, for aggregate reporting.
// Goes through the shared read path; never blocks a session's pipeline.
func (e *Engine) Scores(at time.Time) map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.logs))
	for sid, events := range e.logs {
		out[sid] = ScoreAt(events, e.cfg.DecayHalfLife, at)
	}
	return out
}

// Forget drops a session's log once the session is gone and audited.
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.logs, sessionID)
}
