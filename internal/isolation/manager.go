package isolation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/Warden/mediator/internal/channel"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/config"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/id"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Manager owns every ExtensionSession. It implements the scoring engine's
// Escalator: containment and termination land here and nowhere else.
type Manager struct {
	cfg           config.IsolationConfig
	reorderWindow uint64
	log           *logging.Logger

	sessions sync.Map // session ID -> *Session

	// Hooks let the wiring layer observe lifecycle decisions (metrics,
	// honeypot notification) without the manager importing either.
	hookMu      sync.RWMutex
	onContain   func(sessionID string, score float64)
	onTerminate func(sessionID string, reason string)
}

// NewManager creates the session owner.
func NewManager(cfg config.IsolationConfig, reorderWindow uint64, log *logging.Logger) *Manager {
	return &Manager{cfg: cfg, reorderWindow: reorderWindow, log: log}
}

// OnContain registers the containment observer. Wiring-time only.
func (m *Manager) OnContain(fn func(sessionID string, score float64)) {
	m.hookMu.Lock()
	m.onContain = fn
	m.hookMu.Unlock()
}

// OnTerminate registers the termination observer. Wiring-time only.
func (m *Manager) OnTerminate(fn func(sessionID string, reason string)) {
	m.hookMu.Lock()
	m.onTerminate = fn
	m.hookMu.Unlock()
}

// Create registers a new session in Handshaking state with its immutable
// grant set.
func (m *Manager) Create(extensionID string, grants types.GrantSet) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          id.NewSessionID().String(),
		ExtensionID: extensionID,
		Grants:      grants,
		CreatedAt:   time.Now(),
		guard:       channel.NewReplayGuard(m.reorderWindow),
		limiter:     rate.NewLimiter(rate.Limit(m.cfg.CallsPerSecond), m.cfg.CallBurst),
		ctx:         ctx,
		cancel:      cancel,
		state:       types.StateHandshaking,
	}
	m.sessions.Store(s.ID, s)
	m.log.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("extension_id", extensionID),
		zap.Int("grants", grants.Len()),
	)
	return s
}

// Activate installs the negotiated keys and moves Handshaking → Active.
func (m *Manager) Activate(sessionID string, keys *channel.SessionKeys) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: unknown session %s", types.ErrHandshakeFailed, sessionID)
	}
	if err := s.transition(types.StateActive); err != nil {
		return fmt.Errorf("%w: %v", types.ErrHandshakeFailed, err)
	}
	s.Keys = keys
	m.log.Info("session active", zap.String("session_id", sessionID))
	return nil
}

// Get looks up a session by ID.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	v, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// List returns all live sessions.
func (m *Manager) List() []*Session {
	var out []*Session
	m.sessions.Range(func(_, v interface{}) bool {
		out = append(out, v.(*Session))
		return true
	})
	return out
}

// Contain moves a session into the deception environment. Idempotent.
// The session's real resource handles are released at this moment; the
// extension is never told anything changed.
func (m *Manager) Contain(sessionID string, score float64) {
	s, ok := m.Get(sessionID)
	if !ok {
		return
	}
	if err := s.transition(types.StateContained); err != nil {
		// Already contained or terminated.
		return
	}
	now := time.Now()
	s.mu.Lock()
	s.containedAt = &now
	s.mu.Unlock()
	s.acct.releaseHandles()

	m.log.Warn("session contained",
		zap.String("session_id", sessionID),
		zap.Float64("score", score),
	)

	m.hookMu.RLock()
	fn := m.onContain
	m.hookMu.RUnlock()
	if fn != nil {
		fn(sessionID, score)
	}
}

// Terminate ends a session, cancelling in-flight privileged work and
// releasing its accounting. Idempotent.
func (m *Manager) Terminate(sessionID string, reason string) {
	s, ok := m.Get(sessionID)
	if !ok {
		return
	}
	if err := s.transition(types.StateTerminated); err != nil {
		return
	}
	s.cancel()
	s.acct.releaseHandles()
	m.log.Warn("session terminated",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
	)

	m.hookMu.RLock()
	fn := m.onTerminate
	m.hookMu.RUnlock()
	if fn != nil {
		fn(sessionID, reason)
	}
}

// Remove drops a terminated session from the registry.
func (m *Manager) Remove(sessionID string) {
	m.sessions.Delete(sessionID)
}

// TerminateAll ends every session, for shutdown.
func (m *Manager) TerminateAll(reason string) {
	m.sessions.Range(func(_, v interface{}) bool {
		m.Terminate(v.(*Session).ID, reason)
		return true
	})
}

// maybeExitRateLimit returns the session to Active once the cooldown has
// passed. Called on the session's own pipeline, so transitions stay serial.
func (m *Manager) maybeExitRateLimit(s *Session, now time.Time) {
	s.mu.Lock()
	expired := s.state == types.StateRateLimited && now.After(s.rateLimitedUntil)
	s.mu.Unlock()
	if expired {
		if err := s.transition(types.StateActive); err == nil {
			m.log.Info("session rate limit lifted", zap.String("session_id", s.ID))
		}
	}
}

// enterRateLimit applies the soft cooldown state.
func (m *Manager) enterRateLimit(s *Session, now time.Time) {
	if err := s.transition(types.StateRateLimited); err != nil {
		return
	}
	s.mu.Lock()
	s.rateLimitedUntil = now.Add(m.cfg.RateLimitCooldown)
	s.mu.Unlock()
	m.log.Info("session rate limited",
		zap.String("session_id", s.ID),
		zap.Duration("cooldown", m.cfg.RateLimitCooldown),
	)
}
