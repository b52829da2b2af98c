package isolation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/Warden/mediator/internal/channel"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Session is one loaded extension instance. All mutable session state lives
// here, owned by the Manager; pipeline processing for a session is serial,
// the mutex exists for the cross-session audit read path and lifecycle
// transitions driven by the scoring engine.
type Session struct {
	ID          string
	ExtensionID string
	Grants      types.GrantSet
	CreatedAt   time.Time

	// Negotiated channel state. Keys is set exactly once, when the
	// handshake completes and the session activates.
	Keys    *channel.SessionKeys
	guard   *channel.ReplayGuard
	sendSeq uint64

	limiter *rate.Limiter
	acct    accounting

	ctx    context.Context
	cancel context.CancelFunc

	mu               sync.Mutex
	state            types.LifecycleState
	rateLimitedUntil time.Time
	containedAt      *time.Time
}

// State returns the current lifecycle state.
func (s *Session) State() types.LifecycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Context is cancelled when the session terminates; every privileged
// operation for the session derives from it.
func (s *Session) Context() context.Context { return s.ctx }

// transition moves the state machine, enforcing legality.
func (s *Session) transition(next types.LifecycleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(next) {
		return fmt.Errorf("illegal transition %s → %s", s.state, next)
	}
	s.state = next
	return nil
}

// CheckSeq runs the inbound replay/order check for one envelope without
// consuming the sequence.
func (s *Session) CheckSeq(seq uint64) error {
	return s.guard.Check(seq)
}

// CommitSeq records an authenticated inbound sequence as accepted.
func (s *Session) CommitSeq(seq uint64) {
	s.guard.Commit(seq)
}

// NextSendSeq returns the next outbound sequence number. Outbound sequences
// are strictly increasing for the life of the session.
func (s *Session) NextSendSeq() uint64 {
	s.sendSeq++
	return s.sendSeq
}

// LastAccepted reports the inbound high-water mark, for audit.
func (s *Session) LastAccepted() uint64 { return s.guard.Last() }

// Usage returns a copy of the session's resource accounting.
func (s *Session) Usage() UsageSnapshot {
	return s.acct.snapshot()
}

// accounting tracks per-session resource counters. Pipeline access is
// serial; the inner mutex covers audit reads.
type accounting struct {
	mu       sync.Mutex
	calls    uint64
	bytes    int64
	handles  int
	timeouts uint64
	// byteEvents counts how many times the byte budget has been crossed,
	// so each crossing fires exactly one threat event.
	byteEvents int64
}

// UsageSnapshot is the audit view of a session's accounting.
type UsageSnapshot struct {
	Calls    uint64 `json:"calls"`
	Bytes    int64  `json:"bytes"`
	Handles  int    `json:"open_handles"`
	Timeouts uint64 `json:"timeouts"`
}

func (a *accounting) recordCall() {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
}

// recordBytes adds transferred bytes and reports whether this addition
// crossed the given budget boundary for the first time.
func (a *accounting) recordBytes(n, budget int64) bool {
	if n <= 0 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bytes += n
	if budget > 0 && a.bytes/budget > a.byteEvents {
		a.byteEvents = a.bytes / budget
		return true
	}
	return false
}

func (a *accounting) recordTimeout() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeouts++
	return a.timeouts
}

func (a *accounting) adjustHandles(delta int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handles += delta
	if a.handles < 0 {
		a.handles = 0
	}
	return a.handles
}

func (a *accounting) releaseHandles() {
	a.mu.Lock()
	a.handles = 0
	a.mu.Unlock()
}

func (a *accounting) snapshot() UsageSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return UsageSnapshot{Calls: a.calls, Bytes: a.bytes, Handles: a.handles, Timeouts: a.timeouts}
}
