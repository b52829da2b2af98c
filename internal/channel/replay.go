package channel

import (
	"fmt"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// ReplayGuard tracks the highest accepted sequence number for one direction
// of one session. Sequences start at 1; zero is never valid.
//
// A sequence at or below the high-water mark is a replay. A sequence more
// than Window positions ahead is rejected rather than buffered: the channel
// trades throughput for a simple, auditable ordering guarantee. Gaps within
// the window are tolerated (the mark advances past them) but frames are
// never reordered.
type ReplayGuard struct {
	last   uint64
	window uint64
}

// NewReplayGuard creates a guard with the given reorder window.
func NewReplayGuard(window uint64) *ReplayGuard {
	if window == 0 {
		window = 1
	}
	return &ReplayGuard{window: window}
}

// Check validates a sequence number without advancing the mark. The mark
// tracks accepted envelopes only, so callers commit after authentication:
// a forged frame must not consume a sequence number.
func (g *ReplayGuard) Check(seq uint64) error {
	if seq == 0 || seq <= g.last {
		return fmt.Errorf("%w: sequence %d, last accepted %d", types.ErrReplayDetected, seq, g.last)
	}
	if seq > g.last+g.window {
		return fmt.Errorf("%w: sequence %d jumps past window %d from %d", types.ErrReorder, seq, g.window, g.last)
	}
	return nil
}

// Commit advances the high-water mark to an authenticated sequence.
func (g *ReplayGuard) Commit(seq uint64) {
	if seq > g.last {
		g.last = seq
	}
}

// Admit validates and commits in one step, for callers with nothing to
// authenticate between the two.
func (g *ReplayGuard) Admit(seq uint64) error {
	if err := g.Check(seq); err != nil {
		return err
	}
	g.last = seq
	return nil
}

// Last returns the high-water mark, for audit surfaces.
func (g *ReplayGuard) Last() uint64 { return g.last }
