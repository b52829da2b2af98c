package types

// LifecycleState is the per-session state machine position.
//
// Handshaking → Active ⇄ RateLimited → Contained → Terminated
//
// RateLimited is soft and self-exiting after cooldown. Contained and
// Terminated are entered only on a scoring decision and never exit; a
// contained extension recovers only by reloading into a new session.
type LifecycleState string

const (
	StateHandshaking LifecycleState = "handshaking"
	StateActive      LifecycleState = "active"
	StateRateLimited LifecycleState = "rate_limited"
	StateContained   LifecycleState = "contained"
	StateTerminated  LifecycleState = "terminated"
)

// CanTransition reports whether moving from s to next is legal.
func (s LifecycleState) CanTransition(next LifecycleState) bool {
	switch s {
	case StateHandshaking:
		return next == StateActive || next == StateTerminated
	case StateActive:
		return next == StateRateLimited || next == StateContained || next == StateTerminated
	case StateRateLimited:
		return next == StateActive || next == StateContained || next == StateTerminated
	case StateContained:
		return next == StateTerminated
	case StateTerminated:
		return false
	default:
		return false
	}
}

// Terminal reports whether the state admits no further calls at all.
func (s LifecycleState) Terminal() bool {
	return s == StateTerminated
}
