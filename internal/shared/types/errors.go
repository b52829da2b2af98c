package types

import "errors"

// Error taxonomy for the mediation pipeline. Codes appear on the wire in
// CallError; the sentinels are what internal stages return and match on.
var (
	// ErrHandshakeFailed is fatal to the session; it never reaches Active.
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrReplayDetected is fatal to the message, recorded as a threat
	// event; the session continues.
	ErrReplayDetected = errors.New("replay detected")
	// ErrReorder marks an envelope arriving beyond the reorder window.
	ErrReorder = errors.New("sequence out of order beyond window")
	// ErrMalformedEnvelope covers MAC/AEAD/decoding failures.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrPermissionDenied is recoverable; the extension may try a
	// different, permitted call.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrResourceUnavailable is recoverable with caller backoff.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrTimeout is recoverable; repeated timeouts feed rate accounting.
	ErrTimeout = errors.New("operation timed out")
	// ErrDenied is returned by the isolation core when an approved call
	// still hits the operation allow-list.
	ErrDenied = errors.New("operation denied by isolation policy")
	// ErrSessionTerminated rejects work against a dead session.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrRateLimited is returned while a session sits in cooldown.
	ErrRateLimited = errors.New("session rate limited")
)

// Wire error codes.
const (
	CodeHandshakeFailed     = "HANDSHAKE_FAILED"
	CodeReplayDetected      = "REPLAY_DETECTED"
	CodeMalformedEnvelope   = "MALFORMED_ENVELOPE"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeResourceUnavailable = "RESOURCE_UNAVAILABLE"
	CodeTimeout             = "TIMEOUT"
	CodeDenied              = "DENIED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

// ErrorCode maps a pipeline error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrHandshakeFailed):
		return CodeHandshakeFailed
	case errors.Is(err, ErrReplayDetected), errors.Is(err, ErrReorder):
		return CodeReplayDetected
	case errors.Is(err, ErrMalformedEnvelope):
		return CodeMalformedEnvelope
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrResourceUnavailable):
		return CodeResourceUnavailable
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrDenied):
		return CodeDenied
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}
