// Package types provides shared data structures for the mediation gateway.
//
// This package defines the core vocabulary every pipeline stage speaks,
// keeping the stages decoupled: each consumes a typed request and produces a
// typed outcome instead of sharing mutable session objects.
//
// Core Types:
//   - Capability: closed enum of host-mediated privileged operations
//   - PermissionGrant, GrantSet: approved, optionally scoped capabilities
//   - CallRequest, CallResult: one extension call and its typed outcome
//   - LifecycleState: the per-session state machine position
//   - ThreatEvent, EventKind: immutable anomalous observations
//
// Error Taxonomy:
//   - ErrHandshakeFailed, ErrReplayDetected, ErrPermissionDenied,
//     ErrResourceUnavailable, ErrTimeout and friends, with wire codes
//     via ErrorCode.
package types
