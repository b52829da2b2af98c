package types

import "time"

// EventKind classifies one anomalous observation.
type EventKind string

const (
	EventBlockedCall          EventKind = "blocked_api_call"
	EventExcessiveNetwork     EventKind = "excessive_network_requests"
	EventUnauthorizedFile     EventKind = "unauthorized_file_access"
	EventCredentialHarvesting EventKind = "credential_harvesting_pattern"
	EventProcessScanning      EventKind = "process_memory_scanning"
)

// ThreatEvent is one immutable anomalous observation. Events are only ever
// appended to a session's log and aggregated, never mutated or deleted.
type ThreatEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
