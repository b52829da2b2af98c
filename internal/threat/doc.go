// Package threat converts discrete policy violations into an actionable,
// auditable risk signal.
//
// Every anomalous observation is appended to an immutable per-session event
// log. The score is always recomputed from the full log with exponential
// half-life decay, as a pure function of (log, decay parameters, time), so
// an auditor replaying the log reproduces the exact score trajectory. Time
// is an explicit parameter throughout; the engine's clock is injected and
// only feeds RecordAt.
//
// Escalation is one-way: crossing the containment threshold moves the
// session to Contained, and a confirmed process/memory scanning event moves
// it straight to Terminated because that behavior is not safe to deceive
// against.
package threat
