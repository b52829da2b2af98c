// Package honeypot is the deception environment for contained sessions.
//
// Once the scoring engine contains a session, its approved calls route here
// instead of the isolation core. Responses are plausible and correctly
// shaped so the extension's control flow continues normally, maximizing the
// intent signal in the forensic log; no response ever derives from real
// host state. The registry is process-wide and read-mostly: services are
// registered at startup and shared across contained sessions.
//
// A fault inside a service must never reach the extension or the host:
// dispatch recovers panics into a generic empty-success response and logs
// the fault separately.
package honeypot
