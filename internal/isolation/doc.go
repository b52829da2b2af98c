// Package isolation confines extension execution and is the sole owner of
// session state.
//
// Every ExtensionSession lives here: its key material, sequence counters,
// grant set, lifecycle state and resource accounting. Other stages hold only
// the session identifier and look state up through the Manager, so no stage
// can corrupt another's view.
//
// The Core is the single component that touches real host resources. It
// receives one approved call at a time, checks it against the session's
// operation allow-list and behavioral detectors, executes it under a bounded
// timeout, and surfaces resource-threshold breaches to the threat scoring
// engine. Lifecycle:
//
//	Handshaking → Active ⇄ RateLimited → Contained → Terminated
//
// RateLimited is soft and exits after a cooldown. Contained and Terminated
// are entered only on a scoring decision and never self-exit.
package isolation
