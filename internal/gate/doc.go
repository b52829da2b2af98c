// Package gate is the capability gate: every decoded call is admitted or
// denied against the session's immutable grant set before any privileged
// work is scheduled.
//
// Matching is exact or scoped, never partial: a network-fetch grant scoped
// to a domain list is checked against the requested URL's registrable
// domain, a storage grant against its namespace and key globs. A request
// that cannot be evaluated against a scoped grant (missing URL, missing
// key) is denied. Denials are recorded as threat events; the call never
// reaches the isolation core.
package gate
