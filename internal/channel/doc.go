// Package channel implements the secure transport between extension and
// host: an authenticated X25519 key exchange signed by the host identity
// key, ChaCha20-Poly1305 envelopes with HMAC signatures, strict per-session
// sequence ordering with a small reorder window, and a payload codec that
// transparently compresses large bodies.
//
// The package holds no session state of its own. Key material and sequence
// counters live on the ExtensionSession owned by the isolation manager;
// everything here is a pure function over that state, which keeps replay
// decisions auditable and trivially testable.
package channel
