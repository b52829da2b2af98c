// Package id provides centralized ID generation for the gateway.
//
// ULIDs are used everywhere: lexicographically sortable for time-ordered
// audit queries, prefixed per type for readable logs (sess_*, ext_*, evt_*),
// and generated from a cryptographically secure entropy source.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one extension session.
type SessionID string

// ExtensionID identifies an installed extension.
type ExtensionID string

// EventID identifies a threat event.
type EventID string

// TraceID identifies one trace through the mediation pipeline.
type TraceID string

const (
	SessionPrefix   = "sess"
	ExtensionPrefix = "ext"
	EventPrefix     = "evt"
	TracePrefix     = "trc"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewExtensionID generates a new extension ID.
func NewExtensionID() ExtensionID {
	return ExtensionID(Default().GenerateWithPrefix(ExtensionPrefix))
}

// NewEventID generates a new threat event ID.
func NewEventID() EventID {
	return EventID(Default().GenerateWithPrefix(EventPrefix))
}

// NewTraceID generates a new trace ID.
func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}

func (id SessionID) String() string   { return string(id) }
func (id ExtensionID) String() string { return string(id) }
func (id EventID) String() string     { return string(id) }
func (id TraceID) String() string     { return string(id) }

// IsValid checks whether the portion after the prefix parses as a ULID.
func IsValid(id string) bool {
	for i := 0; i < len(id); i++ {
		if id[i] == '_' {
			_, err := ulid.Parse(id[i+1:])
			return err == nil
		}
	}
	_, err := ulid.Parse(id)
	return err == nil
}
