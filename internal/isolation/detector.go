package isolation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Reserved storage namespace prefixes an extension can never touch, granted
// or not. Reaching for them is an unauthorized file access, not a policy
// miss.
var reservedNamespaces = []string{"host.", "browser.", "system."}

// credentialKeyPattern flags storage keys that look like secret material.
var credentialKeyPattern = regexp.MustCompile(`(?i)(token|secret|passw|credential|api[_-]?key|auth)`)

// scanPattern flags scripts that probe process or memory internals.
// Matching one is grounds for immediate termination.
var scanPattern = regexp.MustCompile(`(?i)(performance\.memory|process\.binding|enumerateProcesses|readMemory|scanMemory|memory\s*scan)`)

// credentialBurst is how many distinct credential-looking keys a session
// may read before the access pattern is flagged.
const credentialBurst = 3

// detector watches approved calls for behavioral patterns the gate cannot
// see: namespace escapes, credential sweeps, process scanning probes.
type detector struct {
	mu             sync.Mutex
	credentialKeys map[string]map[string]struct{} // session -> distinct keys
	flagged        map[string]int                 // session -> bursts already reported
}

func newDetector() *detector {
	return &detector{
		credentialKeys: make(map[string]map[string]struct{}),
		flagged:        make(map[string]int),
	}
}

// finding is one detector verdict.
type finding struct {
	kind   types.EventKind
	detail string
	// fatal denies the call after recording the event.
	fatal bool
}

// inspect examines one approved call before execution.
func (d *detector) inspect(sessionID string, req types.CallRequest) *finding {
	switch req.Capability {
	case types.CapStorageRead, types.CapStorageWrite:
		ns, _ := req.Params["namespace"].(string)
		key, _ := req.Params["key"].(string)
		if f := namespaceEscape(ns, key); f != nil {
			return f
		}
		if req.Capability == types.CapStorageRead && credentialKeyPattern.MatchString(key) {
			return d.trackCredentialRead(sessionID, key)
		}

	case types.CapDOMEvaluate:
		script, _ := req.Params["script"].(string)
		if loc := scanPattern.FindString(script); loc != "" {
			return &finding{
				kind:   types.EventProcessScanning,
				detail: fmt.Sprintf("script references %q", loc),
				fatal:  true,
			}
		}
	}
	return nil
}

func namespaceEscape(ns, key string) *finding {
	lower := strings.ToLower(ns)
	for _, reserved := range reservedNamespaces {
		if strings.HasPrefix(lower, reserved) {
			return &finding{
				kind:   types.EventUnauthorizedFile,
				detail: fmt.Sprintf("reserved namespace %q", ns),
				fatal:  true,
			}
		}
	}
	if strings.Contains(ns, "..") || strings.ContainsAny(ns, `/\`) ||
		strings.Contains(key, "..") {
		return &finding{
			kind:   types.EventUnauthorizedFile,
			detail: fmt.Sprintf("traversal in namespace %q key %q", ns, key),
			fatal:  true,
		}
	}
	return nil
}

// trackCredentialRead records a credential-looking key and reports a
// harvesting finding each time another full burst of distinct keys
// accumulates. The call itself still executes: the signal matters more
// than blocking one read the gate already approved.
func (d *detector) trackCredentialRead(sessionID, key string) *finding {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := d.credentialKeys[sessionID]
	if keys == nil {
		keys = make(map[string]struct{})
		d.credentialKeys[sessionID] = keys
	}
	keys[key] = struct{}{}

	bursts := len(keys) / credentialBurst
	if bursts > d.flagged[sessionID] {
		d.flagged[sessionID] = bursts
		return &finding{
			kind:   types.EventCredentialHarvesting,
			detail: fmt.Sprintf("%d distinct credential-pattern keys read", len(keys)),
		}
	}
	return nil
}

// forget clears detector state for a removed session.
func (d *detector) forget(sessionID string) {
	d.mu.Lock()
	delete(d.credentialKeys, sessionID)
	delete(d.flagged, sessionID)
	d.mu.Unlock()
}
