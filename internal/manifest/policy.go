package manifest

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Policy is the host's approval table: which capabilities each known
// extension may be granted, with host-side scope caps. Loaded once at
// startup; changing it requires a gateway restart, which also renegotiates
// every session.
type Policy struct {
	// Extensions maps extension ID to its approved permissions.
	Extensions map[string]PolicyEntry `toml:"extensions"`
	// DefaultDeny refuses sessions from extensions absent from the
	// table. When false, unknown extensions get zero grants but may
	// still connect (useful for observing probe behavior).
	DefaultDeny bool `toml:"default_deny"`
}

// PolicyEntry is the approval set for one extension.
type PolicyEntry struct {
	Approved []Permission `toml:"approved"`
}

// LoadPolicy reads the approval table from a TOML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes an approval table.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return &p, nil
}

// ApprovedFor returns the approved permissions for an extension and whether
// a session should be admitted at all.
func (p *Policy) ApprovedFor(extensionID string) ([]Permission, bool) {
	entry, known := p.Extensions[extensionID]
	if !known {
		return nil, !p.DefaultDeny
	}
	return entry.Approved, true
}
