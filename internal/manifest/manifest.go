// Package manifest turns an extension's declared permissions and the host's
// approval policy into a session grant set.
//
// The manifest is an untrusted proposal: the effective grants are the
// intersection of what the extension declares (YAML, shipped with the
// extension) and what the host approves (TOML, operator-managed). Anything
// declared but not approved silently disappears; anything approved but not
// declared is never granted.
package manifest

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/utils"
)

// Manifest is the extension's declared identity and permission proposal.
type Manifest struct {
	Name        string       `yaml:"name"`
	Version     string       `yaml:"version"`
	ExtensionID string       `yaml:"extension_id"`
	Permissions []Permission `yaml:"permissions"`
}

// Permission is one declared or approved capability with optional scoping.
type Permission struct {
	Capability  string   `yaml:"capability" toml:"capability"`
	Domains     []string `yaml:"domains,omitempty" toml:"domains,omitempty"`
	Namespace   string   `yaml:"namespace,omitempty" toml:"namespace,omitempty"`
	KeyPatterns []string `yaml:"key_patterns,omitempty" toml:"key_patterns,omitempty"`
}

// Parse decodes and validates a manifest. Unknown capabilities are an
// error: a manifest asking for powers the gateway does not mediate is
// malformed, not merely ambitious.
func Parse(data []byte) (*Manifest, error) {
	if err := utils.CheckManifestSize(data); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := utils.ValidateExtensionID(m.ExtensionID); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if err := utils.ValidateName(m.Name); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if err := utils.ValidateVersion(m.Version); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	for _, p := range m.Permissions {
		if _, err := types.ParseCapability(p.Capability); err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
	}
	return &m, nil
}

// Effective computes the session grant set: declared ∩ approved, scope
// narrowed to the tighter of the two.
func Effective(m *Manifest, approved []Permission) types.GrantSet {
	byCapability := make(map[types.Capability][]Permission)
	for _, a := range approved {
		c, err := types.ParseCapability(a.Capability)
		if err != nil {
			continue
		}
		byCapability[c] = append(byCapability[c], a)
	}

	var grants []types.PermissionGrant
	for _, declared := range m.Permissions {
		c, err := types.ParseCapability(declared.Capability)
		if err != nil {
			continue
		}
		for _, approval := range byCapability[c] {
			if g, ok := intersect(c, declared, approval); ok {
				grants = append(grants, g)
			}
		}
	}
	return types.NewGrantSet(grants)
}

// intersect narrows one declared permission by one approval. The result is
// never broader than either side.
func intersect(c types.Capability, declared, approved Permission) (types.PermissionGrant, bool) {
	g := types.PermissionGrant{Capability: c}

	switch {
	case len(declared.Domains) == 0:
		g.Domains = approved.Domains
	case len(approved.Domains) == 0:
		g.Domains = declared.Domains
	default:
		g.Domains = intersectStrings(declared.Domains, approved.Domains)
		if len(g.Domains) == 0 {
			return g, false
		}
	}

	switch {
	case declared.Namespace == "":
		g.Namespace = approved.Namespace
	case approved.Namespace == "":
		g.Namespace = declared.Namespace
	case strings.EqualFold(declared.Namespace, approved.Namespace):
		g.Namespace = declared.Namespace
	default:
		return g, false
	}

	// Key patterns cannot be meaningfully intersected as globs; the
	// approval's patterns win when both sides scope keys.
	if len(approved.KeyPatterns) > 0 {
		g.KeyPatterns = approved.KeyPatterns
	} else {
		g.KeyPatterns = declared.KeyPatterns
	}

	return g, true
}

func intersectStrings(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	var out []string
	for _, s := range b {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, ok := set[key]; ok {
			out = append(out, key)
		}
	}
	return out
}
