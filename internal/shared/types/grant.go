package types

// PermissionGrant is one approved, optionally scoped capability for a
// session. The grant set is fixed at handshake; changing it means a new
// session.
type PermissionGrant struct {
	Capability Capability `json:"capability"`
	// Domains restricts network-fetch to the listed registrable domains
	// (subdomains included). Empty means unscoped.
	Domains []string `json:"domains,omitempty"`
	// Namespace restricts storage-read/storage-write to one storage
	// namespace. Empty means unscoped.
	Namespace string `json:"namespace,omitempty"`
	// KeyPatterns further restricts storage keys with glob patterns
	// (doublestar syntax). Empty means all keys in the namespace.
	KeyPatterns []string `json:"key_patterns,omitempty"`
}

// Scoped reports whether the grant carries any scoping constraint.
func (g PermissionGrant) Scoped() bool {
	return len(g.Domains) > 0 || g.Namespace != "" || len(g.KeyPatterns) > 0
}

// GrantSet is the immutable per-session grant collection.
type GrantSet struct {
	grants map[Capability][]PermissionGrant
}

// NewGrantSet builds a grant set; the input slice is copied.
func NewGrantSet(grants []PermissionGrant) GrantSet {
	m := make(map[Capability][]PermissionGrant, len(grants))
	for _, g := range grants {
		m[g.Capability] = append(m[g.Capability], g)
	}
	return GrantSet{grants: m}
}

// For returns all grants for a capability.
func (s GrantSet) For(c Capability) []PermissionGrant {
	return s.grants[c]
}

// Has reports whether any grant exists for the capability.
func (s GrantSet) Has(c Capability) bool {
	return len(s.grants[c]) > 0
}

// All returns every grant in the set.
func (s GrantSet) All() []PermissionGrant {
	var out []PermissionGrant
	for _, gs := range s.grants {
		out = append(out, gs...)
	}
	return out
}

// Len returns the number of grants.
func (s GrantSet) Len() int {
	n := 0
	for _, gs := range s.grants {
		n += len(gs)
	}
	return n
}
