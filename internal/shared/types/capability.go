package types

import "fmt"

// Capability identifies one host-mediated privileged operation.
//
// The set is closed: the Capability Gate and the honeypot registry match on
// it exhaustively, so adding a variant requires updating both.
type Capability string

const (
	CapNetworkFetch   Capability = "network-fetch"
	CapStorageRead    Capability = "storage-read"
	CapStorageWrite   Capability = "storage-write"
	CapDOMRead        Capability = "dom-read"
	CapDOMEvaluate    Capability = "dom-evaluate"
	CapClipboardRead  Capability = "clipboard-read"
	CapClipboardWrite Capability = "clipboard-write"
	CapNotify         Capability = "notification-display"
)

// Capabilities lists every capability the gateway mediates.
func Capabilities() []Capability {
	return []Capability{
		CapNetworkFetch,
		CapStorageRead,
		CapStorageWrite,
		CapDOMRead,
		CapDOMEvaluate,
		CapClipboardRead,
		CapClipboardWrite,
		CapNotify,
	}
}

// ParseCapability validates a wire string against the closed set.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	switch c {
	case CapNetworkFetch, CapStorageRead, CapStorageWrite,
		CapDOMRead, CapDOMEvaluate,
		CapClipboardRead, CapClipboardWrite, CapNotify:
		return c, nil
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// String implements fmt.Stringer.
func (c Capability) String() string { return string(c) }
