package channel

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// handshakeLabel domain-separates handshake signatures from any other use of
// the host identity key.
const handshakeLabel = "warden-hs-v1"

// HostIdentity is the host's long-term Ed25519 signing keypair. It is
// created once at startup and injected into every component that signs or
// verifies; there is no runtime mutation.
type HostIdentity struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewHostIdentity generates a fresh identity keypair.
func NewHostIdentity() (*HostIdentity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host identity: %w", err)
	}
	return &HostIdentity{pub: pub, priv: priv}, nil
}

// IdentityFromSeed derives the identity from a 32-byte seed, for hosts that
// persist their key across restarts.
func IdentityFromSeed(seed []byte) (*HostIdentity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &HostIdentity{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// Public returns the verification key extensions pin.
func (h *HostIdentity) Public() ed25519.PublicKey { return h.pub }

// HostHello is the host's half of the key exchange: an ephemeral X25519
// public key signed by the host identity key.
type HostHello struct {
	SessionID string `json:"session_id"`
	HostKey   []byte `json:"host_key"`
	Signature []byte `json:"signature"`
}

// SessionKeys is the HKDF output of a completed handshake: one encryption
// and one MAC key per direction.
type SessionKeys struct {
	EncC2H [32]byte
	EncH2C [32]byte
	MacC2H [32]byte
	MacH2C [32]byte
}

// Handshake tracks the host side of one in-flight key exchange.
type Handshake struct {
	identity  *HostIdentity
	sessionID string
	ephemeral *ecdh.PrivateKey
}

// NewHandshake begins a key exchange for the given session and produces the
// signed HostHello to send to the extension.
func NewHandshake(identity *HostIdentity, sessionID string) (*Handshake, *HostHello, error) {
	eph, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ephemeral key generation: %v", types.ErrHandshakeFailed, err)
	}

	hs := &Handshake{identity: identity, sessionID: sessionID, ephemeral: eph}
	hello := &HostHello{
		SessionID: sessionID,
		HostKey:   eph.PublicKey().Bytes(),
		Signature: ed25519.Sign(identity.priv, transcript(sessionID, eph.PublicKey().Bytes())),
	}
	return hs, hello, nil
}

// Complete consumes the extension's ephemeral X25519 public key and derives
// the session keys. Any failure is fatal to the session.
func (h *Handshake) Complete(extensionKey []byte) (*SessionKeys, error) {
	pub, err := ecdh.X25519().NewPublicKey(extensionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad extension key: %v", types.ErrHandshakeFailed, err)
	}
	secret, err := h.ephemeral.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: ecdh: %v", types.ErrHandshakeFailed, err)
	}
	return deriveKeys(secret, h.sessionID)
}

// VerifyHello is the extension-side check: the signed host key must verify
// against the pinned host identity before the derived keys are trusted.
func VerifyHello(hostIdentity ed25519.PublicKey, hello *HostHello) error {
	if !ed25519.Verify(hostIdentity, transcript(hello.SessionID, hello.HostKey), hello.Signature) {
		return fmt.Errorf("%w: host identity signature invalid", types.ErrHandshakeFailed)
	}
	return nil
}

// CompleteAsExtension derives the same session keys on the extension side.
// Used by the in-repo extension simulator and protocol tests.
func CompleteAsExtension(extensionPriv *ecdh.PrivateKey, hello *HostHello) (*SessionKeys, error) {
	hostPub, err := ecdh.X25519().NewPublicKey(hello.HostKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad host key: %v", types.ErrHandshakeFailed, err)
	}
	secret, err := extensionPriv.ECDH(hostPub)
	if err != nil {
		return nil, fmt.Errorf("%w: ecdh: %v", types.ErrHandshakeFailed, err)
	}
	return deriveKeys(secret, hello.SessionID)
}

func transcript(sessionID string, hostKey []byte) []byte {
	t := make([]byte, 0, len(handshakeLabel)+len(sessionID)+len(hostKey))
	t = append(t, handshakeLabel...)
	t = append(t, sessionID...)
	t = append(t, hostKey...)
	return t
}

func deriveKeys(secret []byte, sessionID string) (*SessionKeys, error) {
	kdf := hkdf.New(sha256.New, secret, []byte(sessionID), []byte("warden/v1/session-keys"))
	var keys SessionKeys
	for _, k := range [][]byte{keys.EncC2H[:], keys.EncH2C[:], keys.MacC2H[:], keys.MacH2C[:]} {
		if _, err := io.ReadFull(kdf, k); err != nil {
			return nil, fmt.Errorf("%w: key derivation: %v", types.ErrHandshakeFailed, err)
		}
	}
	return &keys, nil
}
