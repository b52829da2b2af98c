package channel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Direction tags which half of the session an envelope travels.
type Direction uint8

const (
	ClientToHost Direction = 1
	HostToClient Direction = 2
)

// Envelope is the unit of transport: constructed at send time, consumed and
// discarded at receive time, never persisted.
type Envelope struct {
	Seq        uint64 `json:"seq"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Sig        []byte `json:"sig"`
}

// Seal encrypts and signs one plaintext for the given direction and
// sequence number. The nonce is fully determined by (direction, seq), which
// ties AEAD freshness to the monotonic counter.
func Seal(keys *SessionKeys, dir Direction, seq uint64, plaintext []byte) (*Envelope, error) {
	nonce := deriveNonce(dir, seq)

	aead, err := chacha20poly1305.New(encKey(keys, dir))
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)

	return &Envelope{
		Seq:        seq,
		Nonce:      nonce,
		Ciphertext: ct,
		Sig:        sign(macKey(keys, dir), seq, nonce, ct),
	}, nil
}

// Open verifies the MAC, checks the nonce against the sequence derivation,
// and decrypts. Both the MAC and the AEAD tag must pass before any byte of
// payload is surfaced.
func Open(keys *SessionKeys, dir Direction, env *Envelope) ([]byte, error) {
	if !hmac.Equal(env.Sig, sign(macKey(keys, dir), env.Seq, env.Nonce, env.Ciphertext)) {
		return nil, fmt.Errorf("%w: signature mismatch", types.ErrMalformedEnvelope)
	}

	expected := deriveNonce(dir, env.Seq)
	if !hmac.Equal(env.Nonce, expected) {
		return nil, fmt.Errorf("%w: nonce does not match sequence", types.ErrMalformedEnvelope)
	}

	aead, err := chacha20poly1305.New(encKey(keys, dir))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	plaintext, err := aead.Open(nil, expected, env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decryption failed", types.ErrMalformedEnvelope)
	}
	return plaintext, nil
}

func deriveNonce(dir Direction, seq uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	nonce[3] = byte(dir)
	binary.BigEndian.PutUint64(nonce[4:], seq)
	return nonce
}

func sign(key []byte, seq uint64, nonce, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, key)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	mac.Write(seqBuf[:])
	mac.Write(nonce)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

func encKey(keys *SessionKeys, dir Direction) []byte {
	if dir == ClientToHost {
		return keys.EncC2H[:]
	}
	return keys.EncH2C[:]
}

func macKey(keys *SessionKeys, dir Direction) []byte {
	if dir == ClientToHost {
		return keys.MacC2H[:]
	}
	return keys.MacH2C[:]
}
