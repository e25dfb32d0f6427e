package envelope

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// Version is the current envelope format version.
	Version = 1

	// MaxSize bounds the size of an encoded envelope.
	MaxSize = 1 << 20

	// CoreContext separates the signed core from other signed material.
	CoreContext = "pqmsg:envelope-core:v1"
)

// AlgTag identifies the AEAD scheme used to seal the ciphertext.
type AlgTag uint8

const (
	// AlgUnknown is the zero value and never valid on the wire.
	AlgUnknown AlgTag = 0
	// AlgAES256GCM is AES-256 in Galois/Counter Mode.
	AlgAES256GCM AlgTag = 1
	// AlgChaCha20Poly1305 is ChaCha20-Poly1305 (RFC 8439).
	AlgChaCha20Poly1305 AlgTag = 2
)

// String returns the canonical algorithm name.
func (a AlgTag) String() string {
	switch a {
	case AlgAES256GCM:
		return "AES-256-GCM"
	case AlgChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return fmt.Sprintf("AlgTag(%d)", uint8(a))
	}
}

// NonceSize returns the IV length required by the algorithm, or 0 if unknown.
func (a AlgTag) NonceSize() int {
	switch a {
	case AlgAES256GCM, AlgChaCha20Poly1305:
		return 12
	default:
		return 0
	}
}

// Valid reports whether a is a known algorithm tag.
func (a AlgTag) Valid() bool {
	return a.NonceSize() != 0
}

// ParseAlgTag maps an algorithm name to its tag.
func ParseAlgTag(name string) (AlgTag, error) {
	switch name {
	case "AES-256-GCM", "aes-256-gcm":
		return AlgAES256GCM, nil
	case "ChaCha20-Poly1305", "chacha20-poly1305":
		return AlgChaCha20Poly1305, nil
	default:
		return AlgUnknown, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Envelope is the self-contained, signed, encrypted unit transmitted between peers.
type Envelope struct {
	// Version is the envelope format version.
	Version uint8
	// AlgTag identifies the AEAD scheme.
	AlgTag AlgTag
	// IV is the AEAD nonce. Its length must match AlgTag.
	IV []byte
	// Ciphertext is the AEAD output including the authentication tag.
	Ciphertext []byte
	// EncapsulatedKey is the KEM ciphertext for the recipient.
	EncapsulatedKey []byte
	// Proof is the integrity commitment over the plaintext digest.
	Proof []byte
	// Signature covers the canonical core, see [Envelope.Core].
	Signature []byte
	// Timestamp is the sender's clock in Unix milliseconds.
	Timestamp int64
}

// Validate checks the structural invariants of the envelope.
func (e *Envelope) Validate() error {
	if e.Version != Version {
		return fmt.Errorf("%w: %w: %d", ErrProtocol, ErrUnsupportedVersion, e.Version)
	}
	if !e.AlgTag.Valid() {
		return fmt.Errorf("%w: %w: %d", ErrProtocol, ErrUnknownAlgorithm, e.AlgTag)
	}
	if len(e.IV) != e.AlgTag.NonceSize() {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrProtocol, ErrInvalidNonceSize, len(e.IV), e.AlgTag.NonceSize())
	}
	if len(e.Ciphertext) == 0 {
		return fmt.Errorf("%w: missing ciphertext", ErrProtocol)
	}
	if len(e.EncapsulatedKey) == 0 {
		return fmt.Errorf("%w: missing encapsulated key", ErrProtocol)
	}
	return nil
}

// AssociatedData returns the header bytes bound to the ciphertext by the AEAD.
func (e *Envelope) AssociatedData() []byte {
	ad := make([]byte, 0, 2+len(e.EncapsulatedKey))
	ad = append(ad, e.Version, byte(e.AlgTag))
	return append(ad, e.EncapsulatedKey...)
}

// Core returns the canonical byte string covered by the signature.
//
// Layout: context || version || algTag || timestamp (8 bytes BE) ||
// len(iv) || iv || len(ct) || ct || len(ek) || ek || len(proof) || proof,
// with every length a 4-byte big-endian prefix.
func (e *Envelope) Core() []byte {
	size := len(CoreContext) + 2 + 8 + 16 + len(e.IV) + len(e.Ciphertext) + len(e.EncapsulatedKey) + len(e.Proof)
	core := make([]byte, 0, size)
	core = append(core, CoreContext...)
	core = append(core, e.Version, byte(e.AlgTag))
	core = binary.BigEndian.AppendUint64(core, uint64(e.Timestamp))
	for _, field := range [][]byte{e.IV, e.Ciphertext, e.EncapsulatedKey, e.Proof} {
		core = binary.BigEndian.AppendUint32(core, uint32(len(field)))
		core = append(core, field...)
	}
	return core
}

// Clone returns a deep copy of the envelope.
func (e *Envelope) Clone() *Envelope {
	return &Envelope{
		Version:         e.Version,
		AlgTag:          e.AlgTag,
		IV:              bytes.Clone(e.IV),
		Ciphertext:      bytes.Clone(e.Ciphertext),
		EncapsulatedKey: bytes.Clone(e.EncapsulatedKey),
		Proof:           bytes.Clone(e.Proof),
		Signature:       bytes.Clone(e.Signature),
		Timestamp:       e.Timestamp,
	}
}

// WithProof returns a copy of the envelope carrying proof.
// Any existing signature is dropped since it no longer covers the core.
func (e *Envelope) WithProof(proof []byte) *Envelope {
	c := e.Clone()
	c.Proof = bytes.Clone(proof)
	c.Signature = nil
	return c
}

// WithSignature returns a copy of the envelope carrying sig.
func (e *Envelope) WithSignature(sig []byte) *Envelope {
	c := e.Clone()
	c.Signature = bytes.Clone(sig)
	return c
}
