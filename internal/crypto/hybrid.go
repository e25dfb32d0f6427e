package crypto

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pqmsg/pqmsg/internal/envelope"
)

// SessionKey is a symmetric key bound to the KEM encapsulation that
// delivered it. The sender keeps one per peer until rotation; the receiver
// recovers it by decapsulation.
type SessionKey struct {
	// EncapsulatedKey is the KEM ciphertext carried in every envelope sealed
	// under this key.
	EncapsulatedKey []byte
	// Alg is the AEAD the key was derived for.
	Alg envelope.AlgTag

	key []byte
}

// Destroy zeroes the key material. The key must not be used afterwards.
func (k *SessionKey) Destroy() {
	Zero(k.key)
	k.key = nil
}

// Cipher combines a KEM provider with an AEAD to seal and open envelopes.
// It is safe for concurrent use; it holds no per-message state.
type Cipher struct {
	kem KEMProvider
	alg envelope.AlgTag
	now func() time.Time
}

// NewCipher returns a cipher using the given KEM and AEAD.
// If now is nil, time.Now is used for envelope timestamps.
func NewCipher(kem KEMProvider, alg envelope.AlgTag, now func() time.Time) (*Cipher, error) {
	if kem == nil {
		return nil, fmt.Errorf("%w: nil kem provider", ErrUnknownScheme)
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: aead %v", ErrUnknownScheme, alg)
	}
	if now == nil {
		now = time.Now
	}
	return &Cipher{kem: kem, alg: alg, now: now}, nil
}

// KEM returns the cipher's KEM provider.
func (c *Cipher) KEM() KEMProvider {
	return c.kem
}

// Alg returns the cipher's AEAD tag.
func (c *Cipher) Alg() envelope.AlgTag {
	return c.alg
}

// NewSessionKey encapsulates a fresh shared secret against the recipient's
// KEM public key and derives an AEAD key from it.
func (c *Cipher) NewSessionKey(recipientPublicKey []byte) (*SessionKey, error) {
	ct, ss, err := c.kem.Encapsulate(recipientPublicKey)
	if err != nil {
		return nil, err
	}
	defer Zero(ss)

	key, err := deriveAEADKey(ss, ct, c.alg)
	if err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", ErrEncryption, err)
	}
	return &SessionKey{EncapsulatedKey: ct, Alg: c.alg, key: key}, nil
}

// Encrypt seals plaintext for the holder of recipientPublicKey with a
// one-off session key. The returned envelope has no proof or signature yet.
func (c *Cipher) Encrypt(plaintext, recipientPublicKey []byte) (*envelope.Envelope, error) {
	key, err := c.NewSessionKey(recipientPublicKey)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	return c.SealWithKey(key, plaintext)
}

// SealWithKey seals plaintext under an existing session key. A fresh random
// IV is drawn for every call.
func (c *Cipher) SealWithKey(key *SessionKey, plaintext []byte) (*envelope.Envelope, error) {
	if key == nil || len(key.key) != AEADKeySize {
		return nil, fmt.Errorf("%w: %w: session key unusable", ErrEncryption, ErrInvalidKeySize)
	}

	iv, err := RandomBytes(key.Alg.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	env := &envelope.Envelope{
		Version:         envelope.Version,
		AlgTag:          key.Alg,
		IV:              iv,
		EncapsulatedKey: bytes.Clone(key.EncapsulatedKey),
		Timestamp:       c.now().UnixMilli(),
	}

	ct, err := SealAEAD(key.Alg, key.key, iv, plaintext, env.AssociatedData())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	env.Ciphertext = ct
	return env, nil
}

// RecoverSessionKey decapsulates the envelope's encapsulated key with the
// local private key.
func (c *Cipher) RecoverSessionKey(env *envelope.Envelope, localPrivateKey []byte) (*SessionKey, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	ss, err := c.kem.Decapsulate(localPrivateKey, env.EncapsulatedKey)
	if err != nil {
		return nil, err
	}
	defer Zero(ss)

	key, err := deriveAEADKey(ss, env.EncapsulatedKey, env.AlgTag)
	if err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", ErrKeyMismatch, err)
	}
	return &SessionKey{EncapsulatedKey: bytes.Clone(env.EncapsulatedKey), Alg: env.AlgTag, key: key}, nil
}

// OpenWithKey opens the envelope with a recovered session key. The tag is
// verified before any plaintext is returned.
func (c *Cipher) OpenWithKey(key *SessionKey, env *envelope.Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if key == nil || len(key.key) != AEADKeySize {
		return nil, fmt.Errorf("%w: session key unusable", ErrKeyMismatch)
	}
	if !bytes.Equal(key.EncapsulatedKey, env.EncapsulatedKey) {
		return nil, fmt.Errorf("%w: envelope sealed under a different session key", ErrKeyMismatch)
	}
	if key.Alg != env.AlgTag {
		return nil, fmt.Errorf("%w: algorithm %v does not match session key %v", ErrIntegrity, env.AlgTag, key.Alg)
	}

	return OpenAEAD(env.AlgTag, key.key, env.IV, env.Ciphertext, env.AssociatedData())
}

// Decrypt recovers the session key from the envelope and opens it.
//
// The decryption process:
//  1. KEM decapsulation to recover the shared secret (ErrKeyMismatch on failure)
//  2. HKDF-SHA-512 key derivation bound to the encapsulated key and AEAD tag
//  3. AEAD open of the ciphertext (ErrIntegrity on tag failure)
//
// ML-KEM uses implicit rejection: a wrong private key or a corrupted
// encapsulation yields an unrelated key, so those cases surface as
// ErrIntegrity from step 3.
func (c *Cipher) Decrypt(env *envelope.Envelope, localPrivateKey []byte) ([]byte, error) {
	key, err := c.RecoverSessionKey(env, localPrivateKey)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	return c.OpenWithKey(key, env)
}
