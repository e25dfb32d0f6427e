package crypto

import "errors"

var (
	// ErrEntropy is returned when the random source fails. Key generation
	// aborts and never falls back to weaker randomness.
	ErrEntropy = errors.New("random source unavailable")

	// ErrEncryption is returned when key import or AEAD sealing fails.
	ErrEncryption = errors.New("encryption failed")

	// ErrKeyMismatch is returned when decapsulation fails, for example with
	// the wrong private key or a malformed encapsulated key.
	ErrKeyMismatch = errors.New("key decapsulation failed")

	// ErrIntegrity is returned when AEAD tag verification fails.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrUnknownScheme is returned when a KEM, signature or AEAD name is not registered.
	ErrUnknownScheme = errors.New("unknown scheme")

	// ErrInvalidKeySize is returned when the AEAD key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrInvalidPublicKey is returned when a public key cannot be parsed.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey is returned when a private key cannot be parsed.
	ErrInvalidPrivateKey = errors.New("invalid private key")
)
