package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/pqmsg/pqmsg/internal/envelope"
	"golang.org/x/crypto/chacha20poly1305"
)

// newAEAD builds the AEAD selected by alg.
func newAEAD(alg envelope.AlgTag, key []byte) (cipher.AEAD, error) {
	if len(key) != AEADKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AEADKeySize)
	}

	switch alg {
	case envelope.AlgAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case envelope.AlgChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: aead %v", ErrUnknownScheme, alg)
	}
}

// SealAEAD encrypts plaintext with the AEAD selected by alg.
// Returns ciphertext || tag.
func SealAEAD(alg envelope.AlgTag, key, nonce, plaintext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), aead.NonceSize())
	}

	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// OpenAEAD decrypts ciphertext || tag with the AEAD selected by alg.
// A failed tag check returns ErrIntegrity and no plaintext.
func OpenAEAD(alg envelope.AlgTag, key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), aead.NonceSize())
	}

	if len(ciphertext) < aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrIntegrity)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrIntegrity
	}

	return plaintext, nil
}
