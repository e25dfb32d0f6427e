package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/pqmsg/pqmsg/internal/envelope"
	"golang.org/x/crypto/hkdf"
)

// DeriveKey expands secret into length bytes with HKDF-SHA-512. An empty
// salt is replaced by a zero-filled one of hash length.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 || length > 255*sha512.Size {
		return nil, fmt.Errorf("%w: hkdf output length %d", ErrEncryption, length)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty hkdf secret", ErrEncryption)
	}
	if len(salt) == 0 {
		salt = make([]byte, sha512.Size)
	}

	key := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha512.New, secret, salt, info), key); err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", ErrEncryption, err)
	}
	return key, nil
}

// deriveAEADKey performs the envelope key derivation.
//
// The key derivation uses:
//   - IKM (input key material): the KEM shared secret
//   - Salt: SHA-256 hash of the encapsulated key
//   - Info: context string || algorithm tag (1 byte)
//
// Binding the tag means a ciphertext cannot be re-labelled as another AEAD.
func deriveAEADKey(sharedSecret, encapsulatedKey []byte, alg envelope.AlgTag) ([]byte, error) {
	saltHash := sha256.Sum256(encapsulatedKey)

	info := make([]byte, 0, len(HKDFContext)+1)
	info = append(info, HKDFContext...)
	info = append(info, byte(alg))

	return DeriveKey(sharedSecret, saltHash[:], info, AEADKeySize)
}
