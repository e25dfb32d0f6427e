package vault

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
)

const (
	// DIDPrefix is the namespace tag of every DID.
	DIDPrefix = "did:pqm:"

	didHashBytes = 20
)

var didEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// DIDLen is the length of an encoded DID.
var DIDLen = len(DIDPrefix) + didEncoding.EncodedLen(didHashBytes)

// DeriveDID derives the DID for a signature public key. The scheme name is
// part of the hash input, so the same key bytes under another scheme yield
// another DID.
func DeriveDID(sigScheme string, sigPublicKey []byte) string {
	h := sha256.New()
	h.Write([]byte(sigScheme))
	h.Write(sigPublicKey)
	sum := h.Sum(nil)
	return DIDPrefix + didEncoding.EncodeToString(sum[:didHashBytes])
}

// ValidateDID checks that did is syntactically a DID.
func ValidateDID(did string) error {
	if len(did) != DIDLen || !strings.HasPrefix(did, DIDPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidDID, did)
	}
	if _, err := didEncoding.DecodeString(did[len(DIDPrefix):]); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDID, did)
	}
	return nil
}

// VerifyDID checks that did was derived from sigPublicKey.
func VerifyDID(did, sigScheme string, sigPublicKey []byte) error {
	if err := ValidateDID(did); err != nil {
		return err
	}
	if DeriveDID(sigScheme, sigPublicKey) != did {
		return fmt.Errorf("%w: %s", ErrDIDMismatch, did)
	}
	return nil
}
