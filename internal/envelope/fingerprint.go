package envelope

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex SHA-256 of raw envelope bytes. The delivery
// channel uses it to drop duplicates.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
