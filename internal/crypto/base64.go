package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ToBase64URL encodes data as unpadded base64url. The alphabet never
// contains ':' so encoded fields can be joined in the text envelope.
func ToBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// FromBase64URL decodes unpadded base64url.
func FromBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

var stdToURL = strings.NewReplacer("+", "-", "/", "_")

// DecodeKeyText decodes a public key copied by hand. Line breaks, padding and
// the standard alphabet are accepted. A positive size is the required
// decoded length.
func DecodeKeyText(s string, size int) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = stdToURL.Replace(strings.TrimRight(s, "="))
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}

	key, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if size > 0 && len(key) != size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(key), size)
	}
	return key, nil
}
