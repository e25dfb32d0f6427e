package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// randReader is the random source for all key, seed and nonce generation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func entropy() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// RandomBytes returns n bytes from the random source or an error wrapping
// ErrEntropy.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(entropy(), b); err != nil {
		return nil, fmt.Errorf("%w: read %d bytes: %v", ErrEntropy, n, err)
	}
	return b, nil
}
