package crypto

import "io"

// SetRandReaderForTesting replaces the source behind key generation,
// encapsulation seeds and nonces, and returns a func that restores the
// previous one. Passing a failing reader makes every such operation return
// ErrEntropy.
func SetRandReaderForTesting(r io.Reader) func() {
	prev := randReader
	randReader = r
	return func() { randReader = prev }
}
