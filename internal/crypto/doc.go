// Package crypto provides the post-quantum primitives behind pqmsg
// envelopes: key encapsulation, signatures, authenticated encryption and
// key derivation.
//
// # Providers
//
// Algorithms are chosen by name rather than by separate functions per
// family:
//
//   - [NewKEM] returns a [KEMProvider]: ML-KEM-512, ML-KEM-768 (default)
//     or ML-KEM-1024 (NIST FIPS 203).
//
//   - [NewSignature] returns a [SignatureProvider]: ML-DSA-44, ML-DSA-65
//     (default) or ML-DSA-87 (NIST FIPS 204).
//
//   - The AEAD is selected by [envelope.AlgTag]: AES-256-GCM (default) or
//     ChaCha20-Poly1305.
//
// # Hybrid Cipher
//
// [Cipher] encapsulates a shared secret against the recipient's KEM public
// key, derives an AEAD key with HKDF-SHA-512 and seals the plaintext. The
// envelope header (version, algorithm tag, encapsulated key) is bound as
// associated data.
//
// AEAD nonces MUST be unique for each encryption with the same key. Every
// seal draws a fresh random IV, including when a session key is reused.
//
// # Entropy
//
// All randomness comes from one source (crypto/rand by default). If it
// fails, operations return [ErrEntropy]; there is no fallback.
package crypto
