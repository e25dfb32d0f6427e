// Package vault generates and holds identity key material and derives
// decentralized identifiers (DIDs) from signature public keys.
//
// An [Identity] owns the only in-memory copy of its private keys. Identities
// are persisted through [Seal] and [Open], which protect the private keys with
// an Argon2id-derived key when a passphrase is given.
package vault
