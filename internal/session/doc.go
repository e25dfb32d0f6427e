// Package session keeps per-peer session keys.
//
// On the sending side a [Keyring] holds one session key per peer and rotates
// it according to a [Policy]. On the receiving side it caches the keys
// recovered by decapsulation so that envelopes sealed under the same session
// key are opened without repeating the KEM step.
//
// All sealing for a peer is serialized on that peer's lock, and rotation takes
// the same lock, so no envelope is ever sealed with a key that is being
// replaced. The receive cache is guarded by a read/write lock; keys are only
// added after an envelope has been opened successfully.
package session
