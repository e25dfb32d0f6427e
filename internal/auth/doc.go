// Package auth signs and verifies envelopes and computes the integrity proof
// bound to message content.
//
// The signature covers the canonical envelope core (see envelope.Envelope.Core),
// which includes the proof. The proof is a hash chain over a BLAKE2b digest of
// the plaintext, so it can only be checked after decryption:
//
//	a := auth.New(sigProvider)
//	sealed, err := a.Seal(env, auth.Digest(plaintext), sigPriv)
//	...
//	if err := a.Accept(sealed, plaintext, senderSigPub); err != nil {
//		// drop the message
//	}
package auth
