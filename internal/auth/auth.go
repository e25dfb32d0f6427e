package auth

import (
	"errors"
	"fmt"

	"github.com/pqmsg/pqmsg/internal/crypto"
	"github.com/pqmsg/pqmsg/internal/envelope"
)

// Authenticator signs envelopes and enforces the acceptance policy for
// incoming ones. It is safe for concurrent use.
type Authenticator struct {
	sig crypto.SignatureProvider
}

// New returns an Authenticator using the given signature provider.
func New(sig crypto.SignatureProvider) *Authenticator {
	return &Authenticator{sig: sig}
}

// Scheme returns the signature provider.
func (a *Authenticator) Scheme() crypto.SignatureProvider {
	return a.sig
}

// Sign returns a signature over the envelope core.
func (a *Authenticator) Sign(env *envelope.Envelope, privateKey []byte) ([]byte, error) {
	return a.sig.Sign(privateKey, env.Core())
}

// Verify reports whether the envelope signature is valid for publicKey.
// It returns false for a missing or malformed signature.
func (a *Authenticator) Verify(env *envelope.Envelope, publicKey []byte) bool {
	if env == nil || len(env.Signature) == 0 {
		return false
	}
	return a.sig.Verify(publicKey, env.Core(), env.Signature)
}

// Seal attaches the proof for digest and then signs the result.
// The input envelope is not modified.
func (a *Authenticator) Seal(env *envelope.Envelope, digest, privateKey []byte) (*envelope.Envelope, error) {
	proved := env.WithProof(GenerateProof(digest))
	sig, err := a.Sign(proved, privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign envelope: %w", err)
	}
	return proved.WithSignature(sig), nil
}

// VerifySignature checks only the signature half of the policy, so that
// unsigned or forged envelopes are rejected before any decryption work.
func (a *Authenticator) VerifySignature(env *envelope.Envelope, publicKey []byte) error {
	if !a.Verify(env, publicKey) {
		return fmt.Errorf("%w: %w", ErrVerification, ErrBadSignature)
	}
	return nil
}

// VerifyContent checks the proof half of the policy against the decrypted
// plaintext.
func (a *Authenticator) VerifyContent(env *envelope.Envelope, plaintext []byte) error {
	if env == nil || !VerifyProof(Digest(plaintext), env.Proof) {
		return fmt.Errorf("%w: %w", ErrVerification, ErrBadProof)
	}
	return nil
}

// Accept applies the whole acceptance policy in one call: the envelope is
// accepted only if both the signature and the proof over plaintext verify.
// Receivers that decrypt in between use VerifySignature and VerifyContent.
func (a *Authenticator) Accept(env *envelope.Envelope, plaintext, publicKey []byte) error {
	var errs []error
	if !a.Verify(env, publicKey) {
		errs = append(errs, ErrBadSignature)
	}
	if env == nil || !VerifyProof(Digest(plaintext), env.Proof) {
		errs = append(errs, ErrBadProof)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(errs...))
	}
	return nil
}
