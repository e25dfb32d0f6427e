package auth

import "errors"

var (
	// ErrVerification is the parent of every rejection returned by Accept.
	ErrVerification = errors.New("verification failed")

	// ErrBadSignature is returned when the envelope signature does not verify.
	ErrBadSignature = errors.New("bad signature")

	// ErrBadProof is returned when the integrity proof does not match the content.
	ErrBadProof = errors.New("bad proof")
)
