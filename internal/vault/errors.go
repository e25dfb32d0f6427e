package vault

import "errors"

var (
	// ErrInvalidDID is returned when a string is not a well-formed DID.
	ErrInvalidDID = errors.New("invalid DID")

	// ErrDIDMismatch is returned when a DID does not match the signature key it
	// claims to be derived from.
	ErrDIDMismatch = errors.New("DID does not match signature key")

	// ErrRecord is returned when a persisted identity record is malformed.
	ErrRecord = errors.New("malformed identity record")

	// ErrPassphrase is returned when a sealed record cannot be opened with
	// the given passphrase, or has been modified.
	ErrPassphrase = errors.New("wrong passphrase or corrupted record")

	// ErrPassphraseRequired is returned when opening a sealed record without
	// a passphrase.
	ErrPassphraseRequired = errors.New("identity record is sealed")
)
