package pqmsg

import (
	"errors"
	"fmt"

	"github.com/pqmsg/pqmsg/internal/auth"
	"github.com/pqmsg/pqmsg/internal/crypto"
	"github.com/pqmsg/pqmsg/internal/delivery"
	"github.com/pqmsg/pqmsg/internal/envelope"
	"github.com/pqmsg/pqmsg/internal/vault"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrClosed is returned when operations are attempted on a closed messenger.
	ErrClosed = errors.New("messenger has been closed")

	// ErrNoIdentity is returned when the profile store holds no identity and
	// one is required.
	ErrNoIdentity = errors.New("no identity")

	// ErrContactNotFound is returned when a peer DID is not a known contact.
	ErrContactNotFound = errors.New("contact not found")

	// ErrNotStarted is returned by operations needing a running delivery channel.
	ErrNotStarted = errors.New("messenger not started")

	// ErrNoTransport is returned by Start when no transport is configured.
	ErrNoTransport = errors.New("no transport configured")

	// ErrEntropy is returned when the random source is unavailable.
	ErrEntropy = errors.New("random source unavailable")

	// ErrEncryption is returned when an envelope cannot be sealed.
	ErrEncryption = errors.New("encryption failed")

	// ErrKeyMismatch is returned when the encapsulated key cannot be recovered.
	ErrKeyMismatch = errors.New("key mismatch")

	// ErrIntegrity is returned when an envelope fails authentication.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrProtocol is returned for malformed envelopes.
	ErrProtocol = errors.New("protocol error")

	// ErrTransport is returned for connection-level failures.
	ErrTransport = errors.New("transport error")

	// ErrVerification is returned when a signature, proof or sender binding
	// does not verify.
	ErrVerification = errors.New("verification failed")
)

// PQMsgError is implemented by all typed errors of this package.
type PQMsgError interface {
	error
	PQMsgError() // marker method
}

// EntropyError reports a failed read from the random source. Key generation
// and encryption abort on it.
type EntropyError struct {
	Op  string
	Err error
}

func (e *EntropyError) Error() string {
	return fmt.Sprintf("%s: random source unavailable: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *EntropyError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *EntropyError) Is(target error) bool {
	return target == ErrEntropy
}

// PQMsgError implements the PQMsgError interface.
func (e *EntropyError) PQMsgError() {}

// EncryptionError reports a failure to build an envelope.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *EncryptionError) Is(target error) bool {
	return target == ErrEncryption
}

// PQMsgError implements the PQMsgError interface.
func (e *EncryptionError) PQMsgError() {}

// KeyMismatchError reports that the encapsulated key could not be recovered
// with the local private key.
type KeyMismatchError struct {
	Err error
}

func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("key mismatch: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyMismatchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *KeyMismatchError) Is(target error) bool {
	return target == ErrKeyMismatch
}

// PQMsgError implements the PQMsgError interface.
func (e *KeyMismatchError) PQMsgError() {}

// IntegrityError reports a failed AEAD tag check. ML-KEM decapsulation never
// fails outright, so a wrong recipient key also surfaces here.
type IntegrityError struct {
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// PQMsgError implements the PQMsgError interface.
func (e *IntegrityError) PQMsgError() {}

// ProtocolError reports malformed envelope or frame encoding.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// PQMsgError implements the PQMsgError interface.
func (e *ProtocolError) PQMsgError() {}

// TransportError reports a connection-level failure. The delivery channel
// handles these by reconnecting; they only reach callers from Start.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// PQMsgError implements the PQMsgError interface.
func (e *TransportError) PQMsgError() {}

// VerificationError reports an envelope or contact that failed
// authentication.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verification failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("verification failed: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerification
}

// PQMsgError implements the PQMsgError interface.
func (e *VerificationError) PQMsgError() {}

// wrapError converts internal errors to public errors.
// This ensures that errors.Is() checks work with public sentinel errors.
// Entropy is checked first because encryption failures wrap it.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pub PQMsgError
	if errors.As(err, &pub) {
		return err
	}

	switch {
	case errors.Is(err, crypto.ErrEntropy):
		return &EntropyError{Op: op, Err: err}
	case errors.Is(err, crypto.ErrEncryption):
		return &EncryptionError{Err: err}
	case errors.Is(err, crypto.ErrKeyMismatch):
		return &KeyMismatchError{Err: err}
	case errors.Is(err, crypto.ErrIntegrity):
		return &IntegrityError{Err: err}
	case errors.Is(err, envelope.ErrProtocol), errors.Is(err, delivery.ErrFrame):
		return &ProtocolError{Err: err}
	case errors.Is(err, delivery.ErrTransport):
		return &TransportError{Err: err}
	case errors.Is(err, auth.ErrBadSignature):
		return &VerificationError{Reason: "signature", Err: err}
	case errors.Is(err, auth.ErrBadProof):
		return &VerificationError{Reason: "proof", Err: err}
	case errors.Is(err, auth.ErrVerification):
		return &VerificationError{Reason: "envelope", Err: err}
	case errors.Is(err, vault.ErrInvalidDID), errors.Is(err, vault.ErrDIDMismatch):
		return &VerificationError{Reason: "identity", Err: err}
	}

	return err
}
