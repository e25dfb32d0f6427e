package pqmsg

import (
	"github.com/pqmsg/pqmsg/internal/envelope"
	"github.com/pqmsg/pqmsg/internal/store"
	"github.com/pqmsg/pqmsg/internal/vault"
)

// Message is a decrypted, verified message. See [store.Message].
type Message = store.Message

// MessageStatus is the read state of a message.
type MessageStatus = store.Status

// Message status values.
const (
	StatusUnread = store.StatusUnread
	StatusRead   = store.StatusRead
)

// Contact is a known peer.
type Contact = store.Contact

// Identity is the local key material. Private keys never leave the process
// except through a ProfileStore.
type Identity = vault.Identity

// PublicIdentity is the shareable half of an identity.
type PublicIdentity = vault.PublicIdentity

// Envelope is the encrypted, signed unit exchanged between peers.
type Envelope = envelope.Envelope

// ProfileStore holds the local identity.
type ProfileStore = store.ProfileStore

// ContactStore holds known peers.
type ContactStore = store.ContactStore

// MessageStore is the message history.
type MessageStore = store.MessageStore

// ErrNotFound is returned by stores for missing records.
var ErrNotFound = store.ErrNotFound

// ErrDuplicate is returned by MessageStore.Append for an ID already stored.
var ErrDuplicate = store.ErrDuplicate

// NewMemoryStore returns a store keeping profile, contacts and messages in
// memory. It satisfies all three store interfaces.
func NewMemoryStore() *store.Memory {
	return store.NewMemory()
}

// EncodeEnvelope returns the binary wire form of env.
func EncodeEnvelope(env *Envelope) []byte {
	return envelope.Marshal(env)
}

// DecodeEnvelope parses the binary wire form.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	env, err := envelope.Unmarshal(data)
	if err != nil {
		return nil, wrapError("decode envelope", err)
	}
	return env, nil
}

// EncodeEnvelopeText returns the printable form of env.
func EncodeEnvelopeText(env *Envelope) string {
	return envelope.EncodeText(env)
}

// DecodeEnvelopeText parses the printable form.
func DecodeEnvelopeText(s string) (*Envelope, error) {
	env, err := envelope.DecodeText(s)
	if err != nil {
		return nil, wrapError("decode envelope", err)
	}
	return env, nil
}

// Fingerprint returns the hex SHA-256 of the binary form of env, the value
// delivery channels deduplicate on.
func Fingerprint(env *Envelope) string {
	return envelope.Fingerprint(envelope.Marshal(env))
}
