package store

import (
	"errors"
	"sort"
	"time"

	"github.com/pqmsg/pqmsg/internal/vault"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by Append for a message ID that is already stored.
var ErrDuplicate = errors.New("duplicate message")

// Status is the read state of a message.
type Status string

// Message status values.
const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

// Message is a decrypted, verified application message. Content never
// changes after creation; only Status moves from unread to read.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// Peer returns the other party of the message from self's point of view.
func (m *Message) Peer(self string) string {
	if m.Sender == self {
		return m.Receiver
	}
	return m.Sender
}

// Contact is a known peer.
type Contact struct {
	vault.PublicIdentity
	Name    string
	AddedAt time.Time
}

// ProfileStore holds the local user's identity.
type ProfileStore interface {
	// GetCurrentIdentity returns the stored identity or ErrNotFound.
	GetCurrentIdentity() (*vault.Identity, error)
	// SaveIdentity replaces the stored identity.
	SaveIdentity(id *vault.Identity) error
	// ClearIdentity removes the stored identity.
	ClearIdentity() error
}

// ContactStore holds known peers keyed by DID.
type ContactStore interface {
	PutContact(c Contact) error
	// GetContact returns the contact for did or ErrNotFound.
	GetContact(did string) (Contact, error)
	ListContacts() ([]Contact, error)
	DeleteContact(did string) error
}

// MessageStore is the append-only message history.
type MessageStore interface {
	// Append adds a message. Appending a stored ID leaves the history
	// unchanged and returns ErrDuplicate.
	Append(m Message) error
	// QueryByPeer returns the conversation between self and peer, oldest first.
	QueryByPeer(self, peer string) ([]Message, error)
	// MarkRead marks every unread message sent by peer as read and returns
	// how many changed.
	MarkRead(peer string) (int, error)
}

// conversation returns a key that is the same for both directions.
func conversation(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
