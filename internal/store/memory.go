package store

import (
	"sort"
	"sync"

	"github.com/pqmsg/pqmsg/internal/vault"
)

// Memory implements all three stores in process memory.
type Memory struct {
	mu       sync.RWMutex
	identity *vault.Identity
	contacts map[string]Contact
	messages map[string][]Message
	ids      map[string]struct{}
}

var (
	_ ProfileStore = (*Memory)(nil)
	_ ContactStore = (*Memory)(nil)
	_ MessageStore = (*Memory)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		contacts: make(map[string]Contact),
		messages: make(map[string][]Message),
		ids:      make(map[string]struct{}),
	}
}

// GetCurrentIdentity returns the identity itself, not a copy.
func (s *Memory) GetCurrentIdentity() (*vault.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, ErrNotFound
	}
	return s.identity, nil
}

func (s *Memory) SaveIdentity(id *vault.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	return nil
}

func (s *Memory) ClearIdentity() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	return nil
}

func (s *Memory) PutContact(c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.DID] = c
	return nil
}

func (s *Memory) GetContact(did string) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[did]
	if !ok {
		return Contact{}, ErrNotFound
	}
	return c, nil
}

func (s *Memory) ListContacts() ([]Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DID < out[j].DID })
	return out, nil
}

func (s *Memory) DeleteContact(did string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, did)
	return nil
}

func (s *Memory) Append(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[m.ID]; ok {
		return ErrDuplicate
	}
	s.ids[m.ID] = struct{}{}
	conv := conversation(m.Sender, m.Receiver)
	s.messages[conv] = append(s.messages[conv], m)
	return nil
}

func (s *Memory) QueryByPeer(self, peer string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := append([]Message(nil), s.messages[conversation(self, peer)]...)
	sortMessages(msgs)
	return msgs, nil
}

func (s *Memory) MarkRead(peer string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, msgs := range s.messages {
		for i := range msgs {
			if msgs[i].Sender == peer && msgs[i].Status == StatusUnread {
				msgs[i].Status = StatusRead
				n++
			}
		}
	}
	return n, nil
}
