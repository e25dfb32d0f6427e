package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pqmsg/pqmsg/internal/vault"
	"github.com/sirupsen/logrus"
)

const (
	keyProfile    = "profile:current"
	prefixContact = "contact:"
	prefixMessage = "msg:"
	prefixMsgID   = "msgid:"
	prefixUnread  = "unread:"
)

// Badger implements all three stores on a Badger database. The identity is
// written as a vault record, sealed when a passphrase is set.
type Badger struct {
	db         *badger.DB
	passphrase []byte
	owned      bool
}

var (
	_ ProfileStore = (*Badger)(nil)
	_ ContactStore = (*Badger)(nil)
	_ MessageStore = (*Badger)(nil)
)

// OpenBadger opens or creates a database in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string, passphrase []byte, logger logrus.FieldLogger) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if logger != nil {
		opts = opts.WithLogger(logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s := NewBadger(db, passphrase)
	s.owned = true
	return s, nil
}

// NewBadger wraps an open database. The caller keeps ownership of db.
func NewBadger(db *badger.DB, passphrase []byte) *Badger {
	return &Badger{db: db, passphrase: passphrase}
}

// Close closes the database if it was opened by OpenBadger.
func (s *Badger) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Badger) get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *Badger) GetCurrentIdentity() (*vault.Identity, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		data, err = s.get(txn, []byte(keyProfile))
		return err
	})
	if err != nil {
		return nil, err
	}
	return vault.Open(data, s.passphrase)
}

func (s *Badger) SaveIdentity(id *vault.Identity) error {
	data, err := vault.Seal(id, s.passphrase)
	if err != nil {
		return fmt.Errorf("seal identity: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyProfile), data)
	})
}

func (s *Badger) ClearIdentity() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyProfile))
	})
}

type contactRecord struct {
	DID          string `json:"did"`
	Name         string `json:"name"`
	KEMScheme    string `json:"kem"`
	SigScheme    string `json:"sig"`
	KEMPublicKey []byte `json:"kemPublicKey"`
	SigPublicKey []byte `json:"sigPublicKey"`
	AddedAt      int64  `json:"addedAt"`
}

func (s *Badger) PutContact(c Contact) error {
	data, err := json.Marshal(contactRecord{
		DID:          c.DID,
		Name:         c.Name,
		KEMScheme:    c.KEMScheme,
		SigScheme:    c.SigScheme,
		KEMPublicKey: c.KEMPublicKey,
		SigPublicKey: c.SigPublicKey,
		AddedAt:      c.AddedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixContact+c.DID), data)
	})
}

func decodeContact(data []byte) (Contact, error) {
	var r contactRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return Contact{}, fmt.Errorf("decode contact: %w", err)
	}
	return Contact{
		PublicIdentity: vault.PublicIdentity{
			DID:          r.DID,
			KEMScheme:    r.KEMScheme,
			SigScheme:    r.SigScheme,
			KEMPublicKey: r.KEMPublicKey,
			SigPublicKey: r.SigPublicKey,
		},
		Name:    r.Name,
		AddedAt: unixMilli(r.AddedAt),
	}, nil
}

func (s *Badger) GetContact(did string) (Contact, error) {
	var c Contact
	err := s.db.View(func(txn *badger.Txn) error {
		data, err := s.get(txn, []byte(prefixContact+did))
		if err != nil {
			return err
		}
		c, err = decodeContact(data)
		return err
	})
	return c, err
}

func (s *Badger) ListContacts() ([]Contact, error) {
	var out []Contact
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixContact)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			c, err := decodeContact(data)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

func (s *Badger) DeleteContact(did string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixContact + did))
	})
}

// messageKey orders a conversation by timestamp: msg:<conv>:<ts BE>:<id>.
func messageKey(m *Message) []byte {
	key := []byte(prefixMessage + conversation(m.Sender, m.Receiver) + ":")
	key = binary.BigEndian.AppendUint64(key, uint64(m.Timestamp.UnixNano()))
	return append(key, ":"+m.ID...)
}

func (s *Badger) Append(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	key := messageKey(&m)

	return s.db.Update(func(txn *badger.Txn) error {
		idKey := []byte(prefixMsgID + m.ID)
		if _, err := txn.Get(idKey); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(idKey, key); err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if m.Status == StatusUnread {
			return txn.Set(append([]byte(prefixUnread+m.Sender+":"), key...), nil)
		}
		return nil
	})
}

func (s *Badger) QueryByPeer(self, peer string) ([]Message, error) {
	var out []Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixMessage + conversation(self, peer) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortMessages(out)
	return out, nil
}

func (s *Badger) MarkRead(peer string) (int, error) {
	n := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{})
		prefix := []byte(prefixUnread + peer + ":")
		var index [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			index = append(index, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, idx := range index {
			key := idx[len(prefix):]
			data, err := s.get(txn, key)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if err == nil {
				var m Message
				if err := json.Unmarshal(data, &m); err != nil {
					return fmt.Errorf("decode message: %w", err)
				}
				m.Status = StatusRead
				updated, err := json.Marshal(m)
				if err != nil {
					return err
				}
				if err := txn.Set(key, updated); err != nil {
					return err
				}
				n++
			}
			if err := txn.Delete(idx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func unixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
