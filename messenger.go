package pqmsg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pqmsg/pqmsg/internal/auth"
	"github.com/pqmsg/pqmsg/internal/crypto"
	"github.com/pqmsg/pqmsg/internal/delivery"
	"github.com/pqmsg/pqmsg/internal/envelope"
	"github.com/pqmsg/pqmsg/internal/session"
	"github.com/pqmsg/pqmsg/internal/store"
	"github.com/pqmsg/pqmsg/internal/vault"
	"github.com/sirupsen/logrus"
)

// Messenger is the session manager of one local identity. It seals outgoing
// messages for contacts, verifies and opens incoming envelopes, records both
// in the message store and runs the delivery channel.
type Messenger struct {
	cfg    *config
	logger logrus.FieldLogger

	profiles ProfileStore
	contacts ContactStore
	messages MessageStore

	vault   *vault.Vault
	cipher  *crypto.Cipher
	auth    *auth.Authenticator
	keyring *session.Keyring
	subs    *subscriptionManager

	mu       sync.RWMutex
	identity *vault.Identity
	channel  *delivery.Channel
	closed   bool
}

// New loads the identity from profiles, creating and saving a new one if the
// store is empty, and returns a messenger for it. An existing identity keeps
// its own schemes; WithKEM and WithSignature only apply to new identities.
func New(profiles ProfileStore, contacts ContactStore, messages MessageStore, opts ...Option) (*Messenger, error) {
	if profiles == nil || contacts == nil || messages == nil {
		return nil, fmt.Errorf("profile, contact and message stores are required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logrus.New()
	}
	logger := cfg.logger.WithField("component", "messenger")

	identity, err := profiles.GetCurrentIdentity()
	switch {
	case errors.Is(err, store.ErrNotFound):
		identity = nil
	case err != nil:
		return nil, fmt.Errorf("load identity: %w", err)
	default:
		if identity.KEMScheme != cfg.kem || identity.SigScheme != cfg.signature {
			logger.WithFields(logrus.Fields{
				"kem": identity.KEMScheme,
				"sig": identity.SigScheme,
			}).Debug("using schemes of stored identity")
		}
		cfg.kem, cfg.signature = identity.KEMScheme, identity.SigScheme
	}

	v, err := vault.NewByName(cfg.kem, cfg.signature)
	if err != nil {
		return nil, err
	}
	alg, err := envelope.ParseAlgTag(cfg.aead)
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewCipher(v.KEM(), alg, cfg.now)
	if err != nil {
		return nil, err
	}

	if identity == nil {
		identity, err = v.NewIdentity()
		if err != nil {
			return nil, wrapError("create identity", err)
		}
		if err := profiles.SaveIdentity(identity); err != nil {
			identity.Destroy()
			return nil, fmt.Errorf("save identity: %w", err)
		}
		logger.WithField("did", identity.DID).Info("created identity")
	} else if err := v.CheckPublic(&identity.PublicIdentity); err != nil {
		return nil, wrapError("load identity", err)
	}

	m := &Messenger{
		cfg:      cfg,
		logger:   logger.WithField("did", identity.DID),
		profiles: profiles,
		contacts: contacts,
		messages: messages,
		vault:    v,
		cipher:   cipher,
		auth:     auth.New(v.Signature()),
		keyring: session.New(cipher, session.Config{
			Policy:    cfg.policy,
			CacheSize: cfg.keyCache,
			Now:       cfg.now,
			Logger:    cfg.logger,
		}),
		subs:     newSubscriptionManager(),
		identity: identity,
	}
	return m, nil
}

// current returns the identity or an error if the messenger is closed or
// cleared.
func (m *Messenger) current() (*vault.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.identity == nil {
		return nil, ErrNoIdentity
	}
	return m.identity, nil
}

// Identity returns the public half of the local identity.
func (m *Messenger) Identity() (PublicIdentity, error) {
	id, err := m.current()
	if err != nil {
		return PublicIdentity{}, err
	}
	return id.Public(), nil
}

// DID returns the local DID, or "" after Clear.
func (m *Messenger) DID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return ""
	}
	return m.identity.DID
}

// AddContact verifies that pub is self-consistent and uses this messenger's
// schemes, then stores it under name.
func (m *Messenger) AddContact(pub PublicIdentity, name string) (Contact, error) {
	if _, err := m.current(); err != nil {
		return Contact{}, err
	}
	if err := m.vault.CheckPublic(&pub); err != nil {
		return Contact{}, &VerificationError{Reason: "contact", Err: err}
	}

	c := Contact{PublicIdentity: pub, Name: name, AddedAt: m.cfg.now().UTC()}
	if err := m.contacts.PutContact(c); err != nil {
		return Contact{}, fmt.Errorf("save contact: %w", err)
	}
	// New keys may have been published under the same DID's card; start over.
	m.keyring.Forget(pub.DID)
	return c, nil
}

// Contact returns the contact stored for did.
func (m *Messenger) Contact(did string) (Contact, error) {
	c, err := m.contacts.GetContact(did)
	if errors.Is(err, store.ErrNotFound) {
		return Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, did)
	}
	return c, err
}

// Contacts lists all contacts.
func (m *Messenger) Contacts() ([]Contact, error) {
	return m.contacts.ListContacts()
}

// OnSendRequested seals content for peer, appends it to the history and, if
// the delivery channel is running, queues it for transmission. The returned
// envelope is the one transmitted.
func (m *Messenger) OnSendRequested(ctx context.Context, peer, content string) (*Envelope, error) {
	id, err := m.current()
	if err != nil {
		return nil, err
	}
	contact, err := m.Contact(peer)
	if err != nil {
		return nil, err
	}

	msg := Message{
		ID:        uuid.NewString(),
		Sender:    id.DID,
		Receiver:  peer,
		Content:   content,
		Timestamp: m.cfg.now().UTC().Truncate(time.Millisecond),
		Status:    StatusRead,
	}
	plaintext, err := json.Marshal(newPayload(&msg))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err) //coverage:ignore
	}
	defer crypto.Zero(plaintext)

	env, err := m.keyring.Seal(peer, contact.KEMPublicKey, plaintext)
	if err != nil {
		return nil, wrapError("seal", err)
	}
	env, err = m.auth.Seal(env, auth.Digest(plaintext), id.SigPrivateKey)
	if err != nil {
		return nil, wrapError("sign", err)
	}

	if err := m.messages.Append(msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	m.mu.RLock()
	ch := m.channel
	m.mu.RUnlock()
	if ch != nil {
		if err := ch.Send(ctx, peer, envelope.Marshal(env)); err != nil {
			if errors.Is(err, delivery.ErrClosed) {
				return env, ErrClosed
			}
			return env, err
		}
	}

	m.logger.WithFields(logrus.Fields{"peer": peer, "id": msg.ID}).Debug("message sent")
	return env, nil
}

// Receive verifies and opens an envelope from peer. The signature is checked
// before any decryption, the proof after it, and the inner payload must name
// peer as sender and this identity as receiver. On success the message is
// passed to OnMessageDecrypted and returned.
func (m *Messenger) Receive(ctx context.Context, peer string, env *Envelope) (*Message, error) {
	id, err := m.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if env == nil {
		return nil, &ProtocolError{Err: envelope.ErrProtocol}
	}
	if err := env.Validate(); err != nil {
		return nil, wrapError("receive", err)
	}

	contact, err := m.Contact(peer)
	if err != nil {
		return nil, &VerificationError{Reason: "unknown sender", Err: err}
	}
	if err := m.auth.VerifySignature(env, contact.SigPublicKey); err != nil {
		return nil, wrapError("receive", err)
	}

	plaintext, err := m.keyring.Open(peer, env, id.KEMPrivateKey)
	if err != nil {
		return nil, wrapError("receive", err)
	}
	defer crypto.Zero(plaintext)

	if err := m.auth.VerifyContent(env, plaintext); err != nil {
		return nil, &VerificationError{Reason: "proof", Err: err}
	}

	p, err := decodePayload(plaintext)
	if err != nil {
		return nil, err
	}
	if err := p.check(peer, id.DID); err != nil {
		return nil, err
	}

	msg := p.message()
	if err := m.OnMessageDecrypted(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// OnMessageDecrypted appends msg to the history and notifies subscribers.
// A message whose ID is already stored is accepted without notifying again.
func (m *Messenger) OnMessageDecrypted(msg *Message) error {
	err := m.messages.Append(*msg)
	if errors.Is(err, store.ErrDuplicate) {
		m.logger.WithField("id", msg.ID).Debug("message already stored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	m.subs.notify(msg)
	return nil
}

// Subscribe registers a callback for every received message. Callbacks run
// on the delivery goroutine and must not block. Returns an unsubscribe
// function.
func (m *Messenger) Subscribe(callback func(*Message)) func() {
	return m.subs.subscribe(callback)
}

// SubscribePeer registers a callback for messages received from peer.
func (m *Messenger) SubscribePeer(peer string, callback func(*Message)) func() {
	return m.subs.subscribe(callback, peer)
}

// History returns the conversation with peer, oldest first.
func (m *Messenger) History(peer string) ([]Message, error) {
	id, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.messages.QueryByPeer(id.DID, peer)
}

// MarkRead marks every message received from peer as read.
func (m *Messenger) MarkRead(peer string) (int, error) {
	if _, err := m.current(); err != nil {
		return 0, err
	}
	return m.messages.MarkRead(peer)
}

// RotateSession discards the sending key for peer. The next message
// encapsulates a fresh one.
func (m *Messenger) RotateSession(peer string) {
	m.keyring.Rotate(peer)
}

// Start connects the delivery channel and begins receiving. It returns once
// the connection loop is running; use WaitConnected to block until the
// first connection.
func (m *Messenger) Start(ctx context.Context) error {
	id, err := m.current()
	if err != nil {
		return err
	}
	if m.cfg.transport == nil {
		return ErrNoTransport
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channel != nil {
		return &TransportError{Err: delivery.ErrAlreadyStarted}
	}

	ch := delivery.NewChannel(delivery.Config{
		Transport:     m.cfg.transport,
		Self:          id.DID,
		Backoff:       m.cfg.backoff,
		DedupCapacity: m.cfg.dedupCapacity,
		Logger:        m.cfg.logger,
		OnStateChange: m.cfg.onState,
	})
	if err := ch.Start(ctx, m.handleEnvelope); err != nil {
		return wrapError("start", err)
	}
	m.channel = ch
	return nil
}

// WaitConnected blocks until the delivery channel has connected once.
func (m *Messenger) WaitConnected(ctx context.Context) error {
	m.mu.RLock()
	ch := m.channel
	m.mu.RUnlock()
	if ch == nil {
		return ErrNotStarted
	}

	select {
	case <-ch.Connected():
		return nil
	case <-ch.Done():
		return &TransportError{Err: delivery.ErrClosed}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every envelope sent so far has been written to the
// relay connection.
func (m *Messenger) Flush(ctx context.Context) error {
	m.mu.RLock()
	ch := m.channel
	m.mu.RUnlock()
	if ch == nil {
		return ErrNotStarted
	}

	err := ch.Flush(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, delivery.ErrClosed):
		return ErrClosed
	default:
		return wrapError("flush", err)
	}
}

// State returns the delivery channel state.
func (m *Messenger) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.channel == nil {
		return Disconnected
	}
	return m.channel.State()
}

// handleEnvelope is the delivery handler. Every failure drops the envelope.
func (m *Messenger) handleEnvelope(ctx context.Context, peer string, raw []byte) {
	log := m.logger.WithFields(logrus.Fields{
		"peer":        peer,
		"fingerprint": envelope.Fingerprint(raw),
	})

	env, err := envelope.Unmarshal(raw)
	if err != nil {
		log.WithError(err).WithField("reason", "protocol").Warn("dropping envelope")
		return
	}
	msg, err := m.Receive(ctx, peer, env)
	if err != nil {
		log.WithError(err).WithField("reason", dropReason(err)).Warn("dropping envelope")
		return
	}
	log.WithField("id", msg.ID).Debug("message received")
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrVerification):
		var v *VerificationError
		if errors.As(err, &v) {
			return v.Reason
		}
		return "verification"
	case errors.Is(err, ErrKeyMismatch), errors.Is(err, ErrIntegrity):
		return "decrypt"
	default:
		return "store"
	}
}

// Close stops the delivery channel, drops all session keys and removes all
// subscriptions. The identity stays in the profile store. Close is
// idempotent.
func (m *Messenger) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ch := m.channel
	m.channel = nil
	m.mu.Unlock()

	var err error
	if ch != nil {
		err = ch.Close()
	}
	m.keyring.Reset()
	m.subs.clear()
	return err
}

// Clear closes the messenger, destroys the private keys and removes the
// identity from the profile store.
func (m *Messenger) Clear() error {
	if err := m.Close(); err != nil {
		return err
	}

	m.mu.Lock()
	id := m.identity
	m.identity = nil
	m.mu.Unlock()

	if err := m.profiles.ClearIdentity(); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	if id != nil {
		id.Destroy()
		m.logger.Info("identity cleared")
	}
	return nil
}
