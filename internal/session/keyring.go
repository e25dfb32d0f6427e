package session

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/pqmsg/pqmsg/internal/crypto"
	"github.com/pqmsg/pqmsg/internal/envelope"
	"github.com/sirupsen/logrus"
)

// DefaultCacheSize is the number of received session keys kept per peer.
const DefaultCacheSize = 8

type keyID [sha256.Size]byte

// Config configures a Keyring.
type Config struct {
	Policy    Policy
	CacheSize int
	Now       func() time.Time
	Logger    logrus.FieldLogger
}

// Keyring holds session keys for every peer of one local identity.
type Keyring struct {
	cipher    *crypto.Cipher
	policy    Policy
	cacheSize int
	now       func() time.Time
	logger    logrus.FieldLogger

	mu    sync.Mutex
	peers map[string]*peerKeys
}

type peerKeys struct {
	// mu serializes sealing and rotation of the sending key.
	mu      sync.Mutex
	send    *crypto.SessionKey
	uses    int
	created time.Time

	// rmu guards the receive cache.
	rmu   sync.RWMutex
	recv  map[keyID]*crypto.SessionKey
	order []keyID
}

// New returns a keyring sealing with cipher.
func New(cipher *crypto.Cipher, cfg Config) *Keyring {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Keyring{
		cipher:    cipher,
		policy:    cfg.Policy,
		cacheSize: cfg.CacheSize,
		now:       cfg.Now,
		logger:    cfg.Logger,
		peers:     make(map[string]*peerKeys),
	}
}

func (k *Keyring) peer(id string) *peerKeys {
	k.mu.Lock()
	defer k.mu.Unlock()

	p, ok := k.peers[id]
	if !ok {
		p = &peerKeys{recv: make(map[keyID]*crypto.SessionKey)}
		k.peers[id] = p
	}
	return p
}

// lookup returns the keys held for id without creating an entry.
func (k *Keyring) lookup(id string) (*peerKeys, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.peers[id]
	return p, ok
}

// Seal encrypts plaintext for peer under the current session key, rotating
// it first if the policy requires. peerKEMPublicKey is used only when a new
// key is encapsulated.
func (k *Keyring) Seal(peer string, peerKEMPublicKey, plaintext []byte) (*envelope.Envelope, error) {
	p := k.peer(peer)
	p.mu.Lock()
	defer p.mu.Unlock()

	now := k.now()
	if p.send == nil || k.policy.due(p.uses, p.created, now) {
		key, err := k.cipher.NewSessionKey(peerKEMPublicKey)
		if err != nil {
			return nil, err
		}
		if p.send != nil {
			k.logger.WithFields(logrus.Fields{"peer": peer, "uses": p.uses}).Debug("rotating session key")
			p.send.Destroy()
		}
		p.send, p.uses, p.created = key, 0, now
	}

	env, err := k.cipher.SealWithKey(p.send, plaintext)
	if err != nil {
		return nil, err
	}
	p.uses++
	return env, nil
}

// Rotate discards the sending key for peer; the next Seal encapsulates a
// new one.
func (k *Keyring) Rotate(peer string) {
	p, ok := k.lookup(peer)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.send != nil {
		p.send.Destroy()
		p.send = nil
	}
}

// Uses returns how many envelopes have been sealed under the current
// sending key for peer.
func (k *Keyring) Uses(peer string) int {
	p, ok := k.lookup(peer)
	if !ok {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uses
}

// Open decrypts an envelope received from peer. A cached session key is used
// when the envelope's encapsulated key has been seen before.
func (k *Keyring) Open(peer string, env *envelope.Envelope, localKEMPrivateKey []byte) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	p := k.peer(peer)
	id := keyID(sha256.Sum256(env.EncapsulatedKey))

	p.rmu.RLock()
	key, ok := p.recv[id]
	if ok {
		plaintext, err := k.cipher.OpenWithKey(key, env)
		p.rmu.RUnlock()
		return plaintext, err
	}
	p.rmu.RUnlock()

	key, err := k.cipher.RecoverSessionKey(env, localKEMPrivateKey)
	if err != nil {
		return nil, err
	}
	plaintext, err := k.cipher.OpenWithKey(key, env)
	if err != nil {
		key.Destroy()
		return nil, err
	}

	p.rmu.Lock()
	defer p.rmu.Unlock()
	if _, ok := p.recv[id]; ok {
		key.Destroy()
		return plaintext, nil
	}
	p.recv[id] = key
	p.order = append(p.order, id)
	if len(p.order) > k.cacheSize {
		oldest := p.order[0]
		p.order = p.order[1:]
		p.recv[oldest].Destroy()
		delete(p.recv, oldest)
	}
	return plaintext, nil
}

// Cached returns the number of received keys cached for peer.
func (k *Keyring) Cached(peer string) int {
	p, ok := k.lookup(peer)
	if !ok {
		return 0
	}
	p.rmu.RLock()
	defer p.rmu.RUnlock()
	return len(p.recv)
}

// Forget destroys all keys held for peer.
func (k *Keyring) Forget(peer string) {
	k.mu.Lock()
	p, ok := k.peers[peer]
	delete(k.peers, peer)
	k.mu.Unlock()

	if ok {
		p.destroy()
	}
}

// Reset destroys every key in the keyring.
func (k *Keyring) Reset() {
	k.mu.Lock()
	peers := k.peers
	k.peers = make(map[string]*peerKeys)
	k.mu.Unlock()

	for _, p := range peers {
		p.destroy()
	}
}

func (p *peerKeys) destroy() {
	p.mu.Lock()
	if p.send != nil {
		p.send.Destroy()
		p.send = nil
	}
	p.mu.Unlock()

	p.rmu.Lock()
	for id, key := range p.recv {
		key.Destroy()
		delete(p.recv, id)
	}
	p.order = nil
	p.rmu.Unlock()
}
