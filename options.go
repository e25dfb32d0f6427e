package pqmsg

import (
	"time"

	"github.com/pqmsg/pqmsg/internal/crypto"
	"github.com/pqmsg/pqmsg/internal/delivery"
	"github.com/pqmsg/pqmsg/internal/session"
	"github.com/sirupsen/logrus"
)

// Algorithm names accepted by WithKEM, WithSignature and WithAEAD.
const (
	KEMMLKEM512  = "ML-KEM-512"
	KEMMLKEM768  = "ML-KEM-768"
	KEMMLKEM1024 = "ML-KEM-1024"

	SignatureMLDSA44 = "ML-DSA-44"
	SignatureMLDSA65 = "ML-DSA-65"
	SignatureMLDSA87 = "ML-DSA-87"

	AEADAES256GCM        = "AES-256-GCM"
	AEADChaCha20Poly1305 = "ChaCha20-Poly1305"
)

// ConnectionState is the state of the delivery channel.
type ConnectionState = delivery.State

// Connection states.
const (
	Disconnected = delivery.Disconnected
	Connecting   = delivery.Connecting
	Connected    = delivery.Connected
)

// Backoff controls reconnect delays of the delivery channel.
type Backoff = delivery.Backoff

// Transport dials a duplex byte stream to a relay.
type Transport = delivery.Transport

// config holds configuration for the messenger.
type config struct {
	logger    logrus.FieldLogger
	kem       string
	signature string
	aead      string
	policy    session.Policy
	keyCache  int
	now       func() time.Time

	transport     Transport
	backoff       Backoff
	dedupCapacity int
	onState       func(ConnectionState)
}

func defaultConfig() *config {
	return &config{
		kem:       crypto.DefaultKEM,
		signature: crypto.DefaultSignature,
		aead:      crypto.DefaultAEAD,
		policy:    session.DefaultPolicy,
		now:       time.Now,
	}
}

// Option configures the messenger.
type Option func(*config)

// WithLogger sets the logger. Without it a logrus logger at Info level
// writing to stderr is used.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithKEM selects the key encapsulation mechanism by name.
func WithKEM(name string) Option {
	return func(c *config) {
		c.kem = name
	}
}

// WithSignature selects the signature scheme by name.
func WithSignature(name string) Option {
	return func(c *config) {
		c.signature = name
	}
}

// WithAEAD selects the symmetric cipher by name.
func WithAEAD(name string) Option {
	return func(c *config) {
		c.aead = name
	}
}

// WithRotation sets when the per-peer session key is replaced. Zero values
// mean no limit.
func WithRotation(maxMessages int, maxAge time.Duration) Option {
	return func(c *config) {
		c.policy = session.Policy{MaxMessages: maxMessages, MaxAge: maxAge}
	}
}

// WithKeyCache sets how many received session keys are kept per peer.
func WithKeyCache(size int) Option {
	return func(c *config) {
		c.keyCache = size
	}
}

// WithClock overrides the time source for envelope timestamps, message
// timestamps and rotation.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithTransport sets the transport used by Start.
func WithTransport(t Transport) Option {
	return func(c *config) {
		c.transport = t
	}
}

// WithRelay connects to a relay over WebSocket at url (ws:// or wss://).
func WithRelay(url string) Option {
	return func(c *config) {
		c.transport = delivery.NewWebSocketTransport(url)
	}
}

// WithBackoff sets the reconnect backoff. Zero fields take defaults.
func WithBackoff(b Backoff) Option {
	return func(c *config) {
		c.backoff = b
	}
}

// WithDedupCapacity bounds the number of remembered envelope fingerprints.
func WithDedupCapacity(n int) Option {
	return func(c *config) {
		c.dedupCapacity = n
	}
}

// WithStateHandler registers a callback for delivery channel state changes.
func WithStateHandler(fn func(ConnectionState)) Option {
	return func(c *config) {
		c.onState = fn
	}
}
