package vault

import (
	"encoding/binary"
	"fmt"

	"github.com/pqmsg/pqmsg/internal/crypto"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v2"
)

const (
	recordVersion = 1
	saltSize      = 16
)

// KDFParams are the Argon2id parameters of a sealed record.
type KDFParams struct {
	Time    uint32 `yaml:"time"`
	Memory  uint32 `yaml:"memory"`
	Threads uint8  `yaml:"threads"`
	Salt    string `yaml:"salt"`
}

// DefaultKDF holds the Argon2id cost used by Seal.
var DefaultKDF = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// Record is the persisted form of an identity.
type Record struct {
	Version      int        `yaml:"version"`
	DID          string     `yaml:"did"`
	KEMScheme    string     `yaml:"kem"`
	SigScheme    string     `yaml:"sig"`
	KEMPublicKey string     `yaml:"kem_public"`
	SigPublicKey string     `yaml:"sig_public"`
	KDF          *KDFParams `yaml:"kdf,omitempty"`
	Nonce        string     `yaml:"nonce,omitempty"`
	Secret       string     `yaml:"secret"`
}

// Sealed reports whether the private keys are encrypted.
func (r *Record) Sealed() bool {
	return r.KDF != nil
}

// Seal encodes id as a YAML record. With a non-empty passphrase the private
// keys are encrypted with ChaCha20-Poly1305 under an Argon2id key; the public
// fields are bound as associated data.
func Seal(id *Identity, passphrase []byte) ([]byte, error) {
	rec := Record{
		Version:      recordVersion,
		DID:          id.DID,
		KEMScheme:    id.KEMScheme,
		SigScheme:    id.SigScheme,
		KEMPublicKey: crypto.ToBase64URL(id.KEMPublicKey),
		SigPublicKey: crypto.ToBase64URL(id.SigPublicKey),
	}

	secret := packSecret(id.KEMPrivateKey, id.SigPrivateKey)
	defer crypto.Zero(secret)

	if len(passphrase) == 0 {
		rec.Secret = crypto.ToBase64URL(secret)
		return yaml.Marshal(&rec)
	}

	salt, err := crypto.RandomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	nonce, err := crypto.RandomBytes(chacha20poly1305.NonceSize)
	if err != nil {
		return nil, err
	}
	kdf := DefaultKDF
	kdf.Salt = crypto.ToBase64URL(salt)

	kek := argon2.IDKey(passphrase, salt, kdf.Time, kdf.Memory, kdf.Threads, chacha20poly1305.KeySize)
	defer crypto.Zero(kek)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}

	rec.KDF = &kdf
	rec.Nonce = crypto.ToBase64URL(nonce)
	rec.Secret = crypto.ToBase64URL(aead.Seal(nil, nonce, secret, rec.associatedData()))
	return yaml.Marshal(&rec)
}

// Open decodes a record produced by Seal. The DID binding and the key sizes
// are checked against the named schemes.
func Open(data, passphrase []byte) (*Identity, error) {
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecord, err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("%w: version %d", ErrRecord, rec.Version)
	}

	v, err := NewByName(rec.KEMScheme, rec.SigScheme)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecord, err)
	}

	pub := PublicIdentity{DID: rec.DID, KEMScheme: rec.KEMScheme, SigScheme: rec.SigScheme}
	if pub.KEMPublicKey, err = crypto.FromBase64URL(rec.KEMPublicKey); err != nil {
		return nil, fmt.Errorf("%w: kem_public: %v", ErrRecord, err)
	}
	if pub.SigPublicKey, err = crypto.FromBase64URL(rec.SigPublicKey); err != nil {
		return nil, fmt.Errorf("%w: sig_public: %v", ErrRecord, err)
	}
	if err := v.CheckPublic(&pub); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecord, err)
	}

	secret, err := crypto.FromBase64URL(rec.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: secret: %v", ErrRecord, err)
	}
	if rec.Sealed() {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		if secret, err = rec.open(passphrase, secret); err != nil {
			return nil, err
		}
	}
	defer crypto.Zero(secret)

	kemPriv, sigPriv, err := unpackSecret(secret)
	if err != nil {
		return nil, err
	}
	if len(kemPriv) != v.kem.PrivateKeySize() {
		return nil, fmt.Errorf("%w: kem private key is %d bytes", ErrRecord, len(kemPriv))
	}
	if len(sigPriv) != v.sig.PrivateKeySize() {
		return nil, fmt.Errorf("%w: signature private key is %d bytes", ErrRecord, len(sigPriv))
	}

	return &Identity{PublicIdentity: pub, KEMPrivateKey: kemPriv, SigPrivateKey: sigPriv}, nil
}

func (r *Record) open(passphrase, sealed []byte) ([]byte, error) {
	salt, err := crypto.FromBase64URL(r.KDF.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, fmt.Errorf("%w: bad salt", ErrRecord)
	}
	nonce, err := crypto.FromBase64URL(r.Nonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("%w: bad nonce", ErrRecord)
	}
	if r.KDF.Time == 0 || r.KDF.Memory == 0 || r.KDF.Threads == 0 {
		return nil, fmt.Errorf("%w: bad kdf parameters", ErrRecord)
	}

	kek := argon2.IDKey(passphrase, salt, r.KDF.Time, r.KDF.Memory, r.KDF.Threads, chacha20poly1305.KeySize)
	defer crypto.Zero(kek)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	secret, err := aead.Open(nil, nonce, sealed, r.associatedData())
	if err != nil {
		return nil, ErrPassphrase
	}
	return secret, nil
}

func (r *Record) associatedData() []byte {
	ad := fmt.Sprintf("pqmsg:identity:v%d|%s|%s|%s|%s|%s", r.Version, r.DID, r.KEMScheme, r.SigScheme, r.KEMPublicKey, r.SigPublicKey)
	return []byte(ad)
}

// packSecret lays out len(kem) (4 bytes BE) || kem || sig.
func packSecret(kemPriv, sigPriv []byte) []byte {
	out := make([]byte, 0, 4+len(kemPriv)+len(sigPriv))
	out = binary.BigEndian.AppendUint32(out, uint32(len(kemPriv)))
	out = append(out, kemPriv...)
	return append(out, sigPriv...)
}

func unpackSecret(secret []byte) ([]byte, []byte, error) {
	if len(secret) < 4 {
		return nil, nil, fmt.Errorf("%w: secret too short", ErrRecord)
	}
	n := binary.BigEndian.Uint32(secret)
	if uint64(n) > uint64(len(secret)-4) {
		return nil, nil, fmt.Errorf("%w: secret length", ErrRecord)
	}
	kemPriv := append([]byte(nil), secret[4:4+n]...)
	sigPriv := append([]byte(nil), secret[4+n:]...)
	return kemPriv, sigPriv, nil
}
