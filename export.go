package pqmsg

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pqmsg/pqmsg/internal/crypto"
	"github.com/pqmsg/pqmsg/internal/vault"
	"gopkg.in/yaml.v2"
)

// CardVersion is the current contact card format version.
const CardVersion = 1

// ErrInvalidCard is returned when a contact card cannot be parsed.
var ErrInvalidCard = errors.New("invalid contact card")

// ContactCard is the shareable form of a public identity. It holds no
// private key material.
type ContactCard struct {
	// Version is the card format version. MUST be 1.
	Version int `yaml:"version"`
	// DID is the identity's DID. It must match the signature key.
	DID string `yaml:"did"`
	// Name is a display name suggested by the owner.
	Name string `yaml:"name,omitempty"`
	// KEMScheme names the key encapsulation mechanism, e.g. ML-KEM-768.
	KEMScheme string `yaml:"kem"`
	// SigScheme names the signature scheme, e.g. ML-DSA-65.
	SigScheme string `yaml:"sig"`
	// KEMPublicKey is the KEM public key (base64url).
	KEMPublicKey string `yaml:"kem_public"`
	// SigPublicKey is the signature public key (base64url).
	SigPublicKey string `yaml:"sig_public"`
	// ExportedAt is informational only.
	ExportedAt time.Time `yaml:"exported_at"`
}

// Validate checks the card's version, encodings and DID binding. Scheme
// compatibility is checked when the card is added as a contact.
func (c *ContactCard) Validate() error {
	if c.Version != CardVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidCard, c.Version, CardVersion)
	}
	if c.KEMScheme == "" || c.SigScheme == "" {
		return fmt.Errorf("%w: kem and sig schemes are required", ErrInvalidCard)
	}
	pub, err := c.decode()
	if err != nil {
		return err
	}
	if err := pub.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCard, err)
	}
	return nil
}

// decode parses the keys. Sizes are checked for registered schemes; an
// unknown scheme is rejected later by the vault.
func (c *ContactCard) decode() (PublicIdentity, error) {
	var kemSize, sigSize int
	if k, err := crypto.NewKEM(c.KEMScheme); err == nil {
		kemSize = k.PublicKeySize()
	}
	if s, err := crypto.NewSignature(c.SigScheme); err == nil {
		sigSize = s.PublicKeySize()
	}

	kemPub, err := crypto.DecodeKeyText(c.KEMPublicKey, kemSize)
	if err != nil {
		return PublicIdentity{}, fmt.Errorf("%w: kem_public: %w", ErrInvalidCard, err)
	}
	sigPub, err := crypto.DecodeKeyText(c.SigPublicKey, sigSize)
	if err != nil {
		return PublicIdentity{}, fmt.Errorf("%w: sig_public: %w", ErrInvalidCard, err)
	}
	return PublicIdentity{
		DID:          c.DID,
		KEMScheme:    c.KEMScheme,
		SigScheme:    c.SigScheme,
		KEMPublicKey: kemPub,
		SigPublicKey: sigPub,
	}, nil
}

// PublicIdentity returns the validated identity carried by the card.
func (c *ContactCard) PublicIdentity() (PublicIdentity, error) {
	if err := c.Validate(); err != nil {
		return PublicIdentity{}, err
	}
	return c.decode()
}

// Marshal encodes the card as YAML.
func (c *ContactCard) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseContactCard decodes and validates a YAML contact card.
func ParseContactCard(data []byte) (*ContactCard, error) {
	var c ContactCard
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCard, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// NewContactCard returns the card for pub.
func NewContactCard(pub PublicIdentity, name string) *ContactCard {
	return &ContactCard{
		Version:      CardVersion,
		DID:          pub.DID,
		Name:         name,
		KEMScheme:    pub.KEMScheme,
		SigScheme:    pub.SigScheme,
		KEMPublicKey: crypto.ToBase64URL(pub.KEMPublicKey),
		SigPublicKey: crypto.ToBase64URL(pub.SigPublicKey),
		ExportedAt:   time.Now().UTC(),
	}
}

// ExportCard returns the contact card of the local identity.
func (m *Messenger) ExportCard(name string) (*ContactCard, error) {
	pub, err := m.Identity()
	if err != nil {
		return nil, err
	}
	return NewContactCard(pub, name), nil
}

// ImportCard adds the card's identity as a contact. An empty name falls back
// to the name on the card.
func (m *Messenger) ImportCard(card *ContactCard, name string) (Contact, error) {
	if card == nil {
		return Contact{}, fmt.Errorf("%w: card cannot be nil", ErrInvalidCard)
	}
	pub, err := card.PublicIdentity()
	if err != nil {
		if errors.Is(err, vault.ErrDIDMismatch) || errors.Is(err, vault.ErrInvalidDID) {
			return Contact{}, &VerificationError{Reason: "contact", Err: err}
		}
		return Contact{}, err
	}
	if name == "" {
		name = card.Name
	}
	return m.AddContact(pub, name)
}

// ExportCardToFile writes the local contact card to a YAML file.
func (m *Messenger) ExportCardToFile(name, filePath string) error {
	card, err := m.ExportCard(name)
	if err != nil {
		return err
	}

	data, err := card.Marshal()
	if err != nil {
		return fmt.Errorf("marshal card: %w", err) //coverage:ignore
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// ImportCardFromFile reads a YAML contact card and adds it as a contact.
func (m *Messenger) ImportCardFromFile(filePath, name string) (Contact, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Contact{}, fmt.Errorf("read file: %w", err)
	}

	card, err := ParseContactCard(data)
	if err != nil {
		return Contact{}, err
	}

	return m.ImportCard(card, name)
}
