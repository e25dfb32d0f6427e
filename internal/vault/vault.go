package vault

import (
	"bytes"
	"fmt"

	"github.com/pqmsg/pqmsg/internal/crypto"
)

// KeyPair is a public/private key pair in the encoding of its scheme.
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// PublicIdentity is the shareable half of an identity. It is what peers
// exchange as a contact card.
type PublicIdentity struct {
	DID          string
	KEMScheme    string
	SigScheme    string
	KEMPublicKey []byte
	SigPublicKey []byte
}

// Verify checks that the DID is bound to the signature key.
func (p *PublicIdentity) Verify() error {
	return VerifyDID(p.DID, p.SigScheme, p.SigPublicKey)
}

// Identity is the local user's long-term key material.
type Identity struct {
	PublicIdentity

	KEMPrivateKey []byte
	SigPrivateKey []byte
}

// Public returns a copy of the public half of the identity.
func (id *Identity) Public() PublicIdentity {
	return PublicIdentity{
		DID:          id.DID,
		KEMScheme:    id.KEMScheme,
		SigScheme:    id.SigScheme,
		KEMPublicKey: bytes.Clone(id.KEMPublicKey),
		SigPublicKey: bytes.Clone(id.SigPublicKey),
	}
}

// Destroy zeroes the private keys. The identity is unusable afterwards.
func (id *Identity) Destroy() {
	crypto.Zero(id.KEMPrivateKey)
	crypto.Zero(id.SigPrivateKey)
	id.KEMPrivateKey = nil
	id.SigPrivateKey = nil
}

// Vault generates key material for a fixed pair of KEM and signature schemes.
type Vault struct {
	kem crypto.KEMProvider
	sig crypto.SignatureProvider
}

// New returns a vault using the given providers.
func New(kem crypto.KEMProvider, sig crypto.SignatureProvider) *Vault {
	return &Vault{kem: kem, sig: sig}
}

// NewByName returns a vault for the named schemes.
func NewByName(kemScheme, sigScheme string) (*Vault, error) {
	kem, err := crypto.NewKEM(kemScheme)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.NewSignature(sigScheme)
	if err != nil {
		return nil, err
	}
	return New(kem, sig), nil
}

// KEM returns the vault's KEM provider.
func (v *Vault) KEM() crypto.KEMProvider { return v.kem }

// Signature returns the vault's signature provider.
func (v *Vault) Signature() crypto.SignatureProvider { return v.sig }

// GenerateKemKeypair returns a fresh KEM keypair. It fails with an error
// wrapping crypto.ErrEntropy if the random source is unavailable.
func (v *Vault) GenerateKemKeypair() (KeyPair, error) {
	pub, priv, err := v.kem.GenerateKeyPair()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate %s keypair: %w", v.kem.Name(), err)
	}
	return KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// GenerateSignatureKeypair returns a fresh signature keypair, independent of
// any KEM keypair.
func (v *Vault) GenerateSignatureKeypair() (KeyPair, error) {
	pub, priv, err := v.sig.GenerateKeyPair()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate %s keypair: %w", v.sig.Name(), err)
	}
	return KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// DeriveDID derives the DID for a signature public key of the vault's scheme.
func (v *Vault) DeriveDID(sigPublicKey []byte) string {
	return DeriveDID(v.sig.Name(), sigPublicKey)
}

// NewIdentity generates both keypairs and derives the identity's DID.
func (v *Vault) NewIdentity() (*Identity, error) {
	kp, err := v.GenerateKemKeypair()
	if err != nil {
		return nil, err
	}
	sp, err := v.GenerateSignatureKeypair()
	if err != nil {
		crypto.Zero(kp.PrivateKey)
		return nil, err
	}

	return &Identity{
		PublicIdentity: PublicIdentity{
			DID:          v.DeriveDID(sp.PublicKey),
			KEMScheme:    v.kem.Name(),
			SigScheme:    v.sig.Name(),
			KEMPublicKey: kp.PublicKey,
			SigPublicKey: sp.PublicKey,
		},
		KEMPrivateKey: kp.PrivateKey,
		SigPrivateKey: sp.PrivateKey,
	}, nil
}

// CheckPublic validates a public identity against the vault's schemes.
func (v *Vault) CheckPublic(p *PublicIdentity) error {
	if p.KEMScheme != v.kem.Name() || p.SigScheme != v.sig.Name() {
		return fmt.Errorf("%w: schemes %s/%s, want %s/%s", crypto.ErrUnknownScheme, p.KEMScheme, p.SigScheme, v.kem.Name(), v.sig.Name())
	}
	if len(p.KEMPublicKey) != v.kem.PublicKeySize() {
		return fmt.Errorf("%w: kem key is %d bytes", crypto.ErrInvalidPublicKey, len(p.KEMPublicKey))
	}
	if len(p.SigPublicKey) != v.sig.PublicKeySize() {
		return fmt.Errorf("%w: signature key is %d bytes", crypto.ErrInvalidPublicKey, len(p.SigPublicKey))
	}
	return p.Verify()
}
