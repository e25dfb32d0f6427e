package crypto

import (
	"fmt"
	"sort"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// KEMProvider is a key encapsulation mechanism working on raw key bytes.
// Implementations are selected by name with [NewKEM].
type KEMProvider interface {
	// Name returns the scheme name, e.g. "ML-KEM-768".
	Name() string
	// GenerateKeyPair returns a fresh keypair. Fails with ErrEntropy when
	// the random source is unavailable.
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
	// Encapsulate produces a shared secret and its encapsulation for publicKey.
	Encapsulate(publicKey []byte) (encapsulatedKey, sharedSecret []byte, err error)
	// Decapsulate recovers the shared secret from encapsulatedKey.
	Decapsulate(privateKey, encapsulatedKey []byte) ([]byte, error)
	// PublicKeySize returns the size of an encoded public key.
	PublicKeySize() int
	// PrivateKeySize returns the size of an encoded private key.
	PrivateKeySize() int
	// CiphertextSize returns the size of an encapsulated key.
	CiphertextSize() int
}

var kemSchemes = map[string]func() kem.Scheme{
	"ML-KEM-512":  mlkem512.Scheme,
	"ML-KEM-768":  mlkem768.Scheme,
	"ML-KEM-1024": mlkem1024.Scheme,
}

// NewKEM returns the KEM provider registered under name.
func NewKEM(name string) (KEMProvider, error) {
	scheme, ok := kemSchemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: kem %q", ErrUnknownScheme, name)
	}
	return &circlKEM{scheme: scheme()}, nil
}

// KEMNames lists the registered KEM names in sorted order.
func KEMNames() []string {
	names := make([]string, 0, len(kemSchemes))
	for name := range kemSchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// circlKEM adapts a circl kem.Scheme. All randomness is drawn from the
// package random source through the deterministic circl entry points.
type circlKEM struct {
	scheme kem.Scheme
}

func (k *circlKEM) Name() string { return k.scheme.Name() }
func (k *circlKEM) PublicKeySize() int { return k.scheme.PublicKeySize() }
func (k *circlKEM) PrivateKeySize() int { return k.scheme.PrivateKeySize() }
func (k *circlKEM) CiphertextSize() int { return k.scheme.CiphertextSize() }

func (k *circlKEM) GenerateKeyPair() ([]byte, []byte, error) {
	seed, err := RandomBytes(k.scheme.SeedSize())
	if err != nil {
		return nil, nil, err
	}
	defer Zero(seed)

	pub, priv := k.scheme.DeriveKeyPair(seed)

	// MarshalBinary never fails for keys the scheme derived itself
	pubBytes, _ := pub.MarshalBinary()
	privBytes, _ := priv.MarshalBinary()
	return pubBytes, privBytes, nil
}

func (k *circlKEM) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != k.scheme.PublicKeySize() {
		return nil, nil, fmt.Errorf("%w: %w: got %d bytes, want %d", ErrEncryption, ErrInvalidPublicKey, len(publicKey), k.scheme.PublicKeySize())
	}
	pub, err := k.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w: %v", ErrEncryption, ErrInvalidPublicKey, err)
	}

	seed, err := RandomBytes(k.scheme.EncapsulationSeedSize())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	defer Zero(seed)

	ct, ss, err := k.scheme.EncapsulateDeterministically(pub, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encapsulate: %v", ErrEncryption, err)
	}
	return ct, ss, nil
}

func (k *circlKEM) Decapsulate(privateKey, encapsulatedKey []byte) ([]byte, error) {
	if len(encapsulatedKey) != k.scheme.CiphertextSize() {
		return nil, fmt.Errorf("%w: encapsulated key is %d bytes, want %d", ErrKeyMismatch, len(encapsulatedKey), k.scheme.CiphertextSize())
	}
	if len(privateKey) != k.scheme.PrivateKeySize() {
		return nil, fmt.Errorf("%w: %w: got %d bytes, want %d", ErrKeyMismatch, ErrInvalidPrivateKey, len(privateKey), k.scheme.PrivateKeySize())
	}

	priv, err := k.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrKeyMismatch, ErrInvalidPrivateKey, err)
	}

	ss, err := k.scheme.Decapsulate(priv, encapsulatedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	return ss, nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
