package crypto

import (
	"fmt"
	"sort"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
)

// SignatureContext is passed to schemes that support signing contexts.
const SignatureContext = "pqmsg"

// SignatureProvider signs and verifies messages with raw key bytes.
// Implementations are selected by name with [NewSignature].
type SignatureProvider interface {
	// Name returns the scheme name, e.g. "ML-DSA-65".
	Name() string
	// GenerateKeyPair returns a fresh keypair. Fails with ErrEntropy when
	// the random source is unavailable.
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
	// Sign signs message with privateKey.
	Sign(privateKey, message []byte) ([]byte, error)
	// Verify reports whether signature is valid. It never panics or
	// returns an error for bad input: anything unverifiable is false.
	Verify(publicKey, message, signature []byte) bool
	// PublicKeySize returns the size of an encoded public key.
	PublicKeySize() int
	// PrivateKeySize returns the size of an encoded private key.
	PrivateKeySize() int
	// SignatureSize returns the size of a signature.
	SignatureSize() int
}

var signatureSchemes = map[string]func() sign.Scheme{
	"ML-DSA-44": mldsa44.Scheme,
	"ML-DSA-65": mldsa65.Scheme,
	"ML-DSA-87": mldsa87.Scheme,
}

// NewSignature returns the signature provider registered under name.
func NewSignature(name string) (SignatureProvider, error) {
	scheme, ok := signatureSchemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: signature %q", ErrUnknownScheme, name)
	}
	return &circlSigner{scheme: scheme()}, nil
}

// SignatureNames lists the registered signature scheme names in sorted order.
func SignatureNames() []string {
	names := make([]string, 0, len(signatureSchemes))
	for name := range signatureSchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type circlSigner struct {
	scheme sign.Scheme
}

func (s *circlSigner) Name() string { return s.scheme.Name() }
func (s *circlSigner) PublicKeySize() int { return s.scheme.PublicKeySize() }
func (s *circlSigner) PrivateKeySize() int { return s.scheme.PrivateKeySize() }
func (s *circlSigner) SignatureSize() int { return s.scheme.SignatureSize() }

func (s *circlSigner) opts() *sign.SignatureOpts {
	if s.scheme.SupportsContext() {
		return &sign.SignatureOpts{Context: SignatureContext}
	}
	return nil
}

func (s *circlSigner) GenerateKeyPair() ([]byte, []byte, error) {
	seed, err := RandomBytes(s.scheme.SeedSize())
	if err != nil {
		return nil, nil, err
	}
	defer Zero(seed)

	pub, priv := s.scheme.DeriveKey(seed)

	pubBytes, _ := pub.MarshalBinary()
	privBytes, _ := priv.MarshalBinary()
	return pubBytes, privBytes, nil
}

func (s *circlSigner) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != s.scheme.PrivateKeySize() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPrivateKey, len(privateKey), s.scheme.PrivateKeySize())
	}
	priv, err := s.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return s.scheme.Sign(priv, message, s.opts()), nil
}

func (s *circlSigner) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != s.scheme.PublicKeySize() || len(signature) != s.scheme.SignatureSize() {
		return false
	}
	pub, err := s.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return false
	}
	return s.scheme.Verify(pub, message, signature, s.opts())
}
