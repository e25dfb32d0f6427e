package crypto

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"
)

func TestNewKEM(t *testing.T) {
	sizes := map[string][3]int{
		"ML-KEM-512":  {800, 1632, 768},
		"ML-KEM-768":  {1184, 2400, 1088},
		"ML-KEM-1024": {1568, 3168, 1568},
	}

	for _, name := range KEMNames() {
		t.Run(name, func(t *testing.T) {
			k, err := NewKEM(name)
			if err != nil {
				t.Fatalf("NewKEM() error = %v", err)
			}
			if k.Name() != name {
				t.Errorf("Name() = %s, want %s", k.Name(), name)
			}
			want := sizes[name]
			if k.PublicKeySize() != want[0] || k.PrivateKeySize() != want[1] || k.CiphertextSize() != want[2] {
				t.Errorf("sizes = %d/%d/%d, want %v", k.PublicKeySize(), k.PrivateKeySize(), k.CiphertextSize(), want)
			}
		})
	}

	if _, err := NewKEM("Kyber-1"); !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("expected ErrUnknownScheme, got %v", err)
	}
}

func TestKEM_EncapsulateDecapsulate(t *testing.T) {
	for _, name := range KEMNames() {
		t.Run(name, func(t *testing.T) {
			k, _ := NewKEM(name)
			pub, priv, err := k.GenerateKeyPair()
			if err != nil {
				t.Fatalf("GenerateKeyPair() error = %v", err)
			}

			ct, ss, err := k.Encapsulate(pub)
			if err != nil {
				t.Fatalf("Encapsulate() error = %v", err)
			}
			if len(ct) != k.CiphertextSize() {
				t.Errorf("ciphertext size = %d, want %d", len(ct), k.CiphertextSize())
			}

			got, err := k.Decapsulate(priv, ct)
			if err != nil {
				t.Fatalf("Decapsulate() error = %v", err)
			}
			if !bytes.Equal(got, ss) {
				t.Error("decapsulated secret does not match")
			}
		})
	}
}

func TestKEM_GenerateKeyPair_Uniqueness(t *testing.T) {
	k, _ := NewKEM(DefaultKEM)
	pub1, priv1, err := k.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	pub2, priv2, err := k.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(pub1, pub2) || bytes.Equal(priv1, priv2) {
		t.Error("generated keypairs are identical")
	}
}

func TestKEM_EntropyFailure(t *testing.T) {
	k, _ := NewKEM(DefaultKEM)
	pub, _, err := k.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	restore := SetRandReaderForTesting(iotest.ErrReader(errors.New("no entropy")))
	defer restore()

	if _, _, err := k.GenerateKeyPair(); !errors.Is(err, ErrEntropy) {
		t.Errorf("GenerateKeyPair: expected ErrEntropy, got %v", err)
	}
	if _, _, err := k.Encapsulate(pub); !errors.Is(err, ErrEntropy) {
		t.Errorf("Encapsulate: expected ErrEntropy, got %v", err)
	}
}

func TestKEM_InvalidInputs(t *testing.T) {
	k, _ := NewKEM(DefaultKEM)
	pub, priv, err := k.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	ct, _, err := k.Encapsulate(pub)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := k.Encapsulate(pub[:100]); !errors.Is(err, ErrEncryption) {
		t.Errorf("short public key: expected ErrEncryption, got %v", err)
	}
	if _, err := k.Decapsulate(priv, ct[:100]); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("short ciphertext: expected ErrKeyMismatch, got %v", err)
	}
	if _, err := k.Decapsulate(priv[:100], ct); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("short private key: expected ErrKeyMismatch, got %v", err)
	}
}
