package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pqmsg/pqmsg/internal/envelope"
)

func TestDeriveKey(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 32)

	a, err := DeriveKey(secret, nil, []byte("info"), 32)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	b, _ := DeriveKey(secret, make([]byte, 64), []byte("info"), 32)
	if !bytes.Equal(a, b) {
		t.Error("empty salt should equal a zero salt of hash length")
	}
	c, _ := DeriveKey(secret, nil, []byte("other"), 32)
	if bytes.Equal(a, c) {
		t.Error("different info produced the same key")
	}

	for _, length := range []int{0, -1, 255*64 + 1} {
		if _, err := DeriveKey(secret, nil, nil, length); !errors.Is(err, ErrEncryption) {
			t.Errorf("DeriveKey(length %d) error = %v, want ErrEncryption", length, err)
		}
	}
	if _, err := DeriveKey(nil, nil, nil, 32); !errors.Is(err, ErrEncryption) {
		t.Errorf("DeriveKey(empty secret) error = %v, want ErrEncryption", err)
	}
}

func TestDeriveAEADKey_BindsHeader(t *testing.T) {
	ss := bytes.Repeat([]byte{1}, 32)
	ek := bytes.Repeat([]byte{2}, 64)

	base, err := deriveAEADKey(ss, ek, envelope.AlgAES256GCM)
	if err != nil {
		t.Fatal(err)
	}
	if len(base) != AEADKeySize {
		t.Errorf("key length = %d, want %d", len(base), AEADKeySize)
	}

	otherAlg, _ := deriveAEADKey(ss, ek, envelope.AlgChaCha20Poly1305)
	otherEK, _ := deriveAEADKey(ss, append([]byte{3}, ek[1:]...), envelope.AlgAES256GCM)
	if bytes.Equal(base, otherAlg) || bytes.Equal(base, otherEK) {
		t.Error("AEAD key does not depend on the algorithm tag and encapsulated key")
	}
}
