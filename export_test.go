package pqmsg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pqmsg/pqmsg/internal/crypto"
)

func TestContactCard_RoundTrip(t *testing.T) {
	alice, _ := newMessenger(t)
	bob, _ := newMessenger(t)

	card, err := alice.ExportCard("alice")
	if err != nil {
		t.Fatalf("ExportCard() error = %v", err)
	}
	data, err := card.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") || strings.Contains(string(data), "private") {
		t.Error("card leaks private material")
	}

	parsed, err := ParseContactCard(data)
	if err != nil {
		t.Fatalf("ParseContactCard() error = %v", err)
	}
	contact, err := bob.ImportCard(parsed, "")
	if err != nil {
		t.Fatalf("ImportCard() error = %v", err)
	}
	if contact.DID != alice.DID() {
		t.Errorf("DID = %s, want %s", contact.DID, alice.DID())
	}
	if contact.Name != "alice" {
		t.Errorf("Name = %s, want the card name", contact.Name)
	}

	stored, err := bob.Contact(alice.DID())
	if err != nil {
		t.Fatalf("Contact() error = %v", err)
	}
	if stored.Name != "alice" {
		t.Errorf("stored Name = %s", stored.Name)
	}
}

func TestContactCard_Validate(t *testing.T) {
	alice, _ := newMessenger(t)
	bob, _ := newMessenger(t)
	valid, _ := alice.ExportCard("alice")
	other, _ := bob.ExportCard("bob")

	tests := []struct {
		name   string
		mutate func(c *ContactCard)
	}{
		{"version", func(c *ContactCard) { c.Version = 2 }},
		{"missing scheme", func(c *ContactCard) { c.KEMScheme = "" }},
		{"bad kem encoding", func(c *ContactCard) { c.KEMPublicKey = "!!!" }},
		{"empty sig key", func(c *ContactCard) { c.SigPublicKey = "" }},
		{"truncated kem key", func(c *ContactCard) { c.KEMPublicKey = c.KEMPublicKey[:64] }},
		{"swapped signature key", func(c *ContactCard) { c.SigPublicKey = other.SigPublicKey }},
		{"malformed did", func(c *ContactCard) { c.DID = "did:web:example.com" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *valid
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidCard) {
				t.Errorf("Validate() error = %v, want ErrInvalidCard", err)
			}
		})
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Validate(valid) error = %v", err)
	}

	// Keys pasted with line breaks still decode.
	wrapped := *valid
	wrapped.KEMPublicKey = valid.KEMPublicKey[:100] + "\n" + valid.KEMPublicKey[100:]
	if err := wrapped.Validate(); err != nil {
		t.Errorf("Validate(wrapped key) error = %v", err)
	}
}

func TestParseContactCard_Invalid(t *testing.T) {
	inputs := map[string]string{
		"not yaml":    "\t:::",
		"empty":       "",
		"wrong types": "version: [1]",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseContactCard([]byte(in)); !errors.Is(err, ErrInvalidCard) {
				t.Errorf("ParseContactCard() error = %v, want ErrInvalidCard", err)
			}
		})
	}
}

func TestImportCard_SchemeMismatch(t *testing.T) {
	alice, _ := newMessenger(t)
	small, _ := newMessenger(t, WithKEM(KEMMLKEM512))

	card, _ := small.ExportCard("small")
	if _, err := alice.ImportCard(card, ""); !errors.Is(err, ErrVerification) {
		t.Errorf("ImportCard() error = %v, want ErrVerification", err)
	}
	if _, err := alice.ImportCard(nil, ""); !errors.Is(err, ErrInvalidCard) {
		t.Errorf("ImportCard(nil) error = %v, want ErrInvalidCard", err)
	}
}

func TestCardFiles(t *testing.T) {
	alice, _ := newMessenger(t)
	bob, _ := newMessenger(t)
	path := filepath.Join(t.TempDir(), "alice.yaml")

	if err := alice.ExportCardToFile("alice", path); err != nil {
		t.Fatalf("ExportCardToFile() error = %v", err)
	}
	contact, err := bob.ImportCardFromFile(path, "friend")
	if err != nil {
		t.Fatalf("ImportCardFromFile() error = %v", err)
	}
	if contact.Name != "friend" {
		t.Errorf("Name = %s, want the override", contact.Name)
	}

	if _, err := bob.ImportCardFromFile(filepath.Join(t.TempDir(), "missing.yaml"), ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ImportCardFromFile(missing) error = %v", err)
	}
}

func TestNewContactCard_Encoding(t *testing.T) {
	pub := PublicIdentity{
		DID:          "did:pqm:x",
		KEMScheme:    KEMMLKEM768,
		SigScheme:    SignatureMLDSA65,
		KEMPublicKey: []byte{1, 2, 3},
		SigPublicKey: []byte{4, 5, 6},
	}
	card := NewContactCard(pub, "x")
	if card.KEMPublicKey != crypto.ToBase64URL(pub.KEMPublicKey) {
		t.Errorf("KEMPublicKey = %s", card.KEMPublicKey)
	}
	if card.Version != CardVersion {
		t.Errorf("Version = %d", card.Version)
	}
}
