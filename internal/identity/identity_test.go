package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateDerivesConsistentAddress(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if id.Address.IsZero() {
		t.Fatal("expected non-zero address")
	}
	want := AddressFromPublicKey(id.PublicKey[:])
	if id.Address != want {
		t.Fatalf("Address = %v, want %v", id.Address, want)
	}
}

func TestLoadOrGenerateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.key")

	first, err := LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("LoadOrGenerate (create): %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected key file to be written: %v", err)
	}

	second, err := LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("LoadOrGenerate (reload): %v", err)
	}
	if first.Address != second.Address || first.PublicKey != second.PublicKey {
		t.Fatal("expected reloaded identity to match the generated one")
	}
}

func TestAddressFromHexRoundTrip(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	parsed, err := AddressFromHex(id.Address.String())
	if err != nil {
		t.Fatalf("AddressFromHex: %v", err)
	}
	if parsed != id.Address {
		t.Fatalf("parsed = %v, want %v", parsed, id.Address)
	}
}

func TestAddressFromHexRejectsWrongLength(t *testing.T) {
	if _, err := AddressFromHex("abcd"); err == nil {
		t.Fatal("expected error for short hex address")
	}
}

func TestGenerateMACIsLocallyAdministeredAndDeterministic(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	mac := id.Address.GenerateMAC()
	if mac[0]&0x02 == 0 {
		t.Fatalf("expected locally-administered bit set, got %v", mac)
	}
	if mac[0]&0x01 != 0 {
		t.Fatalf("expected unicast bit clear, got %v", mac)
	}
	if again := id.Address.GenerateMAC(); again.String() != mac.String() {
		t.Fatalf("GenerateMAC not deterministic: %v != %v", mac, again)
	}
}
