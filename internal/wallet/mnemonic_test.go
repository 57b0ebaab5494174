package wallet

import (
	"bytes"
	"strings"
	"testing"
)

func TestMnemonicRoundTrip(t *testing.T) {
	seed := make([]byte, SeedSize)
	words, err := SeedToMnemonic(seed)
	if err != nil {
		t.Fatalf("SeedToMnemonic: %v", err)
	}
	want := strings.Repeat("abandon ", 23) + "art"
	if words != want {
		t.Fatalf("unexpected mnemonic %q", words)
	}

	got, err := MnemonicToSeed("  " + strings.ReplaceAll(words, " ", "  ") + "\n")
	if err != nil {
		t.Fatalf("MnemonicToSeed: %v", err)
	}
	if !bytes.Equal(got, seed) {
		t.Fatal("seed mismatch after round trip")
	}

	fresh, err := NewEd25519Seed()
	if err != nil {
		t.Fatalf("NewEd25519Seed: %v", err)
	}
	words, err = SeedToMnemonic(fresh)
	if err != nil {
		t.Fatalf("SeedToMnemonic: %v", err)
	}
	got, err = MnemonicToSeed(words)
	if err != nil || !bytes.Equal(got, fresh) {
		t.Fatalf("random seed round trip failed: %v", err)
	}
}

func TestMnemonicRejects(t *testing.T) {
	bad := strings.Repeat("abandon ", 23) + "abandon"
	if _, err := MnemonicToSeed(bad); err == nil {
		t.Fatal("expected checksum error")
	}
	// 12-word mnemonic encodes 16 bytes, not a full seed
	short := strings.Repeat("abandon ", 11) + "about"
	if _, err := MnemonicToSeed(short); err == nil {
		t.Fatal("expected length error")
	}
	if _, err := SeedToMnemonic([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected seed length error")
	}
}
