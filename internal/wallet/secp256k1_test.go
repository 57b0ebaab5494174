package wallet

import (
	"encoding/hex"
	"errors"
	"testing"
)

// BIP32 test vector 1
func TestDeriveSecp256k1Vector(t *testing.T) {
	seed := mustHex(t, "000102030405060708090a0b0c0d0e0f")

	cases := []struct {
		path string
		priv string
		pub  string
	}{
		{"m", "e8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c8436b35", "0339a36013301597daef41fbe593a02cc513d0b55527ec2df1050e2e8ff49c85c2"},
		{"m/0'", "edb2e14f9ee77d26dd93b4ecede8d16ed408ce149b6cd80b0715a2d911a0afea", "035a784662a4a20a65bf6aab9ae98a6c068a81c52e4b032c0fb5400c706cfccc56"},
		{"m/0'/1", "3c6cb8d0f6a264c91ea8b5030fadaa8e538b020f0a387421a12de9319dc93368", "03501e454bf00751f24b1b489aa925215d66af2234e3891c3b21a52bedb3cd711c"},
	}
	for _, c := range cases {
		key, err := DeriveSecp256k1(seed, c.path)
		if err != nil {
			t.Fatalf("DeriveSecp256k1(%s): %v", c.path, err)
		}
		if got := hex.EncodeToString(key.PrivateKey); got != c.priv {
			t.Fatalf("%s: private key got %s want %s", c.path, got, c.priv)
		}
		if got := hex.EncodeToString(key.PublicKey); got != c.pub {
			t.Fatalf("%s: public key got %s want %s", c.path, got, c.pub)
		}
	}
}

func TestDeriveSecp256k1InvalidPath(t *testing.T) {
	seed := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	if _, err := DeriveSecp256k1(seed, "x/0"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

// BIP173 example address
func TestP2WPKHAddress(t *testing.T) {
	pub := mustHex(t, "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	addr, err := P2WPKHAddress(pub)
	if err != nil {
		t.Fatalf("P2WPKHAddress: %v", err)
	}
	if addr != "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4" {
		t.Fatalf("unexpected address %s", addr)
	}

	if _, err := P2WPKHAddress([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for malformed public key")
	}
}
