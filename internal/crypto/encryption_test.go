package crypto2

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

var testKDFParams = KDFParams{
	ScryptN:       1 << 10,
	ScryptR:       8,
	ScryptP:       1,
	Argon2Time:    1,
	Argon2Memory:  1024,
	Argon2Threads: 1,
}

func TestSealOpenGCM(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	aad := []byte("domain")

	ct, err := SealGCM([]byte("seed material"), key, nonce, aad)
	if err != nil {
		t.Fatalf("SealGCM: %v", err)
	}
	pt, err := OpenGCM(ct, key, nonce, aad)
	if err != nil {
		t.Fatalf("OpenGCM: %v", err)
	}
	if string(pt) != "seed material" {
		t.Fatalf("unexpected plaintext %q", pt)
	}

	if _, err := OpenGCM(ct, key, nonce, []byte("other")); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("wrong aad: expected ErrDecryptionFailed, got %v", err)
	}
	if _, err := OpenGCM(ct, key, nonce, nil); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("missing aad: expected ErrDecryptionFailed, got %v", err)
	}

	wrong := bytes.Repeat([]byte{8}, KeySize)
	if _, err := OpenGCM(ct, wrong, nonce, aad); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("wrong key: expected ErrDecryptionFailed, got %v", err)
	}

	for i := range ct {
		tampered := append([]byte(nil), ct...)
		tampered[i] ^= 0x01
		if _, err := OpenGCM(tampered, key, nonce, aad); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("tampered byte %d: expected ErrDecryptionFailed, got %v", i, err)
		}
	}
}

func TestSealGCMRejectsBadInput(t *testing.T) {
	nonce := make([]byte, NonceSize)
	if _, err := SealGCM([]byte("x"), []byte("short"), nonce, nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	key := make([]byte, KeySize)
	if _, err := OpenGCM([]byte{1, 2}, key, nonce, nil); !errors.Is(err, ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestDeriveKEK(t *testing.T) {
	secret := bytes.Repeat([]byte{1}, 32)
	a := DeriveKEK([]byte("NS:COSE/Derive.KEK"), secret)
	b := DeriveKEK([]byte("NS:COSE/Derive.KEK"), secret)
	c := DeriveKEK([]byte("custom"), secret)
	if len(a) != KeySize {
		t.Fatalf("unexpected KEK length %d", len(a))
	}
	if !bytes.Equal(a, b) {
		t.Fatal("KEK derivation is not deterministic")
	}
	if bytes.Equal(a, c) {
		t.Fatal("different passphrases produced the same KEK")
	}
}

func TestTransferKey(t *testing.T) {
	// SHA3-256("")
	got := hex.EncodeToString(TransferKey(""))
	if got != "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a" {
		t.Fatalf("unexpected transfer key %s", got)
	}
}

func TestGenerateEncryptKeyWithParams(t *testing.T) {
	salt := Hash256([]byte("salt"))
	a, err := GenerateEncryptKeyWithParams([]byte("secret"), salt, testKDFParams)
	if err != nil {
		t.Fatalf("GenerateEncryptKeyWithParams: %v", err)
	}
	b, err := GenerateEncryptKeyWithParams([]byte("secret"), salt, testKDFParams)
	if err != nil {
		t.Fatalf("GenerateEncryptKeyWithParams: %v", err)
	}
	if len(a) != Argon2KeyLen || !bytes.Equal(a, b) {
		t.Fatal("key stretching must be deterministic and 32 bytes")
	}
}
