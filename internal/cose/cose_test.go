package cose

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	crypto2 "ns-keys/internal/crypto"
)

func testSeed() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestKeyDeterministicEncoding(t *testing.T) {
	k, err := NewEd25519PublicKey(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewEd25519PublicKey: %v", err)
	}
	enc, err := k.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	want := "a401010327200621582000" + hex.EncodeToString(make([]byte, 31))
	if got := hex.EncodeToString(enc); got != want {
		t.Fatalf("unexpected encoding\n got %s\nwant %s", got, want)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	k, err := NewEd25519Key(testSeed())
	if err != nil {
		t.Fatalf("NewEd25519Key: %v", err)
	}
	pub, err := k.Ed25519PublicKey()
	if err != nil {
		t.Fatalf("Ed25519PublicKey: %v", err)
	}
	k.Kid = pub
	k.KeyOps = []int64{1, 2}
	k.BaseIV = []byte{1, 2, 3}
	k.SetParam(-70000, "ext")
	k.TextParams = map[string]any{"note": true}

	enc, err := k.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	got, err := ParseKey(enc)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if got.Kty != KeyTypeOKP || got.Alg != AlgEdDSA || !bytes.Equal(got.Kid, pub) {
		t.Fatalf("named fields lost: %+v", got)
	}
	if len(got.KeyOps) != 2 || got.KeyOps[1] != 2 || !bytes.Equal(got.BaseIV, []byte{1, 2, 3}) {
		t.Fatalf("key_ops/base_iv lost: %+v", got)
	}
	if v, ok := got.Param(-70000); !ok || v != "ext" {
		t.Fatalf("extension param lost: %v", v)
	}
	if got.TextParams["note"] != true {
		t.Fatalf("text param lost: %v", got.TextParams)
	}
	seed, err := got.Ed25519Seed()
	if err != nil || !bytes.Equal(seed, testSeed()) {
		t.Fatalf("seed mismatch: %v", err)
	}

	again, err := got.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	if !bytes.Equal(enc, again) {
		t.Fatal("re-encoding is not stable")
	}
}

func TestKeyRejects(t *testing.T) {
	if _, err := NewEd25519Key([]byte{1}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := ParseKey([]byte{0x01}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for non-map, got %v", err)
	}
	k, _ := NewEd25519Key(testSeed())
	enc, _ := k.MarshalCBOR()
	if _, err := ParseKey(append(enc, 0x00)); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for trailing bytes, got %v", err)
	}

	pubOnly, _ := NewEd25519PublicKey(make([]byte, 32))
	if _, err := pubOnly.Ed25519Seed(); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for missing d, got %v", err)
	}
	sym := &Key{Kty: KeyTypeSymmetric}
	if _, err := sym.Ed25519PublicKey(); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for symmetric key, got %v", err)
	}
}

func TestEncrypt0(t *testing.T) {
	key := bytes.Repeat([]byte{9}, crypto2.KeySize)
	aad := []byte("NS:COSE/Transfer.Key")

	msg, err := SealEncrypt0([]byte("payload"), key, aad)
	if err != nil {
		t.Fatalf("SealEncrypt0: %v", err)
	}
	pt, err := OpenEncrypt0(msg, key, aad)
	if err != nil {
		t.Fatalf("OpenEncrypt0: %v", err)
	}
	if string(pt) != "payload" {
		t.Fatalf("unexpected payload %q", pt)
	}

	tagged := WithTag(TagEncrypt0, msg)
	if tagged[0] != 0xd0 {
		t.Fatalf("unexpected tag byte %x", tagged[0])
	}
	if pt, err = OpenEncrypt0(tagged, key, aad); err != nil || string(pt) != "payload" {
		t.Fatalf("tagged open failed: %v", err)
	}

	if _, err := OpenEncrypt0(msg, key, nil); !errors.Is(err, crypto2.ErrDecryptionFailed) {
		t.Fatalf("aad mismatch: expected ErrDecryptionFailed, got %v", err)
	}
	wrong := bytes.Repeat([]byte{1}, crypto2.KeySize)
	if _, err := OpenEncrypt0(msg, wrong, aad); !errors.Is(err, crypto2.ErrDecryptionFailed) {
		t.Fatalf("wrong key: expected ErrDecryptionFailed, got %v", err)
	}
	if _, err := OpenEncrypt0(WithTag(TagSign1, msg), key, aad); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("wrong tag: expected ErrInvalidMessage, got %v", err)
	}
}

func TestEncrypt0Tamper(t *testing.T) {
	key := bytes.Repeat([]byte{9}, crypto2.KeySize)
	msg, err := SealEncrypt0([]byte("payload"), key, nil)
	if err != nil {
		t.Fatalf("SealEncrypt0: %v", err)
	}
	for i := range msg {
		tampered := append([]byte(nil), msg...)
		tampered[i] ^= 0x01
		if _, err := OpenEncrypt0(tampered, key, nil); err == nil {
			t.Fatalf("tampered byte %d accepted", i)
		}
	}
}

func TestSign1(t *testing.T) {
	seed := testSeed()
	k, _ := NewEd25519Key(seed)
	pub, _ := k.Ed25519PublicKey()
	kid := []byte("kid")
	aad := []byte("NS:COSE/Sign.Mesage")

	msg, err := SignSign1([]byte{1, 2, 3}, seed, kid, aad)
	if err != nil {
		t.Fatalf("SignSign1: %v", err)
	}
	tagged := WithTag(TagSign1, msg)
	if tagged[0] != 0xd2 {
		t.Fatalf("unexpected tag byte %x", tagged[0])
	}

	payload, err := VerifySign1(tagged, pub, kid, aad)
	if err != nil {
		t.Fatalf("VerifySign1: %v", err)
	}
	if !bytes.Equal(payload, []byte{1, 2, 3}) {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, err := VerifySign1(msg, pub, nil, aad); err != nil {
		t.Fatalf("untagged verify without kid: %v", err)
	}

	if _, err := VerifySign1(tagged, pub, kid, nil); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("aad mismatch: expected ErrVerificationFailed, got %v", err)
	}
	if _, err := VerifySign1(tagged, pub, []byte("other"), aad); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("kid mismatch: expected ErrVerificationFailed, got %v", err)
	}
	other, _ := NewEd25519Key(bytes.Repeat([]byte{1}, 32))
	otherPub, _ := other.Ed25519PublicKey()
	if _, err := VerifySign1(tagged, otherPub, kid, aad); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("wrong key: expected ErrVerificationFailed, got %v", err)
	}

	for i := range tagged {
		tampered := append([]byte(nil), tagged...)
		tampered[i] ^= 0x01
		if _, err := VerifySign1(tampered, pub, kid, aad); err == nil {
			t.Fatalf("tampered byte %d accepted", i)
		}
	}
}

func TestMarshalBytes(t *testing.T) {
	enc, err := MarshalBytes(make([]byte, 32))
	if err != nil {
		t.Fatalf("MarshalBytes: %v", err)
	}
	if len(enc) != 34 || enc[0] != 0x58 || enc[1] != 0x20 {
		t.Fatalf("unexpected encoding %x", enc)
	}
}
