package cose

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	crypto2 "ns-keys/internal/crypto"
)

// CBOR tags for COSE messages (RFC 9052 section 2)
const (
	TagEncrypt0 uint64 = 16
	TagSign1    uint64 = 18
)

// Header labels
const (
	HeaderAlg int64 = 1
	HeaderKid int64 = 4
	HeaderIV  int64 = 5
)

var (
	ErrInvalidMessage     = errors.New("invalid cose message")
	ErrVerificationFailed = errors.New("cose signature verification failed")
)

// WithTag prefixes data with a CBOR tag header.
func WithTag(tag uint64, data []byte) []byte {
	var buf bytes.Buffer
	cw := cbg.NewCborWriter(&buf)
	_ = cw.WriteMajorTypeHeader(cbg.MajTag, tag)
	buf.Write(data)
	return buf.Bytes()
}

// SkipTag strips the given CBOR tag if present; untagged input is returned as is.
// A different tag is an error.
func SkipTag(tag uint64, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidMessage
	}
	if data[0]>>5 != cbg.MajTag {
		return data, nil
	}
	r := bytes.NewReader(data)
	maj, extra, err := cbg.NewCborReader(r).ReadHeader()
	if err != nil {
		return nil, xerrors.Errorf("reading tag: %w", err)
	}
	if maj != cbg.MajTag || extra != tag {
		return nil, xerrors.Errorf("unexpected cbor tag %d: %w", extra, ErrInvalidMessage)
	}
	return data[len(data)-r.Len():], nil
}

func encodeHeader(entries map[int64]any) ([]byte, error) {
	list := make([]mapEntry, 0, len(entries))
	for label, v := range entries {
		enc, err := encodeLabel(label)
		if err != nil {
			return nil, err
		}
		list = append(list, mapEntry{key: enc, value: v})
	}
	var buf bytes.Buffer
	if err := writeMap(cbg.NewCborWriter(&buf), list); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHeader(cr *cbg.CborReader) (map[int64]any, error) {
	h := make(map[int64]any)
	err := readMap(cr, func(label any, value any) error {
		if l, ok := label.(int64); ok {
			h[l] = value
		}
		return nil
	})
	return h, err
}

func decodeProtected(raw []byte) (map[int64]any, error) {
	if len(raw) == 0 {
		return map[int64]any{}, nil
	}
	r := bytes.NewReader(raw)
	h, err := decodeHeader(cbg.NewCborReader(r))
	if err != nil {
		return nil, err
	}
	return h, expectEOF(r)
}

// structureBytes builds the Enc_structure / Sig_structure to be authenticated.
func structureBytes(context string, protected, externalAAD []byte, payload []byte, withPayload bool) ([]byte, error) {
	var buf bytes.Buffer
	cw := cbg.NewCborWriter(&buf)
	n := uint64(3)
	if withPayload {
		n = 4
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, n); err != nil {
		return nil, err
	}
	if err := writeText(cw, context); err != nil {
		return nil, err
	}
	if err := writeBytes(cw, protected); err != nil {
		return nil, err
	}
	if err := writeBytes(cw, externalAAD); err != nil {
		return nil, err
	}
	if withPayload {
		if err := writeBytes(cw, payload); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// SealEncrypt0 encrypts payload into an untagged COSE_Encrypt0 with A256GCM.
// externalAAD may be nil.
func SealEncrypt0(payload, key, externalAAD []byte) ([]byte, error) {
	protected, err := encodeHeader(map[int64]any{HeaderAlg: AlgA256GCM})
	if err != nil {
		return nil, err
	}
	iv, err := crypto2.NewNonce()
	if err != nil {
		return nil, err
	}
	aad, err := structureBytes("Encrypt0", protected, externalAAD, nil, false)
	if err != nil {
		return nil, err
	}
	ct, err := crypto2.SealGCM(payload, key, iv, aad)
	if err != nil {
		return nil, err
	}

	unprotected, err := encodeHeader(map[int64]any{HeaderIV: iv})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	cw := cbg.NewCborWriter(&buf)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 3); err != nil {
		return nil, err
	}
	if err := writeBytes(cw, protected); err != nil {
		return nil, err
	}
	if _, err := cw.Write(unprotected); err != nil {
		return nil, err
	}
	if err := writeBytes(cw, ct); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OpenEncrypt0 decrypts a COSE_Encrypt0 (tagged or untagged). Authentication
// failures are reported as crypto2.ErrDecryptionFailed.
func OpenEncrypt0(data, key, externalAAD []byte) ([]byte, error) {
	data, err := SkipTag(TagEncrypt0, data)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	cr := cbg.NewCborReader(r)

	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return nil, xerrors.Errorf("decoding encrypt0: %w", err)
	}
	if maj != cbg.MajArray || extra != 3 {
		return nil, xerrors.Errorf("encrypt0 must be a 3-element array: %w", ErrInvalidMessage)
	}
	protected, err := readBytes(cr)
	if err != nil {
		return nil, xerrors.Errorf("decoding protected header: %w", err)
	}
	unprotected, err := decodeHeader(cr)
	if err != nil {
		return nil, xerrors.Errorf("decoding unprotected header: %w", err)
	}
	ct, err := readBytes(cr)
	if err != nil {
		return nil, xerrors.Errorf("decoding ciphertext: %w", err)
	}
	if err := expectEOF(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	ph, err := decodeProtected(protected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if alg, _ := ph[HeaderAlg].(int64); alg != AlgA256GCM {
		return nil, xerrors.Errorf("unsupported encryption algorithm %v: %w", ph[HeaderAlg], ErrInvalidMessage)
	}
	iv, _ := unprotected[HeaderIV].([]byte)
	if len(iv) != crypto2.NonceSize {
		return nil, xerrors.Errorf("missing or invalid iv: %w", ErrInvalidMessage)
	}

	aad, err := structureBytes("Encrypt0", protected, externalAAD, nil, false)
	if err != nil {
		return nil, err
	}
	return crypto2.OpenGCM(ct, key, iv, aad)
}

// SignSign1 signs payload into an untagged COSE_Sign1 with EdDSA.
func SignSign1(payload, seed, kid, externalAAD []byte) ([]byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, xerrors.Errorf("ed25519 seed must be %d bytes: %w", ed25519.SeedSize, ErrInvalidKey)
	}
	protected, err := encodeHeader(map[int64]any{HeaderAlg: AlgEdDSA})
	if err != nil {
		return nil, err
	}
	uh := map[int64]any{}
	if kid != nil {
		uh[HeaderKid] = kid
	}
	unprotected, err := encodeHeader(uh)
	if err != nil {
		return nil, err
	}
	toSign, err := structureBytes("Signature1", protected, externalAAD, payload, true)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(ed25519.NewKeyFromSeed(seed), toSign)

	var buf bytes.Buffer
	cw := cbg.NewCborWriter(&buf)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 4); err != nil {
		return nil, err
	}
	if err := writeBytes(cw, protected); err != nil {
		return nil, err
	}
	if _, err := cw.Write(unprotected); err != nil {
		return nil, err
	}
	if err := writeBytes(cw, payload); err != nil {
		return nil, err
	}
	if err := writeBytes(cw, sig); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VerifySign1 verifies a COSE_Sign1 (tagged or untagged) against an Ed25519
// public key and returns the payload. When kid is non-nil the message must
// carry the same key id.
func VerifySign1(data, pub, kid, externalAAD []byte) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, xerrors.Errorf("ed25519 public key must be %d bytes: %w", ed25519.PublicKeySize, ErrInvalidKey)
	}
	data, err := SkipTag(TagSign1, data)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	cr := cbg.NewCborReader(r)

	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return nil, xerrors.Errorf("decoding sign1: %w", err)
	}
	if maj != cbg.MajArray || extra != 4 {
		return nil, xerrors.Errorf("sign1 must be a 4-element array: %w", ErrInvalidMessage)
	}
	protected, err := readBytes(cr)
	if err != nil {
		return nil, xerrors.Errorf("decoding protected header: %w", err)
	}
	unprotected, err := decodeHeader(cr)
	if err != nil {
		return nil, xerrors.Errorf("decoding unprotected header: %w", err)
	}
	payload, err := readBytes(cr)
	if err != nil {
		return nil, xerrors.Errorf("decoding payload: %w", err)
	}
	sig, err := readBytes(cr)
	if err != nil {
		return nil, xerrors.Errorf("decoding signature: %w", err)
	}
	if err := expectEOF(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	ph, err := decodeProtected(protected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if alg, _ := ph[HeaderAlg].(int64); alg != AlgEdDSA {
		return nil, xerrors.Errorf("unsupported signature algorithm %v: %w", ph[HeaderAlg], ErrInvalidMessage)
	}

	if kid != nil {
		if got, _ := unprotected[HeaderKid].([]byte); !bytes.Equal(got, kid) {
			return nil, xerrors.Errorf("key id mismatch: %w", ErrVerificationFailed)
		}
	}

	toVerify, err := structureBytes("Signature1", protected, externalAAD, payload, true)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), toVerify, sig) {
		return nil, ErrVerificationFailed
	}
	return payload, nil
}
