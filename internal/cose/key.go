package cose

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"
)

// COSE key common parameters (RFC 9052 section 7.1)
const (
	KeyParamKty    int64 = 1
	KeyParamKid    int64 = 2
	KeyParamAlg    int64 = 3
	KeyParamKeyOps int64 = 4
	KeyParamBaseIV int64 = 5

	// OKP key type parameters (RFC 9053 section 7.2)
	OKPParamCrv int64 = -1
	OKPParamX   int64 = -2
	OKPParamD   int64 = -4
)

const (
	KeyTypeOKP       int64 = 1
	KeyTypeSymmetric int64 = 4

	CurveEd25519 int64 = 6

	AlgEdDSA   int64 = -8
	AlgA256GCM int64 = 3
)

var ErrInvalidKey = errors.New("invalid cose key")

// Key COSE_Key 记录：常用参数用具名字段表示，其余参数放在扩展表中
// 零值字段表示参数缺省 (kty/alg 的 0 在 IANA 注册表中为保留值)
type Key struct {
	Kty    int64
	Kid    []byte
	Alg    int64
	KeyOps []int64
	BaseIV []byte

	// Params holds algorithm-specific and unknown integer-labelled parameters.
	Params map[int64]any
	// TextParams holds text-labelled parameters.
	TextParams map[string]any
}

// NewEd25519Key builds an OKP/Ed25519 COSE key from a 32-byte private seed.
func NewEd25519Key(seed []byte) (*Key, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, xerrors.Errorf("ed25519 seed must be %d bytes: %w", ed25519.SeedSize, ErrInvalidKey)
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	k := &Key{
		Kty: KeyTypeOKP,
		Alg: AlgEdDSA,
	}
	k.SetParam(OKPParamCrv, CurveEd25519)
	k.SetParam(OKPParamX, []byte(pub))
	k.SetParam(OKPParamD, append([]byte(nil), seed...))
	return k, nil
}

// NewEd25519PublicKey builds a verify-only OKP/Ed25519 COSE key.
func NewEd25519PublicKey(pub []byte) (*Key, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, xerrors.Errorf("ed25519 public key must be %d bytes: %w", ed25519.PublicKeySize, ErrInvalidKey)
	}
	k := &Key{Kty: KeyTypeOKP, Alg: AlgEdDSA}
	k.SetParam(OKPParamCrv, CurveEd25519)
	k.SetParam(OKPParamX, append([]byte(nil), pub...))
	return k, nil
}

func (k *Key) Param(label int64) (any, bool) {
	v, ok := k.Params[label]
	return v, ok
}

func (k *Key) SetParam(label int64, value any) {
	if k.Params == nil {
		k.Params = make(map[int64]any)
	}
	k.Params[label] = value
}

func (k *Key) bytesParam(label int64) []byte {
	v, ok := k.Params[label]
	if !ok {
		return nil
	}
	b, _ := v.([]byte)
	return b
}

func (k *Key) isEd25519() bool {
	crv, _ := k.Params[OKPParamCrv].(int64)
	return k.Kty == KeyTypeOKP && crv == CurveEd25519
}

// Ed25519Seed returns the private seed (parameter d).
func (k *Key) Ed25519Seed() ([]byte, error) {
	if !k.isEd25519() {
		return nil, xerrors.Errorf("not an ed25519 key: %w", ErrInvalidKey)
	}
	d := k.bytesParam(OKPParamD)
	if len(d) != ed25519.SeedSize {
		return nil, xerrors.Errorf("ed25519 private key missing: %w", ErrInvalidKey)
	}
	return d, nil
}

// Ed25519PublicKey returns parameter x, or computes it from d when absent.
func (k *Key) Ed25519PublicKey() ([]byte, error) {
	if !k.isEd25519() {
		return nil, xerrors.Errorf("not an ed25519 key: %w", ErrInvalidKey)
	}
	seed := k.bytesParam(OKPParamD)
	if len(seed) == ed25519.SeedSize {
		pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
		if x := k.bytesParam(OKPParamX); x != nil && !bytes.Equal(x, pub) {
			return nil, xerrors.Errorf("public key does not match private key: %w", ErrInvalidKey)
		}
		return pub, nil
	}
	x := k.bytesParam(OKPParamX)
	if len(x) != ed25519.PublicKeySize {
		return nil, xerrors.Errorf("ed25519 public key missing: %w", ErrInvalidKey)
	}
	return x, nil
}

// MarshalCBOR encodes the key as a deterministic CBOR map.
func (k *Key) MarshalCBOR() ([]byte, error) {
	var entries []mapEntry
	add := func(label any, value any) error {
		enc, err := encodeLabel(label)
		if err != nil {
			return err
		}
		entries = append(entries, mapEntry{key: enc, value: value})
		return nil
	}

	if k.Kty != 0 {
		if err := add(KeyParamKty, k.Kty); err != nil {
			return nil, err
		}
	}
	if k.Kid != nil {
		if err := add(KeyParamKid, k.Kid); err != nil {
			return nil, err
		}
	}
	if k.Alg != 0 {
		if err := add(KeyParamAlg, k.Alg); err != nil {
			return nil, err
		}
	}
	if k.KeyOps != nil {
		if err := add(KeyParamKeyOps, k.KeyOps); err != nil {
			return nil, err
		}
	}
	if k.BaseIV != nil {
		if err := add(KeyParamBaseIV, k.BaseIV); err != nil {
			return nil, err
		}
	}
	for label, v := range k.Params {
		if label >= KeyParamKty && label <= KeyParamBaseIV {
			return nil, xerrors.Errorf("label %d must use the named field: %w", label, ErrInvalidKey)
		}
		if err := add(label, v); err != nil {
			return nil, err
		}
	}
	for label, v := range k.TextParams {
		if err := add(label, v); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := writeMap(cbg.NewCborWriter(&buf), entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseKey decodes a CBOR-encoded COSE_Key.
func ParseKey(data []byte) (*Key, error) {
	r := bytes.NewReader(data)
	cr := cbg.NewCborReader(r)
	k := &Key{}
	err := readMap(cr, func(label any, value any) error {
		switch l := label.(type) {
		case string:
			if k.TextParams == nil {
				k.TextParams = make(map[string]any)
			}
			k.TextParams[l] = value
			return nil
		case int64:
			return k.setLabel(l, value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding cose key: %w: %w", ErrInvalidKey, err)
	}
	if err := expectEOF(r); err != nil {
		return nil, fmt.Errorf("decoding cose key: %w: %w", ErrInvalidKey, err)
	}
	return k, nil
}

func (k *Key) setLabel(label int64, value any) error {
	var ok bool
	switch label {
	case KeyParamKty:
		k.Kty, ok = value.(int64)
	case KeyParamKid:
		k.Kid, ok = value.([]byte)
	case KeyParamAlg:
		k.Alg, ok = value.(int64)
	case KeyParamKeyOps:
		var arr []any
		if arr, ok = value.([]any); ok {
			k.KeyOps = make([]int64, 0, len(arr))
			for _, e := range arr {
				op, isInt := e.(int64)
				if !isInt {
					return fmt.Errorf("key_ops must contain integers")
				}
				k.KeyOps = append(k.KeyOps, op)
			}
		}
	case KeyParamBaseIV:
		k.BaseIV, ok = value.([]byte)
	default:
		k.SetParam(label, value)
		ok = true
	}
	if !ok {
		return fmt.Errorf("wrong type %T for key parameter %d", value, label)
	}
	return nil
}
