package issuer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/xerrors"

	"ns-keys/internal/cose"
	crypto2 "ns-keys/internal/crypto"
	"ns-keys/internal/keystore"
)

var log = logging.Logger("issuer")

var statePrefix = []byte("kek:")

var (
	ErrInvalidState = errors.New("invalid kek state")
	ErrUnauthorized = errors.New("kek state signature mismatch")
)

// Local 离线 KEK 签发者
// 第 n 代 KEK 由主密钥经 HKDF-SHA256 派生，state 为 "kek:" || be64(n)
type Local struct {
	master []byte
	now    func() time.Time
}

// NewLocal 由配置的密钥通过 Scrypt + Argon2id 派生主密钥
func NewLocal(secret string, params crypto2.KDFParams) (*Local, error) {
	if secret == "" {
		return nil, fmt.Errorf("local issuer secret is empty")
	}
	salt := crypto2.Hash256([]byte(secret))
	master, err := crypto2.GenerateEncryptKeyWithParams([]byte(secret), salt, params)
	if err != nil {
		log.Errorf("NewLocal: failed to derive master key: %v", err)
		return nil, err
	}
	return &Local{master: master, now: time.Now}, nil
}

func encodeState(n uint64) []byte {
	st := make([]byte, len(statePrefix)+8)
	copy(st, statePrefix)
	binary.BigEndian.PutUint64(st[len(statePrefix):], n)
	return st
}

func decodeState(st []byte) (uint64, error) {
	if len(st) != len(statePrefix)+8 || !bytes.HasPrefix(st, statePrefix) {
		return 0, ErrInvalidState
	}
	return binary.BigEndian.Uint64(st[len(statePrefix):]), nil
}

func (l *Local) generation(n uint64) (*cose.Key, error) {
	r := hkdf.New(sha256.New, l.master, nil, []byte(fmt.Sprintf("ns-keys/kek/%d", n)))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	defer crypto2.Zero(seed)
	return cose.NewEd25519Key(seed)
}

// GetKEK 签发当前代 KEK；首次请求 (无 state) 返回第 0 代
// 带 state 的请求需附带该代 KEK 对 state 的签名
func (l *Local) GetKEK(ctx context.Context, req keystore.KEKRequest) (*keystore.KEKResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var n uint64
	if len(req.State) > 0 {
		var err error
		if n, err = decodeState(req.State); err != nil {
			log.Warnf("GetKEK: %v", err)
			return nil, err
		}
	} else if req.Renew {
		return nil, xerrors.Errorf("renew requires a state: %w", ErrInvalidState)
	}

	key, err := l.generation(n)
	if err != nil {
		return nil, err
	}
	if len(req.State) > 0 {
		pub, err := key.Ed25519PublicKey()
		if err != nil {
			return nil, err
		}
		if !ed25519.Verify(pub, req.State, req.Sig) {
			log.Warnf("GetKEK: signature mismatch for generation %d", n)
			return nil, ErrUnauthorized
		}
	}

	resp := &keystore.KEKResponse{
		Key:   key,
		State: encodeState(n),
		IssAt: l.now().UnixMilli(),
	}
	if req.Renew {
		if resp.NextKey, err = l.generation(n + 1); err != nil {
			return nil, err
		}
		resp.NextState = encodeState(n + 1)
	}
	log.Debugf("GetKEK: issued generation %d (renew=%v)", n, req.Renew)
	return resp, nil
}
