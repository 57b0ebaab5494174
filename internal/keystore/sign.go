package keystore

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/xerrors"

	"ns-keys/internal/cose"
	crypto2 "ns-keys/internal/crypto"
	"ns-keys/internal/wallet"
)

func signingKey(seed keysEntry, path string) ([]byte, error) {
	kp, ok := findPath(seed.sealed.NsPaths, path)
	if !ok {
		return nil, xerrors.Errorf("key path %s of seed %s: %w", path, seed.sealed.PK, ErrNotFound)
	}
	idx, err := wallet.ParsePath(kp.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	secret, err := seed.seedKey.Ed25519Seed()
	if err != nil {
		return nil, err
	}
	return wallet.DeriveEd25519(secret, idx)
}

// Ed25519SignData 用多个派生密钥分别签名 data，签名顺序与输入一致
// 同一批次中重复的 (pk, path) 会被拒绝
func (s *KeyStore) Ed25519SignData(ctx context.Context, kps []KeyPK, data []byte) (sigs [][]byte, err error) {
	defer func() { s.metrics.observe("ed25519_sign_data", err) }()

	seen := make(map[KeyPK]struct{}, len(kps))
	for _, kp := range kps {
		if _, ok := seen[kp]; ok {
			return nil, xerrors.Errorf("key path %s:%s: %w", kp.PK, kp.Path, ErrDuplicateKeyPath)
		}
		seen[kp] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	store, err := s.opened()
	if err != nil {
		return nil, err
	}

	seeds := make(map[string]keysEntry)
	defer func() {
		for _, e := range seeds {
			e.wipe()
		}
	}()

	sigs = make([][]byte, 0, len(kps))
	for _, kp := range kps {
		seed, ok := seeds[kp.PK]
		if !ok {
			if seed, err = s.openSeed(ctx, store, kp.PK); err != nil {
				return nil, err
			}
			seeds[kp.PK] = seed
		}
		child, err := signingKey(seed, kp.Path)
		if err != nil {
			return nil, err
		}
		sig, err := wallet.Ed25519Sign(child, data)
		crypto2.Zero(child)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// Ed25519SignMessage 生成带 tag 18 的 COSE_Sign1 签名消息
func (s *KeyStore) Ed25519SignMessage(ctx context.Context, kp KeyPK, message []byte) (signed []byte, err error) {
	defer func() { s.metrics.observe("ed25519_sign_message", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	store, err := s.opened()
	if err != nil {
		return nil, err
	}
	seed, err := s.openSeed(ctx, store, kp.PK)
	if err != nil {
		return nil, err
	}
	defer seed.wipe()

	child, err := signingKey(seed, kp.Path)
	if err != nil {
		return nil, err
	}
	defer crypto2.Zero(child)
	pub, err := wallet.Ed25519PublicKey(child)
	if err != nil {
		return nil, err
	}
	kid, err := cose.MarshalBytes(pub)
	if err != nil {
		return nil, err
	}
	msg, err := cose.SignSign1(message, child, kid, signMessageAAD)
	if err != nil {
		return nil, err
	}
	return cose.WithTag(cose.TagSign1, msg), nil
}

// Ed25519VerifyMessage 用记录的地址公钥验证签名消息，返回消息内容
// 不需要解锁
func (s *KeyStore) Ed25519VerifyMessage(ctx context.Context, kp KeyPK, signed []byte) (payload []byte, err error) {
	defer func() { s.metrics.observe("ed25519_verify_message", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	store, err := s.connected()
	if err != nil {
		return nil, err
	}
	e, err := store.LoadSeed(ctx, kp.PK)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, xerrors.Errorf("seed %s: %w", kp.PK, ErrNotFound)
	}
	path, ok := findPath(e.NsPaths, kp.Path)
	if !ok {
		return nil, xerrors.Errorf("key path %s of seed %s: %w", kp.Path, kp.PK, ErrNotFound)
	}
	pub, err := hex.DecodeString(strings.TrimPrefix(path.Address, "0x"))
	if err != nil {
		return nil, xerrors.Errorf("invalid address %s: %w", path.Address, ErrIntegrity)
	}
	kid, err := cose.MarshalBytes(pub)
	if err != nil {
		return nil, err
	}
	payload, err = cose.VerifySign1(signed, pub, kid, signMessageAAD)
	if err != nil {
		log.Debugf("Ed25519VerifyMessage: verification failed for %s: %v", kp.Path, err)
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	return payload, nil
}
