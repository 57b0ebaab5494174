package keystore

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/xerrors"

	"ns-keys/internal/cose"
	crypto2 "ns-keys/internal/crypto"
	"ns-keys/internal/models"
	"ns-keys/internal/repository"
	"ns-keys/internal/wallet"
)

func checkAlias(alias string) error {
	if strings.TrimSpace(alias) == "" {
		return xerrors.Errorf("missing alias: %w", ErrValidation)
	}
	return nil
}

// GenerateSeed 生成新的 ed25519 种子并加密保存
func (s *KeyStore) GenerateSeed(ctx context.Context, alias string) (info SeedInfo, err error) {
	defer func() { s.metrics.observe("generate_seed", err) }()

	if err := checkAlias(alias); err != nil {
		return SeedInfo{}, err
	}
	seed, err := wallet.NewEd25519Seed()
	if err != nil {
		return SeedInfo{}, err
	}
	defer crypto2.Zero(seed)
	key, err := cose.NewEd25519Key(seed)
	if err != nil {
		return SeedInfo{}, err
	}
	defer wipeKey(key)
	if key.Kid, err = key.Ed25519PublicKey(); err != nil {
		return SeedInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	store, err := s.opened()
	if err != nil {
		return SeedInfo{}, err
	}
	return s.storeNewSeed(ctx, store, alias, key)
}

func (s *KeyStore) storeNewSeed(ctx context.Context, store *repository.Store, alias string, key *cose.Key) (SeedInfo, error) {
	pub, err := key.Ed25519PublicKey()
	if err != nil {
		return SeedInfo{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	pk := hex.EncodeToString(pub)

	existing, err := store.LoadSeed(ctx, pk)
	if err != nil {
		return SeedInfo{}, err
	}
	if existing != nil {
		return SeedInfo{}, xerrors.Errorf("seed %s: %w", pk, ErrAlreadyExists)
	}

	raw, err := key.MarshalCBOR()
	if err != nil {
		return SeedInfo{}, err
	}
	defer crypto2.Zero(raw)
	ct, err := cose.SealEncrypt0(raw, s.kek, nil)
	if err != nil {
		return SeedInfo{}, err
	}

	now := s.nowMS()
	entry := &models.SeedEntry{
		PK:        pk,
		KekPK:     s.kekPK,
		CreatedAt: now,
		UpdatedAt: now,
		SyncedAt:  0,
		Alias:     alias,
		Seed:      ct,
		NsPaths:   []models.KeyPath{},
		BtcPaths:  []models.KeyPath{},
	}
	if err := store.SaveSeed(ctx, entry); err != nil {
		return SeedInfo{}, err
	}
	log.Infof("storeNewSeed: stored seed %s (%s)", pk, alias)
	return toSeedInfo(entry), nil
}

// DeriveEd25519 派生下一个 ed25519 密钥 m/42'/0'/0'/1/<n>
func (s *KeyStore) DeriveEd25519(ctx context.Context, pk, alias string) (info SeedInfo, err error) {
	defer func() { s.metrics.observe("derive_ed25519", err) }()

	return s.derive(ctx, pk, alias, func(e *models.SeedEntry, secret []byte) error {
		path := fmt.Sprintf("%s%d", NSKeyPathPrefix, len(e.NsPaths))
		pub, err := ed25519At(secret, path)
		if err != nil {
			return err
		}
		e.NsPaths = append(e.NsPaths, models.KeyPath{
			Alias:     alias,
			Path:      path,
			Address:   "0x" + hex.EncodeToString(pub),
			CreatedAt: s.nowMS(),
		})
		return nil
	})
}

// DeriveSecp256k1 派生下一个 secp256k1 密钥 m/44'/0'/0'/1/<n>
func (s *KeyStore) DeriveSecp256k1(ctx context.Context, pk, alias string) (info SeedInfo, err error) {
	defer func() { s.metrics.observe("derive_secp256k1", err) }()

	return s.derive(ctx, pk, alias, func(e *models.SeedEntry, secret []byte) error {
		path := fmt.Sprintf("%s%d", BTCKeyPathPrefix, len(e.BtcPaths))
		key, err := wallet.DeriveSecp256k1(secret, path)
		if err != nil {
			return err
		}
		defer crypto2.Zero(key.PrivateKey)
		addr, err := wallet.P2WPKHAddress(key.PublicKey)
		if err != nil {
			return err
		}
		e.BtcPaths = append(e.BtcPaths, models.KeyPath{
			Alias:     alias,
			Path:      path,
			Address:   addr,
			CreatedAt: s.nowMS(),
		})
		return nil
	})
}

func (s *KeyStore) derive(ctx context.Context, pk, alias string, add func(*models.SeedEntry, []byte) error) (SeedInfo, error) {
	if err := checkAlias(alias); err != nil {
		return SeedInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	store, err := s.opened()
	if err != nil {
		return SeedInfo{}, err
	}
	seed, err := s.openSeed(ctx, store, pk)
	if err != nil {
		return SeedInfo{}, err
	}
	defer seed.wipe()
	secret, err := seed.seedKey.Ed25519Seed()
	if err != nil {
		return SeedInfo{}, err
	}

	entry := seed.sealed
	if err := add(&entry, secret); err != nil {
		log.Errorf("derive: failed to derive key for %s: %v", pk, err)
		return SeedInfo{}, err
	}
	entry.UpdatedAt = s.nowMS()
	if err := store.SaveSeed(ctx, &entry); err != nil {
		return SeedInfo{}, err
	}
	return toSeedInfo(&entry), nil
}

func ed25519At(secret []byte, path string) ([]byte, error) {
	idx, err := wallet.ParsePath(path)
	if err != nil {
		return nil, err
	}
	child, err := wallet.DeriveEd25519(secret, idx)
	if err != nil {
		return nil, err
	}
	defer crypto2.Zero(child)
	return wallet.Ed25519PublicKey(child)
}

// ImportSeed 导入 ExportSeed 导出的种子
func (s *KeyStore) ImportSeed(ctx context.Context, alias, blob, password string) (info SeedInfo, err error) {
	defer func() { s.metrics.observe("import_seed", err) }()

	if err := checkAlias(alias); err != nil {
		return SeedInfo{}, err
	}
	data, err := decodeTransport(blob)
	if err != nil {
		return SeedInfo{}, xerrors.Errorf("decoding transport blob: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	store, err := s.opened()
	if err != nil {
		return SeedInfo{}, err
	}

	tk := crypto2.TransferKey(password)
	defer crypto2.Zero(tk)
	raw, err := cose.OpenEncrypt0(data, tk, transferKeyAAD)
	if err != nil {
		log.Warnf("ImportSeed: failed to open transport blob: %v", err)
		return SeedInfo{}, fmt.Errorf("%w: %w", ErrInvalidPassphrase, err)
	}
	defer crypto2.Zero(raw)
	key, err := cose.ParseKey(raw)
	if err != nil {
		return SeedInfo{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	defer wipeKey(key)
	if _, err := key.Ed25519Seed(); err != nil {
		return SeedInfo{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.storeNewSeed(ctx, store, alias, key)
}

// ExportSeed 用口令派生的一次性密钥重新加密种子
// 返回 base64url(tag16(COSE_Encrypt0))
func (s *KeyStore) ExportSeed(ctx context.Context, pk, password string) (blob string, err error) {
	defer func() { s.metrics.observe("export_seed", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	store, err := s.opened()
	if err != nil {
		return "", err
	}
	seed, err := s.openSeed(ctx, store, pk)
	if err != nil {
		return "", err
	}
	defer seed.wipe()

	tk := crypto2.TransferKey(password)
	defer crypto2.Zero(tk)
	ct, err := cose.SealEncrypt0(seed.seedRaw, tk, transferKeyAAD)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(cose.WithTag(cose.TagEncrypt0, ct)), nil
}

func decodeTransport(blob string) ([]byte, error) {
	blob = strings.TrimSpace(blob)
	var err error
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.StdEncoding,
	} {
		var data []byte
		if data, err = enc.DecodeString(blob); err == nil {
			return data, nil
		}
	}
	return nil, err
}

// ExportMnemonic 以 24 个 BIP39 助记词导出种子私钥
func (s *KeyStore) ExportMnemonic(ctx context.Context, pk string) (mnemonic string, err error) {
	defer func() { s.metrics.observe("export_mnemonic", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	store, err := s.opened()
	if err != nil {
		return "", err
	}
	seed, err := s.openSeed(ctx, store, pk)
	if err != nil {
		return "", err
	}
	defer seed.wipe()
	secret, err := seed.seedKey.Ed25519Seed()
	if err != nil {
		return "", err
	}
	return wallet.SeedToMnemonic(secret)
}

// ImportMnemonic 从助记词恢复种子
func (s *KeyStore) ImportMnemonic(ctx context.Context, alias, mnemonic string) (info SeedInfo, err error) {
	defer func() { s.metrics.observe("import_mnemonic", err) }()

	if err := checkAlias(alias); err != nil {
		return SeedInfo{}, err
	}
	secret, err := wallet.MnemonicToSeed(mnemonic)
	if err != nil {
		return SeedInfo{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	defer crypto2.Zero(secret)
	key, err := cose.NewEd25519Key(secret)
	if err != nil {
		return SeedInfo{}, err
	}
	defer wipeKey(key)
	if key.Kid, err = key.Ed25519PublicKey(); err != nil {
		return SeedInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	store, err := s.opened()
	if err != nil {
		return SeedInfo{}, err
	}
	return s.storeNewSeed(ctx, store, alias, key)
}

// ListSeed 列出全部种子，不需要解锁
func (s *KeyStore) ListSeed(ctx context.Context) (infos []SeedInfo, err error) {
	defer func() { s.metrics.observe("list_seed", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	store, err := s.connected()
	if err != nil {
		return nil, err
	}
	entries, err := store.LoadSeedEntries(ctx)
	if err != nil {
		return nil, err
	}
	infos = make([]SeedInfo, 0, len(entries))
	for i := range entries {
		infos = append(infos, toSeedInfo(&entries[i]))
	}
	return infos, nil
}
