package keystore

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"

	"ns-keys/internal/cose"
	crypto2 "ns-keys/internal/crypto"
	"ns-keys/internal/models"
	"ns-keys/internal/repository"
)

var log = logging.Logger("keystore")

const namePrefix = "ns:keys:"

// Options KeyStore 配置
type Options struct {
	Dir        string                // 数据目录，为空时使用 ~/.ns-keys
	Registerer prometheus.Registerer // 为空时不注册指标

	// 解锁失败限流，UnlockBurst 为 0 时使用默认值
	UnlockInterval time.Duration
	UnlockBurst    int

	Now func() time.Time
}

// KeyStore 用户密钥库
// 状态机：Disconnected -> Connected(uid) -> Unlocked
type KeyStore struct {
	mu      sync.RWMutex
	store   *repository.Store
	uid     string
	kek     []byte
	kekPK   string
	now     func() time.Time
	dir     string
	limiter *rate.Limiter
	metrics *metrics
}

// New 创建未连接的 KeyStore
func New(opts Options) *KeyStore {
	interval, burst := opts.UnlockInterval, opts.UnlockBurst
	if interval <= 0 {
		interval = time.Second
	}
	if burst <= 0 {
		burst = 10
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &KeyStore{
		now:     now,
		dir:     opts.Dir,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		metrics: newMetrics(opts.Registerer),
	}
}

func (s *KeyStore) nowMS() int64 {
	return s.now().UnixMilli()
}

// Connect 绑定用户数据库，丢弃内存中的 KEK
func (s *KeyStore) Connect(ctx context.Context, uid string) (err error) {
	defer func() { s.metrics.observe("connect", err) }()

	if strings.TrimSpace(uid) == "" {
		return xerrors.Errorf("missing user id: %w", ErrValidation)
	}
	if strings.ContainsAny(uid, `/\`) || strings.Contains(uid, "..") {
		return xerrors.Errorf("invalid user id %q: %w", uid, ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	store, err := repository.OpenStore(s.dir, uid)
	if err != nil {
		log.Errorf("Connect: failed to open store for %s: %v", uid, err)
		return err
	}
	s.store = store
	s.uid = uid
	log.Infof("Connect: connected to %s", s.nameLocked())
	return nil
}

// Close 关闭数据库并清除 KEK
func (s *KeyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

func (s *KeyStore) resetLocked() error {
	crypto2.Zero(s.kek)
	s.kek = nil
	s.kekPK = ""
	s.uid = ""
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	if err != nil {
		log.Warnf("Close: failed to close store: %v", err)
	}
	s.store = nil
	return err
}

// Ready 是否已解锁
func (s *KeyStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kek != nil
}

// Name 返回用户命名空间，未连接时为空
func (s *KeyStore) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nameLocked()
}

func (s *KeyStore) nameLocked() string {
	if s.store == nil {
		return ""
	}
	return namePrefix + s.uid
}

func (s *KeyStore) connected() (*repository.Store, error) {
	if s.store == nil {
		return nil, ErrNotConnected
	}
	return s.store, nil
}

// opened 未连接时同时匹配 ErrNotOpened 与 ErrNotConnected
func (s *KeyStore) opened() (*repository.Store, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: %w", ErrNotOpened, ErrNotConnected)
	}
	store := s.store
	if s.kek == nil {
		return nil, ErrNotOpened
	}
	return store, nil
}

// kekKey 解析 KEK 响应中的 ed25519 私钥
func kekKey(k *cose.Key) (secret, pub []byte, err error) {
	if k == nil {
		return nil, nil, xerrors.Errorf("missing kek key: %w", ErrValidation)
	}
	if secret, err = k.Ed25519Seed(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if pub, err = k.Ed25519PublicKey(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return secret, pub, nil
}

func passphrase(pass []byte) []byte {
	if pass == nil {
		return []byte(DefaultPassphrase)
	}
	return pass
}

func (s *KeyStore) newKEKState(pub, secret, state, pass []byte) models.KEKState {
	return models.KEKState{
		PK:           hex.EncodeToString(pub),
		CreatedAt:    s.nowMS(),
		SyncedAt:     0,
		WithPassword: !bytes.Equal(pass, []byte(DefaultPassphrase)),
		State:        append([]byte(nil), state...),
		Sig:          ed25519.Sign(ed25519.NewKeyFromSeed(secret), state),
	}
}

// Open 用认证服务下发的 KEK 解锁密钥库
// pass 为 nil 时使用 DefaultPassphrase；所有种子都能解密才算成功
func (s *KeyStore) Open(ctx context.Context, resp *KEKResponse, pass []byte) (err error) {
	defer func() { s.metrics.observe("open", err) }()

	if resp == nil {
		return xerrors.Errorf("missing kek response: %w", ErrValidation)
	}
	secret, pub, err := kekKey(resp.Key)
	if err != nil {
		return err
	}
	pass = passphrase(pass)

	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.connected()
	if err != nil {
		return err
	}
	if s.limiter.Tokens() < 1 {
		log.Warnf("Open: unlock throttled for %s", s.uid)
		return ErrTooManyAttempts
	}

	kek := crypto2.DeriveKEK(pass, secret)
	entries, err := store.LoadSeedEntries(ctx)
	if err != nil {
		crypto2.Zero(kek)
		return err
	}
	seeds, err := openSeeds(kek, entries)
	if err != nil {
		crypto2.Zero(kek)
		s.limiter.Allow()
		log.Warnf("Open: failed to open seeds for %s: %v", s.uid, err)
		return err
	}
	wipeAll(seeds)

	st, err := store.LoadKEKState(ctx)
	if err != nil {
		crypto2.Zero(kek)
		return err
	}
	if st == nil {
		next := s.newKEKState(pub, secret, resp.State, pass)
		if err := store.SaveKEKState(ctx, next); err != nil {
			crypto2.Zero(kek)
			return err
		}
	} else if !bytes.Equal(st.State, resp.State) {
		crypto2.Zero(kek)
		log.Errorf("Open: kek state mismatch for %s", s.uid)
		return xerrors.Errorf("expected state %x, got %x: %w", st.State, resp.State, ErrIntegrity)
	}

	crypto2.Zero(s.kek)
	s.kek = kek
	s.kekPK = hex.EncodeToString(pub)
	log.Infof("Open: unlocked %s with kek %s", s.nameLocked(), s.kekPK)
	return nil
}

// Renew 轮换 KEK：备份、用新 KEK 重新加密全部种子、写入新状态，在同一事务内完成
func (s *KeyStore) Renew(ctx context.Context, resp *KEKResponse, pass []byte) (err error) {
	defer func() { s.metrics.observe("renew", err) }()

	if resp == nil || resp.NextKey == nil || len(resp.NextState) == 0 {
		return xerrors.Errorf("missing next key or next state: %w", ErrValidation)
	}
	nextSecret, nextPub, err := kekKey(resp.NextKey)
	if err != nil {
		return err
	}
	pass = passphrase(pass)

	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.opened()
	if err != nil {
		return err
	}
	st, err := store.LoadKEKState(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return xerrors.Errorf("kek state not exists: %w", ErrIntegrity)
	}
	if !bytes.Equal(st.State, resp.State) {
		log.Errorf("Renew: kek state mismatch for %s", s.uid)
		return xerrors.Errorf("expected state %x, got %x: %w", st.State, resp.State, ErrIntegrity)
	}

	entries, err := store.LoadSeedEntries(ctx)
	if err != nil {
		return err
	}
	seeds, err := openSeeds(s.kek, entries)
	if err != nil {
		log.Errorf("Renew: failed to open seeds with current kek: %v", err)
		return err
	}
	defer wipeAll(seeds)

	kek := crypto2.DeriveKEK(pass, nextSecret)
	next := s.newKEKState(nextPub, nextSecret, resp.NextState, pass)
	resealed := make([]models.SeedEntry, 0, len(seeds))
	for _, e := range seeds {
		ct, err := cose.SealEncrypt0(e.seedRaw, kek, nil)
		if err != nil {
			crypto2.Zero(kek)
			return err
		}
		re := e.sealed
		re.KekPK = next.PK
		re.Seed = ct
		resealed = append(resealed, re)
	}

	if err := store.RotateKEK(ctx, entries, resealed, next); err != nil {
		crypto2.Zero(kek)
		return err
	}

	crypto2.Zero(s.kek)
	s.kek = kek
	s.kekPK = next.PK
	log.Infof("Renew: rotated %s to kek %s", s.nameLocked(), s.kekPK)
	return nil
}

// LoadKEKState 读取当前 KEK 状态，不需要解锁
func (s *KeyStore) LoadKEKState(ctx context.Context) (*models.KEKState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	store, err := s.connected()
	if err != nil {
		return nil, err
	}
	return store.LoadKEKState(ctx)
}

// LoadKEKStateByPK 读取某一代 KEK 的历史状态，不存在时返回 nil
func (s *KeyStore) LoadKEKStateByPK(ctx context.Context, pk string) (*models.KEKState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	store, err := s.connected()
	if err != nil {
		return nil, err
	}
	return store.LoadKEKStateByPK(ctx, pk)
}

func openSeeds(kek []byte, entries []models.SeedEntry) ([]keysEntry, error) {
	seeds := make([]keysEntry, 0, len(entries))
	for i := range entries {
		e, err := openEntry(kek, &entries[i])
		if err != nil {
			wipeAll(seeds)
			return nil, err
		}
		seeds = append(seeds, e)
	}
	return seeds, nil
}

func openEntry(kek []byte, e *models.SeedEntry) (keysEntry, error) {
	raw, err := cose.OpenEncrypt0(e.Seed, kek, nil)
	if err != nil {
		return keysEntry{}, fmt.Errorf("opening seed %s: %w: %w", e.PK, ErrInvalidPassphrase, err)
	}
	key, err := cose.ParseKey(raw)
	if err != nil {
		crypto2.Zero(raw)
		return keysEntry{}, fmt.Errorf("decoding seed %s: %w: %w", e.PK, ErrInvalidPassphrase, err)
	}
	pub, err := key.Ed25519PublicKey()
	if err != nil || hex.EncodeToString(pub) != e.PK {
		crypto2.Zero(raw)
		wipeKey(key)
		return keysEntry{}, xerrors.Errorf("seed %s does not match its public key: %w", e.PK, ErrIntegrity)
	}
	return keysEntry{sealed: *e, seedRaw: raw, seedKey: key}, nil
}

// openSeed 读取并解密单个种子，调用方持有锁
func (s *KeyStore) openSeed(ctx context.Context, store *repository.Store, pk string) (keysEntry, error) {
	e, err := store.LoadSeed(ctx, pk)
	if err != nil {
		return keysEntry{}, err
	}
	if e == nil {
		return keysEntry{}, xerrors.Errorf("seed %s: %w", pk, ErrNotFound)
	}
	return openEntry(s.kek, e)
}
