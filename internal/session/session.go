package session

import (
	"context"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"ns-keys/internal/keystore"
)

var log = logging.Logger("session")

// Issuer KEK 来源：远程认证服务或本地签发者
type Issuer interface {
	GetKEK(ctx context.Context, req keystore.KEKRequest) (*keystore.KEKResponse, error)
}

// Session 持有当前用户的 KeyStore
// 每个会话一个 KeyStore，不使用全局实例
type Session struct {
	issuer Issuer
	ks     *keystore.KeyStore
	mu     sync.Mutex
	uid    string
}

// New 创建会话
func New(issuer Issuer, opts keystore.Options) *Session {
	return &Session{issuer: issuer, ks: keystore.New(opts)}
}

// Store 返回会话持有的 KeyStore
func (s *Session) Store() *keystore.KeyStore {
	return s.ks
}

// UID 当前登录用户
func (s *Session) UID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid
}

func (s *Session) request(ctx context.Context, renew bool) (keystore.KEKRequest, error) {
	st, err := s.ks.LoadKEKState(ctx)
	if err != nil {
		return keystore.KEKRequest{}, err
	}
	req := keystore.KEKRequest{Renew: renew}
	if st != nil {
		req.State, req.Sig = st.State, st.Sig
	}
	return req, nil
}

// Login 连接用户数据库，获取 KEK 并解锁
// pass 为 nil 时使用默认口令
func (s *Session) Login(ctx context.Context, uid string, pass []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Infof("Login: logging in %s", uid)
	if err := s.ks.Connect(ctx, uid); err != nil {
		return err
	}
	req, err := s.request(ctx, false)
	if err != nil {
		return err
	}
	resp, err := s.issuer.GetKEK(ctx, req)
	if err != nil {
		log.Errorf("Login: failed to get kek for %s: %v", uid, err)
		return fmt.Errorf("failed to get kek: %w", err)
	}
	if err := s.ks.Open(ctx, resp, pass); err != nil {
		log.Errorf("Login: failed to open keystore for %s: %v", uid, err)
		return err
	}
	s.uid = uid
	log.Infof("Login: %s unlocked", uid)
	return nil
}

// Renew 请求下一代 KEK 并轮换
func (s *Session) Renew(ctx context.Context, pass []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uid == "" {
		return keystore.ErrNotOpened
	}
	req, err := s.request(ctx, true)
	if err != nil {
		return err
	}
	resp, err := s.issuer.GetKEK(ctx, req)
	if err != nil {
		log.Errorf("Renew: failed to get next kek for %s: %v", s.uid, err)
		return fmt.Errorf("failed to get next kek: %w", err)
	}
	if err := s.ks.Renew(ctx, resp, pass); err != nil {
		log.Errorf("Renew: failed to renew kek for %s: %v", s.uid, err)
		return err
	}
	log.Infof("Renew: kek renewed for %s", s.uid)
	return nil
}

// Logout 关闭 KeyStore
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uid = ""
	return s.ks.Close()
}
