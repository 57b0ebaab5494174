package cli

import (
	"context"
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	appcfg "ns-keys/internal/config"
	crypto2 "ns-keys/internal/crypto"
	"ns-keys/internal/issuer"
	"ns-keys/internal/keystore"
	"ns-keys/internal/rpc"
	"ns-keys/internal/session"
	"ns-keys/lib/signlog"
)

var log = logging.Logger("cli")

type ctxKey string

const (
	CtxConfig ctxKey = "config"
)

// All 返回所有可用的 CLI 命令列表
func All() []*cli.Command {
	return []*cli.Command{
		SeedCmd, // 种子管理
		SignCmd, // 签名与验证
		KEKCmd,  // KEK 状态与轮换
	}
}

// GlobalFlags 全局参数
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "uid",
			Usage:   "用户 ID",
			EnvVars: []string{"NS_KEYS_UID"},
		},
		&cli.StringFlag{
			Name:    "passphrase",
			Usage:   "KEK 口令，不设置时使用默认口令",
			EnvVars: []string{"NS_KEYS_PASSPHRASE"},
		},
	}
}

// Before 加载配置并注入到 Context
func Before(c *cli.Context) error {
	cfg, err := appcfg.LoadConfig()
	if err != nil {
		return err
	}
	signlog.SetupLogLevels(cfg.LogLevel)
	c.Context = context.WithValue(c.Context, CtxConfig, cfg)
	return nil
}

func config(cctx *cli.Context) *appcfg.Config {
	return cctx.Context.Value(CtxConfig).(*appcfg.Config)
}

func keystoreOptions(cfg *appcfg.Config) keystore.Options {
	return keystore.Options{
		Dir:            cfg.StoreDir,
		Registerer:     prometheus.DefaultRegisterer,
		UnlockInterval: cfg.UnlockInterval,
		UnlockBurst:    cfg.UnlockBurst,
	}
}

// newIssuer 优先使用远程认证服务，否则使用本地签发者
func newIssuer(cfg *appcfg.Config) (session.Issuer, error) {
	if cfg.AuthURL != "" {
		return rpc.NewAuthClient(cfg.AuthURL, cfg.AuthToken), nil
	}
	if cfg.LocalSecret != "" {
		log.Warn("newIssuer: no auth service configured, using local issuer")
		return issuer.NewLocal(cfg.LocalSecret, crypto2.DefaultKDFParams)
	}
	return nil, fmt.Errorf("neither [Auth] URL nor [Local] Secret is configured")
}

func uid(cctx *cli.Context) (string, error) {
	id := strings.TrimSpace(cctx.String("uid"))
	if id == "" {
		return "", fmt.Errorf("must specify --uid")
	}
	return id, nil
}

func passphrase(cctx *cli.Context) []byte {
	if !cctx.IsSet("passphrase") {
		return nil
	}
	return []byte(cctx.String("passphrase"))
}

// login 获取 KEK 并解锁用户密钥库，调用方负责 Logout
func login(cctx *cli.Context) (*session.Session, error) {
	cfg := config(cctx)
	id, err := uid(cctx)
	if err != nil {
		return nil, err
	}
	iss, err := newIssuer(cfg)
	if err != nil {
		return nil, err
	}
	s := session.New(iss, keystoreOptions(cfg))
	if err := s.Login(cctx.Context, id, passphrase(cctx)); err != nil {
		_ = s.Logout()
		return nil, err
	}
	return s, nil
}

// connect 只连接数据库，不解锁，调用方负责 Close
func connect(cctx *cli.Context) (*keystore.KeyStore, error) {
	id, err := uid(cctx)
	if err != nil {
		return nil, err
	}
	ks := keystore.New(keystoreOptions(config(cctx)))
	if err := ks.Connect(cctx.Context, id); err != nil {
		return nil, err
	}
	return ks, nil
}

// parseKeyPK 解析 "<pk>:<path>"
func parseKeyPK(s string) (keystore.KeyPK, error) {
	pk, path, ok := strings.Cut(s, ":")
	if !ok || pk == "" || path == "" {
		return keystore.KeyPK{}, fmt.Errorf("invalid key %q, expected <pk>:<path>", s)
	}
	return keystore.KeyPK{PK: pk, Path: path}, nil
}
