package config

import (
	"os"
	"path/filepath"
	"time"
)

// NSConfig 全局配置实例（从 TOML 文件加载）
var NSConfig struct {
	Store   *Store   // 数据存储配置
	Auth    *Auth    // 认证服务配置
	Local   *Local   // 本地 KEK 签发配置
	Unlock  *Unlock  // 解锁限流配置
	Log     *Log     // 日志配置
	Metrics *Metrics // 指标配置
}

// Store 数据存储配置
type Store struct {
	Dir string // 用户数据库目录
}

// Auth 认证服务连接配置
type Auth struct {
	URL   string // 认证服务地址
	Token string // API 访问令牌
}

// Local 本地 KEK 签发配置，未配置 Auth.URL 时使用
type Local struct {
	Secret string // 主密钥口令
}

// Unlock 解锁失败限流
type Unlock struct {
	Interval string // 令牌恢复间隔，如 "1s"
	Burst    int    // 允许连续失败次数
}

// Log 日志配置
type Log struct {
	Level string
}

// Metrics 指标输出配置
type Metrics struct {
	Textfile string // 命令结束后写入的 Prometheus 文本文件，为空时不写
}

// Config 应用程序运行时配置
type Config struct {
	StoreDir       string
	AuthURL        string
	AuthToken      string
	LocalSecret    string
	UnlockInterval time.Duration
	UnlockBurst    int
	LogLevel       string
	MetricsFile    string
}

const (
	defaultUnlockInterval = time.Second
	defaultUnlockBurst    = 10
	defaultLogLevel       = "INFO"
)

// LoadConfig 加载配置
// 优先使用配置文件，否则使用默认值
func LoadConfig() (*Config, error) {
	cfg := &Config{
		UnlockInterval: defaultUnlockInterval,
		UnlockBurst:    defaultUnlockBurst,
		LogLevel:       defaultLogLevel,
	}

	if NSConfig.Store != nil && NSConfig.Store.Dir != "" {
		cfg.StoreDir = expandPath(NSConfig.Store.Dir)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			cfg.StoreDir = filepath.Join(homeDir, ".ns-keys")
		}
	}

	if NSConfig.Auth != nil {
		cfg.AuthURL = NSConfig.Auth.URL
		cfg.AuthToken = NSConfig.Auth.Token
	}
	if NSConfig.Local != nil {
		cfg.LocalSecret = NSConfig.Local.Secret
	}

	if NSConfig.Unlock != nil {
		if NSConfig.Unlock.Interval != "" {
			d, err := time.ParseDuration(NSConfig.Unlock.Interval)
			if err != nil {
				return nil, err
			}
			cfg.UnlockInterval = d
		}
		if NSConfig.Unlock.Burst > 0 {
			cfg.UnlockBurst = NSConfig.Unlock.Burst
		}
	}
	if NSConfig.Log != nil && NSConfig.Log.Level != "" {
		cfg.LogLevel = NSConfig.Log.Level
	}

	if NSConfig.Metrics != nil && NSConfig.Metrics.Textfile != "" {
		cfg.MetricsFile = expandPath(NSConfig.Metrics.Textfile)
	}
	return cfg, nil
}

// expandPath 展开路径中的 ~ 为用户主目录
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
