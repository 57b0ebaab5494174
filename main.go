package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	cli2 "ns-keys/cli"
	appcfg "ns-keys/internal/config"
)

// logger 全局日志记录器
var log = logging.Logger("ns-keys")

// main 程序入口函数
// 加载配置后启动命令行界面
func main() {
	// 加载 TOML 配置文件
	if err := appcfg.Load(); err != nil {
		log.Fatal(err)
		return
	}

	// 创建 CLI 应用实例
	app := &cli.App{
		Name:    "ns-keys",
		Usage:   "ns-keys 分层密钥库，支持种子管理、密钥派生与 ed25519 签名",
		Version: "1.0.0",

		Flags:    cli2.GlobalFlags(),
		Before:   cli2.Before,
		After:    cli2.After,
		Commands: cli2.All(),
	}

	// 运行 CLI 应用
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
