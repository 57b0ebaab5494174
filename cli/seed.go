package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"ns-keys/internal/keystore"
	"ns-keys/internal/ui/tablewriter"
)

// SeedCmd 种子管理命令
var SeedCmd = &cli.Command{
	Name:  "seed",
	Usage: "种子管理",
	Subcommands: []*cli.Command{
		seedNew,
		seedList,
		seedDerive,
		seedExport,
		seedImport,
		seedMnemonic,
		seedRecover,
	},
}

var passwordFlag = &cli.StringFlag{
	Name:     "password",
	Usage:    "传输口令",
	Required: true,
}

// seedNew 生成新种子
var seedNew = &cli.Command{
	Name:      "new",
	Usage:     "生成新种子",
	ArgsUsage: "<别名>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify alias")
		}
		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		info, err := s.Store().GenerateSeed(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Println(info.PK)
		return nil
	},
}

// seedList 列出种子，不需要解锁
var seedList = &cli.Command{
	Name:  "list",
	Usage: "列出种子及派生路径",
	Action: func(cctx *cli.Context) error {
		ks, err := connect(cctx)
		if err != nil {
			return err
		}
		defer ks.Close()

		infos, err := ks.ListSeed(cctx.Context)
		if err != nil {
			return err
		}
		return tablewriter.Seeds(os.Stdout, infos)
	},
}

// seedDerive 派生新密钥
var seedDerive = &cli.Command{
	Name:      "derive",
	Usage:     "从种子派生下一个密钥",
	ArgsUsage: "<种子公钥> <别名>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "curve",
			Usage: "ed25519 或 secp256k1",
			Value: "ed25519",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("must specify seed pk and alias")
		}
		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		pk, alias := cctx.Args().Get(0), cctx.Args().Get(1)
		var info keystore.SeedInfo
		switch cctx.String("curve") {
		case "ed25519":
			if info, err = s.Store().DeriveEd25519(cctx.Context, pk, alias); err != nil {
				return err
			}
			p := info.NsPaths[len(info.NsPaths)-1]
			fmt.Printf("%s\t%s\n", p.Path, p.Address)
		case "secp256k1":
			if info, err = s.Store().DeriveSecp256k1(cctx.Context, pk, alias); err != nil {
				return err
			}
			p := info.BtcPaths[len(info.BtcPaths)-1]
			fmt.Printf("%s\t%s\n", p.Path, p.Address)
		default:
			return fmt.Errorf("unrecognized curve: %s", cctx.String("curve"))
		}
		return nil
	},
}

// seedExport 导出加密种子
var seedExport = &cli.Command{
	Name:      "export",
	Usage:     "用传输口令导出种子",
	ArgsUsage: "<种子公钥>",
	Flags:     []cli.Flag{passwordFlag},
	Action: func(cctx *cli.Context) error {
		if !cctx.Args().Present() {
			return fmt.Errorf("must specify seed to export")
		}
		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		blob, err := s.Store().ExportSeed(cctx.Context, cctx.Args().First(), cctx.String("password"))
		if err != nil {
			return err
		}
		fmt.Println(blob)
		return nil
	},
}

// seedImport 导入加密种子
var seedImport = &cli.Command{
	Name:      "import",
	Usage:     "导入 export 导出的种子",
	ArgsUsage: "<别名> [<数据> (省略时从标准输入读取)]",
	Flags:     []cli.Flag{passwordFlag},
	Action: func(cctx *cli.Context) error {
		if !cctx.Args().Present() {
			return fmt.Errorf("must specify alias")
		}
		blob := cctx.Args().Get(1)
		if blob == "" || blob == "-" {
			line, err := readLine()
			if err != nil {
				return err
			}
			blob = line
		}
		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		info, err := s.Store().ImportSeed(cctx.Context, cctx.Args().First(), blob, cctx.String("password"))
		if err != nil {
			return err
		}
		fmt.Printf("imported seed %s successfully!\n", info.PK)
		return nil
	},
}

// seedMnemonic 导出助记词
var seedMnemonic = &cli.Command{
	Name:      "mnemonic",
	Usage:     "以 BIP39 助记词导出种子",
	ArgsUsage: "<种子公钥>",
	Action: func(cctx *cli.Context) error {
		if !cctx.Args().Present() {
			return fmt.Errorf("must specify seed")
		}
		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		words, err := s.Store().ExportMnemonic(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, color.YellowString("WARNING: anyone with these words controls every key derived from this seed"))
		fmt.Println(words)
		return nil
	},
}

// seedRecover 从助记词恢复种子，助记词从标准输入读取
var seedRecover = &cli.Command{
	Name:      "recover",
	Usage:     "从 BIP39 助记词恢复种子",
	ArgsUsage: "<别名>",
	Action: func(cctx *cli.Context) error {
		if !cctx.Args().Present() {
			return fmt.Errorf("must specify alias")
		}
		words, err := readLine()
		if err != nil {
			return err
		}
		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		info, err := s.Store().ImportMnemonic(cctx.Context, cctx.Args().First(), words)
		if err != nil {
			return err
		}
		fmt.Printf("recovered seed %s successfully!\n", info.PK)
		return nil
	},
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
