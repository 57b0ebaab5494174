package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"ns-keys/internal/keystore"
)

// SignCmd 签名命令
var SignCmd = &cli.Command{
	Name:  "sign",
	Usage: "ed25519 签名与验证",
	Subcommands: []*cli.Command{
		signData,
		signMessage,
		signVerify,
	},
}

// signData 批量签名，每行输出一个签名
var signData = &cli.Command{
	Name:      "data",
	Usage:     "用多个派生密钥签名数据",
	ArgsUsage: "<十六进制数据>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "key",
			Usage:    "<种子公钥>:<路径>，可重复",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		data, err := hex.DecodeString(cctx.Args().First())
		if err != nil {
			return fmt.Errorf("invalid hex data: %w", err)
		}
		var kps []keystore.KeyPK
		for _, k := range cctx.StringSlice("key") {
			kp, err := parseKeyPK(k)
			if err != nil {
				return err
			}
			kps = append(kps, kp)
		}

		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		sigs, err := s.Store().Ed25519SignData(cctx.Context, kps, data)
		if err != nil {
			return err
		}
		for _, sig := range sigs {
			fmt.Println(hex.EncodeToString(sig))
		}
		return nil
	},
}

// signMessage 生成 COSE_Sign1 签名消息
var signMessage = &cli.Command{
	Name:      "message",
	Usage:     "签名消息，输出十六进制 COSE_Sign1",
	ArgsUsage: "<种子公钥>:<路径> <十六进制消息>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("must specify key and message")
		}
		kp, err := parseKeyPK(cctx.Args().Get(0))
		if err != nil {
			return err
		}
		msg, err := hex.DecodeString(cctx.Args().Get(1))
		if err != nil {
			return fmt.Errorf("invalid hex message: %w", err)
		}

		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		signed, err := s.Store().Ed25519SignMessage(cctx.Context, kp, msg)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(signed))
		return nil
	},
}

// signVerify 验证签名消息，不需要解锁
var signVerify = &cli.Command{
	Name:      "verify",
	Usage:     "验证签名消息并输出消息内容",
	ArgsUsage: "<种子公钥>:<路径> <十六进制签名消息>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("must specify key and signed message")
		}
		kp, err := parseKeyPK(cctx.Args().Get(0))
		if err != nil {
			return err
		}
		signed, err := hex.DecodeString(cctx.Args().Get(1))
		if err != nil {
			return fmt.Errorf("invalid hex message: %w", err)
		}

		ks, err := connect(cctx)
		if err != nil {
			return err
		}
		defer ks.Close()

		payload, err := ks.Ed25519VerifyMessage(cctx.Context, kp, signed)
		if err != nil {
			fmt.Println(color.RedString("invalid"))
			return err
		}
		fmt.Println(color.GreenString("valid"))
		fmt.Println(hex.EncodeToString(payload))
		return nil
	},
}
