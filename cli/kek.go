package cli

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"ns-keys/internal/models"
)

// KEKCmd KEK 管理命令
var KEKCmd = &cli.Command{
	Name:  "kek",
	Usage: "KEK 状态与轮换",
	Subcommands: []*cli.Command{
		kekStatus,
		kekRenew,
	},
}

var kekStatus = &cli.Command{
	Name:  "status",
	Usage: "显示当前 KEK 状态，或用 --pk 查看保留的历史代际",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "pk",
			Usage: "历史 KEK 公钥",
		},
	},
	Action: func(cctx *cli.Context) error {
		ks, err := connect(cctx)
		if err != nil {
			return err
		}
		defer ks.Close()

		var st *models.KEKState
		if pk := cctx.String("pk"); pk != "" {
			if st, err = ks.LoadKEKStateByPK(cctx.Context, pk); err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("kek generation %s not found", pk)
			}
		} else {
			if st, err = ks.LoadKEKState(cctx.Context); err != nil {
				return err
			}
			if st == nil {
				fmt.Println(color.YellowString("no kek state, keystore never opened"))
				return nil
			}
		}
		fmt.Printf("Namespace:    %s\n", ks.Name())
		fmt.Printf("KEK:          %s\n", st.PK)
		fmt.Printf("Created:      %s\n", time.UnixMilli(st.CreatedAt).UTC().Format(time.RFC3339))
		fmt.Printf("WithPassword: %v\n", st.WithPassword)
		fmt.Printf("State:        %s\n", hex.EncodeToString(st.State))
		return nil
	},
}

var kekRenew = &cli.Command{
	Name:  "renew",
	Usage: "轮换 KEK 并重新加密全部种子",
	Action: func(cctx *cli.Context) error {
		s, err := login(cctx)
		if err != nil {
			return err
		}
		defer s.Logout()

		if err := s.Renew(cctx.Context, passphrase(cctx)); err != nil {
			return err
		}
		st, err := s.Store().LoadKEKState(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Printf("renewed kek %s\n", st.PK)
		return nil
	},
}
