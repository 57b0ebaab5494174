package wallet

import (
	"github.com/anyproto/go-slip10"
)

// DeriveEd25519 按 SLIP-0010 从种子派生 ed25519 私钥种子 (32 字节)
// ed25519 只支持硬化派生，每个索引都会被强制加上 HardenedOffset，
// 因此 [0] 与 [HardenedOffset] 的派生结果相同
func DeriveEd25519(seed []byte, path []uint32) ([]byte, error) {
	node, err := slip10.NewMasterNode(seed)
	if err != nil {
		log.Errorf("DeriveEd25519: failed to create master node: %v", err)
		return nil, err
	}
	for _, idx := range path {
		if node, err = node.Derive(idx | HardenedOffset); err != nil {
			log.Errorf("DeriveEd25519: failed to derive child %d: %v", idx, err)
			return nil, err
		}
	}
	return append([]byte(nil), node.RawSeed()...), nil
}
