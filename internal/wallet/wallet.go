package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("wallet")

// SeedSize ed25519 身份种子长度
const SeedSize = ed25519.SeedSize

// NewEd25519Seed 生成新的随机 ed25519 种子
func NewEd25519Seed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		log.Errorf("NewEd25519Seed: failed to read random seed: %v", err)
		return nil, fmt.Errorf("failed to generate random seed: %w", err)
	}
	return seed, nil
}

// Ed25519PublicKey 由 32 字节种子计算 ed25519 公钥
func Ed25519PublicKey(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed length: expected %d, got %d", SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey), nil
}

// Ed25519Sign 使用种子对应的私钥签名数据
func Ed25519Sign(seed, data []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed length: expected %d, got %d", SeedSize, len(seed))
	}
	return ed25519.Sign(ed25519.NewKeyFromSeed(seed), data), nil
}
