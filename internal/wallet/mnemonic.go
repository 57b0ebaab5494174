package wallet

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// SeedToMnemonic 将 32 字节种子编码为 24 个 BIP39 助记词
func SeedToMnemonic(seed []byte) (string, error) {
	if len(seed) != SeedSize {
		return "", fmt.Errorf("invalid seed length: expected %d, got %d", SeedSize, len(seed))
	}
	words, err := bip39.NewMnemonic(seed)
	if err != nil {
		log.Errorf("SeedToMnemonic: failed to encode mnemonic: %v", err)
		return "", err
	}
	return words, nil
}

// MnemonicToSeed 将 BIP39 助记词还原为原始种子 (校验和错误会被拒绝)
// 注意：这里还原的是熵本身，不是 BIP39 的 PBKDF2 种子
func MnemonicToSeed(mnemonic string) ([]byte, error) {
	normalized := strings.Join(strings.Fields(mnemonic), " ")
	seed, err := bip39.EntropyFromMnemonic(normalized)
	if err != nil {
		log.Warnf("MnemonicToSeed: invalid mnemonic: %v", err)
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("invalid mnemonic length: expected %d words", SeedSize*3/4)
	}
	return seed, nil
}
