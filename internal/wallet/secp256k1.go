package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Secp256k1Key BIP32 派生出的 secp256k1 密钥对
type Secp256k1Key struct {
	PrivateKey []byte // 32 字节私钥
	PublicKey  []byte // 33 字节压缩公钥
}

// DeriveSecp256k1 从种子按 BIP32 路径派生 secp256k1 密钥
// 主密钥使用 "Bitcoin seed"，支持硬化与非硬化子索引
func DeriveSecp256k1(seed []byte, path string) (*Secp256k1Key, error) {
	log.Debugf("DeriveSecp256k1: deriving key at %s", path)

	idxs, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		log.Errorf("DeriveSecp256k1: failed to create master key: %v", err)
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	for _, idx := range idxs {
		key, err = key.Derive(idx)
		if err != nil {
			log.Errorf("DeriveSecp256k1: failed to derive child %d: %v", idx, err)
			return nil, fmt.Errorf("failed to derive child %d: %w", idx, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		log.Errorf("DeriveSecp256k1: failed to get private key: %v", err)
		return nil, err
	}
	return &Secp256k1Key{
		PrivateKey: priv.Serialize(),
		PublicKey:  priv.PubKey().SerializeCompressed(),
	}, nil
}

// P2WPKHAddress 由压缩公钥生成主网 bech32 P2WPKH 地址
func P2WPKHAddress(pubKey []byte) (string, error) {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		log.Errorf("P2WPKHAddress: invalid secp256k1 public key: %v", err)
		return "", fmt.Errorf("invalid secp256k1 public key: %w", err)
	}
	hash := btcutil.Hash160(pub.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, &chaincfg.MainNetParams)
	if err != nil {
		log.Errorf("P2WPKHAddress: failed to create address: %v", err)
		return "", err
	}
	return addr.EncodeAddress(), nil
}
