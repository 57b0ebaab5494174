package crypto2

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/sha3"
)

// 加密参数常量
const (
	// Scrypt 参数 (N=2^17, r=8, p=1) - 高安全性配置
	ScryptN      = 1 << 17 // 131072
	ScryptR      = 8
	ScryptP      = 1
	ScryptKeyLen = 32

	// Argon2id 参数
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2KeyLen  = 32

	// AES-256-GCM
	KeySize   = 32
	NonceSize = 12
)

var (
	ErrInvalidKey        = errors.New("invalid key length")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed: authentication error")
)

// KDFParams 口令拉伸参数
type KDFParams struct {
	ScryptN       int
	ScryptR       int
	ScryptP       int
	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8
}

// DefaultKDFParams 默认 (高强度) 口令拉伸参数
var DefaultKDFParams = KDFParams{
	ScryptN:       ScryptN,
	ScryptR:       ScryptR,
	ScryptP:       ScryptP,
	Argon2Time:    Argon2Time,
	Argon2Memory:  Argon2Memory,
	Argon2Threads: Argon2Threads,
}

// GenerateEncryptKeyWithParams derives an encryption key using Scrypt + Argon2id
// 双重密钥派生：Scrypt 抗 ASIC，Argon2id 抗 GPU
func GenerateEncryptKeyWithParams(password, salt []byte, p KDFParams) ([]byte, error) {
	// 第一层：Scrypt 派生
	scryptKey, err := scrypt.Key(password, salt, p.ScryptN, p.ScryptR, p.ScryptP, ScryptKeyLen)
	if err != nil {
		return nil, err
	}
	defer Zero(scryptKey)
	// 第二层：Argon2id 派生
	return argon2.IDKey(scryptKey, salt, p.Argon2Time, p.Argon2Memory, p.Argon2Threads, Argon2KeyLen), nil
}

// Hash256 computes SHA-256 hash of data
func Hash256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DeriveKEK computes the symmetric key-encryption key HMAC-SHA3-256(passphrase, secret).
func DeriveKEK(passphrase, secret []byte) []byte {
	mac := hmac.New(sha3.New256, passphrase)
	mac.Write(secret)
	return mac.Sum(nil)
}

// TransferKey derives the one-off key used to move seeds between vaults: SHA3-256(password).
func TransferKey(password string) []byte {
	sum := sha3.Sum256([]byte(password))
	return sum[:]
}

// NewNonce returns a random AES-GCM nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// SealGCM encrypts plaintext with AES-256-GCM under an explicit nonce, binding aad.
// Returns: ciphertext + tag (16 bytes)
func SealGCM(plaintext, key, nonce, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrInvalidCiphertext
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// OpenGCM decrypts data sealed by SealGCM. Any tamper, wrong key or wrong aad
// yields ErrDecryptionFailed.
func OpenGCM(ciphertext, key, nonce, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() || len(ciphertext) < gcm.Overhead() {
		return nil, ErrInvalidCiphertext
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Zero overwrites a byte slice in memory with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
