package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ============================================================================
// PII 编解码器
// ============================================================================
//
// 敏感字段（账号、邮箱、手机号）入库前做两件事：
//   1. Encrypt：AES-256-GCM 可逆加密，随机 nonce 拼在密文前，整体 base64
//   2. Hash：HMAC-SHA256 确定性哈希（相同输入得到相同哈希），
//      用于等值查询，不可逆
//
// 两者的密钥/盐都来自配置，base64 编码

const nonceSize = 12

type Codec struct {
	aead cipher.AEAD
	salt []byte
}

// NewCodec 从 base64 编码的密钥与盐构建编解码器
// 密钥必须是 32 字节（AES-256）
func NewCodec(keyB64, saltB64 string) (*Codec, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("解析加密密钥失败: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("加密密钥必须是 32 字节，实际 %d 字节", len(key))
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("解析哈希盐失败: %w", err)
	}
	if len(salt) == 0 {
		return nil, errors.New("哈希盐不能为空")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}

	return &Codec{aead: aead, salt: salt}, nil
}

// Encrypt 可逆加密，每次调用生成新 nonce，同一明文的密文各不相同
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt 解密 Encrypt 的输出
func (c *Codec) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("解析密文失败: %w", err)
	}
	if len(data) < nonceSize {
		return "", errors.New("密文长度不合法")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("解密失败: %w", err)
	}
	return string(plaintext), nil
}

// Hash 确定性哈希，用于密文字段的等值查询
func (c *Codec) Hash(value string) string {
	mac := hmac.New(sha256.New, c.salt)
	mac.Write([]byte(value))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
