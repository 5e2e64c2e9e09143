// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// SecretCipher は秘匿情報の対称暗号化機能のインターフェースを定義する。
// 資格情報ボールトとOAuth stateトークンの両方が同一のプロセス共通鍵で使用する。
type SecretCipher interface {
	// Encrypt は平文を暗号化してbase64文字列を返す。
	Encrypt(plaintext string) (string, error)
	// Decrypt は暗号文を復号して平文を返す。
	// 鍵不一致・改ざん・形式不正の場合はエラーを返す。
	Decrypt(ciphertext string) (string, error)
}

// aesGCMCipher はAES-256-GCMによるSecretCipherの実装。
// 出力フォーマットは base64(nonce || ciphertext || tag)。
type aesGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCMCipher はhexエンコードされた32バイト鍵（64文字）からSecretCipherを生成する。
// 鍵はENCRYPTION_KEY環境変数経由で起動時に1回だけ渡される。
func NewAESGCMCipher(keyHex string) (*aesGCMCipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length: must be 32 bytes for AES-256, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &aesGCMCipher{aead: aead}, nil
}

// Encrypt は平文をAES-256-GCMで暗号化する。
// nonceは毎回ランダム生成し、暗号文の先頭に連結する。
func (c *aesGCMCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt は暗号文を復号する。
// GCMの認証タグ検証により、改ざんされた暗号文や異なる鍵で
// 暗号化された値は必ずエラーになる。
func (c *aesGCMCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 ciphertext: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

// compile-time interface check
var _ SecretCipher = (*aesGCMCipher)(nil)
