package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// unboundSentinel は「紐付けユーザーなし」を表すstateペイロードの番兵値。
	unboundSentinel = "none"
	// legacyUnboundSentinel は旧実装が発行していた紐付けなしプレースホルダー。
	// 復号互換のために受理のみ行い、新規発行はしない。
	legacyUnboundSentinel = "undefined"
	// stateNonceBytes はstateペイロードに埋め込むノンスのバイト数。
	stateNonceBytes = 16
)

// StateTokenCodec はOAuthリダイレクトを往復するstateトークンの符号化を担う。
// ペイロード "<ユーザーID または none>:<ノンス>" をAES-256-GCMで暗号化し、
// URLセーフなbase64で包む。トークンは呼び出し側から見て不透明で、
// 改竄・偽造されたトークンは復号段階で検出される。
type StateTokenCodec struct {
	aead cipher.AEAD
}

// NewStateTokenCodec は16進エンコードされた32バイト鍵からコーデックを生成する。
func NewStateTokenCodec(keyHex string) (*StateTokenCodec, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode state key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("state key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &StateTokenCodec{aead: aead}, nil
}

// Encode は紐付けユーザーID（未ログインの場合は空文字）からstateトークンを生成する。
// 同じ入力でもノンスにより毎回異なるトークンになる。
func (c *StateTokenCodec) Encode(boundUserID string) (string, error) {
	subject := boundUserID
	if subject == "" {
		subject = unboundSentinel
	}

	nonce := make([]byte, stateNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	payload := subject + ":" + hex.EncodeToString(nonce)

	gcmNonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(gcmNonce); err != nil {
		return "", fmt.Errorf("failed to generate GCM nonce: %w", err)
	}

	sealed := c.aead.Seal(gcmNonce, gcmNonce, []byte(payload), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode はstateトークンから紐付けユーザーIDを取り出す。
// 復号失敗・形式不正・番兵値はすべて「紐付けなし」として (""、false) を返す。
// stateの解読失敗はエラーではなく匿名フローへの降格として扱われるため、
// このメソッドがエラーを返すことはない。
func (c *StateTokenCodec) Decode(token string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", false
	}
	if len(raw) < c.aead.NonceSize() {
		return "", false
	}

	gcmNonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	payload, err := c.aead.Open(nil, gcmNonce, sealed, nil)
	if err != nil {
		return "", false
	}

	parts := strings.SplitN(string(payload), ":", 2)
	if len(parts) != 2 {
		return "", false
	}

	subject := parts[0]
	if subject == "" || subject == unboundSentinel || subject == legacyUnboundSentinel {
		return "", false
	}
	return subject, true
}
