// Package vault は取引所の秘匿資格情報を暗号化して保管する。
// 平文の資格情報がリポジトリ層に渡ることはなく、保存前に必ず
// 暗号化される。保存は(ユーザー, 取引所)ペアごとに1行の冪等な上書き。
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/exlink/internal/model"
	"github.com/hitoshi/exlink/internal/repository"
	"github.com/hitoshi/exlink/internal/security"
)

// OAuthMaterial はOAuthフローで取得した保存対象の資格情報。
type OAuthMaterial struct {
	AccessToken  string
	RefreshToken string // 空の場合は保存しない
	ExpiresAt    *time.Time
}

// APIKeyMaterial はAPIキーログインで受け取った保存対象の資格情報。
type APIKeyMaterial struct {
	APIKey     string
	APISecret  string
	Passphrase string // 空の場合は保存しない
}

// CredentialVault は資格情報の暗号化保存を担う。
type CredentialVault struct {
	cipher   security.SecretCipher
	connRepo repository.ConnectionRepository
}

// NewCredentialVault はCredentialVaultを生成する。
func NewCredentialVault(cipher security.SecretCipher, connRepo repository.ConnectionRepository) *CredentialVault {
	return &CredentialVault{cipher: cipher, connRepo: connRepo}
}

// SaveOAuth はOAuth資格情報を暗号化して保存する。
// 同一ペアへの再保存は既存行の秘匿フィールドを丸ごと置き換える。
// 戻り値は保存されたアクセストークンの暗号文（通知プレビュー用）。
func (v *CredentialVault) SaveOAuth(ctx context.Context, userID, exchange string, material OAuthMaterial) (string, error) {
	accessToken, err := v.encrypt(material.AccessToken)
	if err != nil {
		return "", model.NewPersistenceFailedError(err.Error())
	}
	refreshToken, err := v.encryptOptional(material.RefreshToken)
	if err != nil {
		return "", model.NewPersistenceFailedError(err.Error())
	}

	now := time.Now()
	conn := &model.ExchangeConnection{
		UserID:       userID,
		Exchange:     exchange,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    material.ExpiresAt,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := v.connRepo.Upsert(ctx, conn); err != nil {
		return "", model.NewPersistenceFailedError(err.Error())
	}
	return *accessToken, nil
}

// SaveAPIKey はAPIキー資格情報を暗号化して保存する。
// 保存前の検証は呼び出し元の責務であり、Vaultは検証済みの資格情報のみを受け取る。
// 戻り値は保存されたAPIキーの暗号文（通知プレビュー用）。
func (v *CredentialVault) SaveAPIKey(ctx context.Context, userID, exchange string, material APIKeyMaterial) (string, error) {
	apiKey, err := v.encrypt(material.APIKey)
	if err != nil {
		return "", model.NewPersistenceFailedError(err.Error())
	}
	apiSecret, err := v.encrypt(material.APISecret)
	if err != nil {
		return "", model.NewPersistenceFailedError(err.Error())
	}
	passphrase, err := v.encryptOptional(material.Passphrase)
	if err != nil {
		return "", model.NewPersistenceFailedError(err.Error())
	}

	now := time.Now()
	conn := &model.ExchangeConnection{
		UserID:     userID,
		Exchange:   exchange,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Passphrase: passphrase,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := v.connRepo.Upsert(ctx, conn); err != nil {
		return "", model.NewPersistenceFailedError(err.Error())
	}
	return *apiKey, nil
}

// List はユーザーの連携一覧を返す。秘匿フィールドは含まない。
func (v *CredentialVault) List(ctx context.Context, userID string) ([]model.ConnectionSummary, error) {
	summaries, err := v.connRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return summaries, nil
}

// secretPreviewLength はSecretPreviewが返す暗号文の最大長。
const secretPreviewLength = 24

// SecretPreview は通知に埋め込むための暗号文プレビューを返す。
// 暗号文全体ではなく先頭のみを返し、通知経路から完全な暗号文が
// 漏れてもそれ単体では復号対象にならないようにする。
func SecretPreview(ciphertext string) string {
	if len(ciphertext) <= secretPreviewLength {
		return ciphertext
	}
	return ciphertext[:secretPreviewLength] + "..."
}

// encrypt は必須フィールドを暗号化し、暗号文へのポインタを返す。
func (v *CredentialVault) encrypt(plaintext string) (*string, error) {
	ciphertext, err := v.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credential: %w", err)
	}
	return &ciphertext, nil
}

// encryptOptional は空のフィールドをnilのまま通し、それ以外を暗号化する。
func (v *CredentialVault) encryptOptional(plaintext string) (*string, error) {
	if plaintext == "" {
		return nil, nil
	}
	return v.encrypt(plaintext)
}
