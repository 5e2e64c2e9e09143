// Package model はドメインモデルを定義する。
package model

import "time"

// ExchangeConnection は取引所との認証連携情報を表す。
// (UserID, Exchange) の複合キーで一意であり、同一ペアへの再保存は
// 既存行の秘匿フィールドを丸ごと置き換える（行が増えることはない）。
// 秘匿フィールド（AccessToken, RefreshToken, APIKey, APISecret, Passphrase）は
// すべて暗号化済みの値のみを保持する。平文がこの構造体に入ることはない。
type ExchangeConnection struct {
	UserID       string
	Exchange     string
	AccessToken  *string // 暗号化済みアクセストークン（OAuth連携時のみ）
	RefreshToken *string // 暗号化済みリフレッシュトークン
	APIKey       *string // 暗号化済みAPIキー（APIキー連携時のみ）
	APISecret    *string // 暗号化済みAPIシークレット
	Passphrase   *string // 暗号化済みパスフレーズ（Bitget等が要求する場合のみ）
	ExpiresAt    *time.Time
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConnectionSummary は連携一覧APIが返す公開情報。
// 秘匿フィールドは一切含まない。
type ConnectionSummary struct {
	Exchange  string    `json:"exchange"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}
