// Package exchange は取引所ごとの認証連携サービスを提供する。
// 取引所は認可リダイレクト型（OAuth）とAPIキー所持証明型（API_KEY)の
// 2種類の能力種別のいずれかに属し、種別ごとに別の具象型で実装される。
package exchange

import "strings"

// Kind は取引所の認証能力種別を表す。
type Kind string

const (
	// KindOAuth は認可コードフローによる委任認証に対応する取引所。
	KindOAuth Kind = "OAUTH"
	// KindAPIKey はAPIキーペアの所持証明による認証に対応する取引所。
	KindAPIKey Kind = "API_KEY"
)

// Descriptor は取引所ごとの静的な連携定義。
// プロセス起動時に設定から構築され、以降は変更されない。
type Descriptor struct {
	// Name は正規化済み（小文字）の取引所名。レジストリのキーになる。
	Name string
	// DisplayName は通知やログに使用する表示名。
	DisplayName string
	// Kind は認証能力種別。
	Kind Kind

	// OAuth用設定。KindがKindOAuthの場合のみ意味を持つ。
	AuthURL      string // 認可エンドポイント
	TokenURL     string // トークン交換エンドポイント
	ProfileURL   string // プロフィール取得エンドポイント
	Scopes       string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// SyntheticProfileEmail はプロフィール契約にメールアドレスが含まれない
	// 取引所であることを示す。trueの場合、オーケストレーターは
	// 外部IDから合成メールアドレスを生成してアカウントに紐付ける。
	// 取引所ごとの明示的なフラグであり、場当たり的なフォールバックではない。
	SyntheticProfileEmail bool

	// APIキー用設定。KindがKindAPIKeyの場合のみ意味を持つ。
	ValidateURL        string // 読み取り専用の残高照会エンドポイント
	RequiresPassphrase bool   // Bitget等、パスフレーズを要求する取引所
}

// Profile は取引所から取得したユーザープロフィールを表す。
type Profile struct {
	ExternalID string
	Email      string // 取引所によっては空
	Name       string // 取引所によっては空
}

// NormalizeName は取引所名を正規化する。取引所名は大文字小文字を区別しない。
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
