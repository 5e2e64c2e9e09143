// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, exchange, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingCode         = "MISSING_CODE"
	ErrCodeMissingCredentials  = "MISSING_CREDENTIALS"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeUnknownExchange     = "UNKNOWN_EXCHANGE"
	ErrCodeTokenExchangeFailed = "TOKEN_EXCHANGE_FAILED"
	ErrCodeProfileIncomplete   = "PROFILE_INCOMPLETE"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodePersistenceFailed   = "PERSISTENCE_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeOAuthNotSupported   = "OAUTH_NOT_SUPPORTED"
	ErrCodeAPIKeyNotSupported  = "API_KEY_NOT_SUPPORTED"
)

// NewMissingCodeError は認可コード欠落エラーを生成する。
// OAuthコールバックにcodeクエリパラメータが含まれない場合の終端エラー。
func NewMissingCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCode,
		Message:  "認可コードがリクエストに含まれていません。",
		Category: "validation",
		Action:   "取引所のログイン画面からやり直してください。",
	}
}

// NewMissingCredentialsError はAPIキー欠落エラーを生成する。
func NewMissingCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCredentials,
		Message:  "APIキーとAPIシークレットの両方が必要です。",
		Category: "validation",
		Action:   "APIキーとAPIシークレットを入力して再度お試しください。",
	}
}

// NewInvalidCredentialsError はAPIキー検証失敗エラーを生成する。
func NewInvalidCredentialsError(exchange string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  fmt.Sprintf("%s のAPIキー検証に失敗しました。", exchange),
		Category: "auth",
		Action:   "取引所で発行したAPIキーとシークレットが正しいか確認してください。",
	}
}

// NewUnknownExchangeError は未登録取引所エラーを生成する。
func NewUnknownExchangeError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownExchange,
		Message:  fmt.Sprintf("サポートされていない取引所です: %s", name),
		Category: "validation",
		Action:   "サポート対象の取引所名を指定してください。",
	}
}

// NewTokenExchangeFailedError はトークン交換失敗エラーを生成する。
// 上流の拒否理由をそのままメッセージに含める（運用時の原因調査のため）。
func NewTokenExchangeFailedError(exchange, cause string) *APIError {
	return &APIError{
		Code:     ErrCodeTokenExchangeFailed,
		Message:  fmt.Sprintf("%s とのトークン交換に失敗しました: %s", exchange, cause),
		Category: "exchange",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewProfileIncompleteError はプロフィール不備エラーを生成する。
// 取引所のプロフィールにメールアドレスが含まれない場合に返す。
func NewProfileIncompleteError(exchange string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileIncomplete,
		Message:  fmt.Sprintf("%s のプロフィールからメールアドレスを取得できませんでした。", exchange),
		Category: "exchange",
		Action:   "取引所のアカウントにメールアドレスが設定されているか確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPersistenceFailedError は資格情報保存失敗エラーを生成する。
// 保存が完了しなかった連携は「未連携」として扱われる（部分的成功はない）。
func NewPersistenceFailedError(cause string) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  fmt.Sprintf("連携情報の保存に失敗しました: %s", cause),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewOAuthNotSupportedError はOAuth非対応取引所への認可URL要求に対するエラーを生成する。
// エラーといっても回復可能な案内であり、ハンドラーは手動連携の案内として200で返す。
func NewOAuthNotSupportedError(exchange string) *APIError {
	return &APIError{
		Code:     ErrCodeOAuthNotSupported,
		Message:  fmt.Sprintf("%s はOAuthログインに対応していません。", exchange),
		Category: "validation",
		Action:   "APIキーとシークレットを使用した手動連携を行ってください。",
	}
}

// NewAPIKeyNotSupportedError はAPIキー連携非対応取引所へのAPIキー送信に対するエラーを生成する。
func NewAPIKeyNotSupportedError(exchange string) *APIError {
	return &APIError{
		Code:     ErrCodeAPIKeyNotSupported,
		Message:  fmt.Sprintf("%s はAPIキーによる連携に対応していません。", exchange),
		Category: "validation",
		Action:   "OAuthログインを使用してください。",
	}
}
