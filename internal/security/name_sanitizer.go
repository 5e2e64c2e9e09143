// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は取引所から取得した表示名のサニタイズ機能の
// インターフェースを定義する。アカウント作成前に使用される。
type NameSanitizerService interface {
	// Sanitize は表示名からHTMLタグをすべて除去し、前後の空白を取り除く。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(name string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// 取引所プロフィールの表示名は外部入力であり、そのままDBに保存すると
// 一覧画面等でのXSSの温床になるため、許可タグなしのStrictPolicyで除去する。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は表示名からHTMLをすべて除去する。
func (s *nameSanitizer) Sanitize(name string) string {
	return strings.TrimSpace(s.policy.Sanitize(name))
}

// compile-time interface check
var _ NameSanitizerService = (*nameSanitizer)(nil)
