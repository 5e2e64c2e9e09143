package exchange

import (
	"context"
	"time"

	"github.com/hitoshi/exlink/internal/model"
)

// Service は全取引所サービスに共通のインターフェース。
// 能力種別ごとの操作はOAuthService / APIKeyServiceの変種インターフェースで
// 定義され、呼び出し側は型アサーションで能力の有無を判定する。
// 「未実装メソッドが実行時にpanicする基底型」は使用しない。
type Service interface {
	// Descriptor は取引所の静的な連携定義を返す。
	Descriptor() Descriptor
}

// TokenSet はトークン交換の結果を表す。
type TokenSet struct {
	AccessToken  string
	RefreshToken string // 取引所によっては空
	ExpiresAt    *time.Time
}

// OAuthService は認可コードフローに対応する取引所サービスの変種。
type OAuthService interface {
	Service

	// AuthorizationURL はstateパラメータを埋め込んだ認可URLを生成する。
	AuthorizationURL(state string) string

	// ExchangeCode は認可コードをトークンに交換する。
	// 上流の拒否・不正レスポンスはすべてエラーとして返す。
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)

	// FetchProfile はアクセストークンでユーザープロフィールを取得する。
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// APIKeyService はAPIキー所持証明に対応する取引所サービスの変種。
type APIKeyService interface {
	Service

	// ValidateCredentials はAPIキーペアの有効性を読み取り専用の
	// 残高照会で検証する。フェイルクローズド: 上流の応答が曖昧な場合や
	// エラーの場合は必ずfalseとして扱い、trueを返すのは明確な成功時のみ。
	ValidateCredentials(ctx context.Context, apiKey, apiSecret, passphrase string) (bool, error)
}

// Registry は取引所名からサービス実装への固定テーブル。
// プロセス起動時に構築され、以降は読み取り専用。動的登録は行わない。
type Registry struct {
	services map[string]Service
}

// NewRegistry は指定されたサービス群からRegistryを構築する。
func NewRegistry(services ...Service) *Registry {
	table := make(map[string]Service, len(services))
	for _, svc := range services {
		table[NormalizeName(svc.Descriptor().Name)] = svc
	}
	return &Registry{services: table}
}

// Resolve は取引所名に対応するサービスを返す。名前は大文字小文字を区別しない。
// 未登録の場合はUNKNOWN_EXCHANGEエラーを返す。
func (r *Registry) Resolve(name string) (Service, error) {
	svc, ok := r.services[NormalizeName(name)]
	if !ok {
		return nil, model.NewUnknownExchangeError(name)
	}
	return svc, nil
}

// Names は登録済みの取引所名一覧を返す。テストおよび起動時ログ用。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}
