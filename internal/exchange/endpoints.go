package exchange

import "fmt"

// EndpointValidator は外向きエンドポイントURLの事前検証インターフェース。
// security.SSRFGuardServiceのValidateURLが実装を提供する。
type EndpointValidator interface {
	ValidateURL(rawURL string) error
}

// ValidateEndpoints は登録予定の全取引所サービスの上流エンドポイントを
// 静的に検証する。誤設定で内部ネットワークを指すURLが混入した場合は
// 起動時に失敗させ、リクエスト処理まで到達させない。
// リダイレクトURLは自アプリ宛のため検証対象外。
func ValidateEndpoints(v EndpointValidator, services ...Service) error {
	for _, svc := range services {
		desc := svc.Descriptor()

		var endpoints []struct{ label, url string }
		switch desc.Kind {
		case KindOAuth:
			endpoints = []struct{ label, url string }{
				{"auth", desc.AuthURL},
				{"token", desc.TokenURL},
				{"profile", desc.ProfileURL},
			}
		case KindAPIKey:
			endpoints = []struct{ label, url string }{
				{"validate", desc.ValidateURL},
			}
		}

		for _, ep := range endpoints {
			if err := v.ValidateURL(ep.url); err != nil {
				return fmt.Errorf("exchange %s: %s endpoint rejected: %w", desc.Name, ep.label, err)
			}
		}
	}
	return nil
}
