package exchange

import "net/http"

// OAuthCredentials は運用環境から注入されるOAuthクライアント資格情報。
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// DefaultsOptions は標準取引所セットの構築に必要な外部入力。
type DefaultsOptions struct {
	Gemini   OAuthCredentials
	Binance  OAuthCredentials
	Coinbase OAuthCredentials

	// HTTPClient は上流取引所への通信に使用する。SSRFガード付きクライアントを渡す。
	HTTPClient *http.Client
}

// DefaultServices はサポート対象の取引所サービス一式を構築する。
// 登録内容は起動時に確定し、以降変更されない。
func DefaultServices(opts DefaultsOptions) []Service {
	return []Service{
		NewOAuthClient(Descriptor{
			Name:         "gemini",
			DisplayName:  "Gemini",
			Kind:         KindOAuth,
			AuthURL:      "https://exchange.gemini.com/auth",
			TokenURL:     "https://exchange.gemini.com/auth/token",
			ProfileURL:   "https://api.gemini.com/v1/account",
			Scopes:       "account:read balances:read",
			ClientID:     opts.Gemini.ClientID,
			ClientSecret: opts.Gemini.ClientSecret,
			RedirectURL:  opts.Gemini.RedirectURL,
		}, opts.HTTPClient),
		NewOAuthClient(Descriptor{
			Name:        "binance",
			DisplayName: "Binance",
			Kind:        KindOAuth,
			AuthURL:     "https://accounts.binance.com/en/oauth/authorize",
			TokenURL:    "https://accounts.binance.com/oauth/token",
			ProfileURL:  "https://accounts.binance.com/oauth-api/user-info",
			Scopes:      "user:openId",
			// BinanceのプロフィールAPIはメールアドレスを返さないため、
			// APIキー連携と同様に合成メールで識別する。
			SyntheticProfileEmail: true,
			ClientID:              opts.Binance.ClientID,
			ClientSecret:          opts.Binance.ClientSecret,
			RedirectURL:           opts.Binance.RedirectURL,
		}, opts.HTTPClient),
		NewOAuthClient(Descriptor{
			Name:         "coinbase",
			DisplayName:  "Coinbase",
			Kind:         KindOAuth,
			AuthURL:      "https://login.coinbase.com/oauth2/auth",
			TokenURL:     "https://login.coinbase.com/oauth2/token",
			ProfileURL:   "https://api.coinbase.com/v2/user",
			Scopes:       "wallet:user:read wallet:user:email",
			ClientID:     opts.Coinbase.ClientID,
			ClientSecret: opts.Coinbase.ClientSecret,
			RedirectURL:  opts.Coinbase.RedirectURL,
		}, opts.HTTPClient),
		NewAPIKeyClient(Descriptor{
			Name:        "kraken",
			DisplayName: "Kraken",
			Kind:        KindAPIKey,
			ValidateURL: "https://api.kraken.com/0/private/Balance",
		}, opts.HTTPClient, NewKrakenSigner()),
		NewAPIKeyClient(Descriptor{
			Name:               "bitget",
			DisplayName:        "Bitget",
			Kind:               KindAPIKey,
			ValidateURL:        "https://api.bitget.com/api/v2/spot/account/assets",
			RequiresPassphrase: true,
		}, opts.HTTPClient, NewBitgetSigner()),
	}
}
