package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OAuthClient は認可コードフローによる取引所連携の実装。
// Gemini、Binance、Coinbase等のOAuth対応取引所で共用され、
// 差分はDescriptorのエンドポイント設定として注入される。
type OAuthClient struct {
	desc       Descriptor
	httpClient *http.Client
}

// NewOAuthClient はOAuthClientを生成する。
func NewOAuthClient(desc Descriptor, httpClient *http.Client) *OAuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &OAuthClient{desc: desc, httpClient: httpClient}
}

// Descriptor は取引所の静的な連携定義を返す。
func (c *OAuthClient) Descriptor() Descriptor {
	return c.desc
}

// AuthorizationURL はstateパラメータを埋め込んだ認可URLを生成する。
func (c *OAuthClient) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {c.desc.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {c.desc.RedirectURL},
		"state":         {state},
	}
	if c.desc.Scopes != "" {
		params.Set("scope", c.desc.Scopes)
	}
	return c.desc.AuthURL + "?" + params.Encode()
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 非2xx応答、パース不能なボディ、空のアクセストークンはすべて失敗。
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {c.desc.ClientID},
		"client_secret": {c.desc.ClientSecret},
		"redirect_uri":  {c.desc.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.desc.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	tokens := &TokenSet{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}
	if tokenResp.ExpiresIn > 0 {
		expiresAt := time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
		tokens.ExpiresAt = &expiresAt
	}

	return tokens, nil
}

// profileResponse はプロフィールエンドポイントのレスポンス。
// 取引所ごとにフィールド名が揺れるため、代表的なキーを重ねて受ける。
type profileResponse struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Sub    string `json:"sub"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// FetchProfile はアクセストークンでユーザープロフィールを取得する。
func (c *OAuthClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.desc.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var profileResp profileResponse
	if err := json.Unmarshal(body, &profileResp); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}

	externalID := firstNonEmpty(profileResp.ID, profileResp.UserID, profileResp.Sub)
	if externalID == "" {
		return nil, fmt.Errorf("empty external ID in profile response")
	}

	return &Profile{
		ExternalID: externalID,
		Email:      profileResp.Email,
		Name:       profileResp.Name,
	}, nil
}

// firstNonEmpty は最初の空でない文字列を返す。
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// compile-time interface check
var _ OAuthService = (*OAuthClient)(nil)
