package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RequestSigner は取引所固有の署名方式で検証リクエストを構築する関数。
// 取引所ごとにHMACの対象文字列とヘッダー名が異なるため、関数として注入する。
type RequestSigner func(ctx context.Context, endpoint, apiKey, apiSecret, passphrase string, now time.Time) (*http.Request, error)

// APIKeyClient はAPIキー所持証明による取引所連携の実装。
// 低リスクな読み取り専用の残高照会で所持証明を行う。
type APIKeyClient struct {
	desc       Descriptor
	httpClient *http.Client
	signer     RequestSigner
	now        func() time.Time // テスト用に差し替え可能
}

// NewAPIKeyClient はAPIKeyClientを生成する。
func NewAPIKeyClient(desc Descriptor, httpClient *http.Client, signer RequestSigner) *APIKeyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIKeyClient{
		desc:       desc,
		httpClient: httpClient,
		signer:     signer,
		now:        time.Now,
	}
}

// Descriptor は取引所の静的な連携定義を返す。
func (c *APIKeyClient) Descriptor() Descriptor {
	return c.desc
}

// validateResponse は残高照会レスポンスの最小限の形。
// Kraken形式の error 配列があれば拒否判定に使用する。
type validateResponse struct {
	Error []string `json:"error"`
}

// ValidateCredentials はAPIキーペアの有効性を検証する。
// フェイルクローズド: 明確な成功（2xxかつエラーなしのJSON）のみをtrueとし、
// 認証拒否・上流エラー・パース不能な応答はすべてfalseとして扱う。
// 通信エラーの場合もfalseを返す（invalidとして扱われる）。
func (c *APIKeyClient) ValidateCredentials(ctx context.Context, apiKey, apiSecret, passphrase string) (bool, error) {
	req, err := c.signer(ctx, c.desc.ValidateURL, apiKey, apiSecret, passphrase, c.now())
	if err != nil {
		return false, fmt.Errorf("failed to build validation request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read validation response: %w", err)
	}

	// 2xx以外はすべて無効扱い（401/403の明確な拒否も、5xx等の曖昧な失敗も区別しない）
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return false, nil
	}

	var validateResp validateResponse
	if err := json.Unmarshal(body, &validateResp); err != nil {
		// パース不能な2xxは曖昧な応答であり、有効とは判定しない
		return false, nil
	}
	if len(validateResp.Error) > 0 {
		return false, nil
	}

	return true, nil
}

// NewKrakenSigner はKraken方式の署名リクエストを構築するRequestSignerを返す。
// API-Sign = base64(HMAC-SHA512(path + SHA256(nonce + postdata), base64decode(secret)))
func NewKrakenSigner() RequestSigner {
	return func(ctx context.Context, endpoint, apiKey, apiSecret, _ string, now time.Time) (*http.Request, error) {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint URL: %w", err)
		}

		nonce := strconv.FormatInt(now.UnixMilli(), 10)
		data := url.Values{"nonce": {nonce}}
		postData := data.Encode()

		secret, err := base64.StdEncoding.DecodeString(apiSecret)
		if err != nil {
			// Krakenのシークレットはbase64形式。復号できない場合はそのまま使用する
			// （上流が拒否し、フェイルクローズドでinvalidになる）。
			secret = []byte(apiSecret)
		}

		shaSum := sha256.Sum256([]byte(nonce + postData))
		mac := hmac.New(sha512.New, secret)
		mac.Write([]byte(parsed.Path))
		mac.Write(shaSum[:])
		signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(postData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("API-Key", apiKey)
		req.Header.Set("API-Sign", signature)
		return req, nil
	}
}

// NewBitgetSigner はBitget方式の署名リクエストを構築するRequestSignerを返す。
// ACCESS-SIGN = base64(HMAC-SHA256(timestamp + method + requestPath, secret))
func NewBitgetSigner() RequestSigner {
	return func(ctx context.Context, endpoint, apiKey, apiSecret, passphrase string, now time.Time) (*http.Request, error) {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint URL: %w", err)
		}

		timestamp := strconv.FormatInt(now.UnixMilli(), 10)
		requestPath := parsed.Path
		if parsed.RawQuery != "" {
			requestPath += "?" + parsed.RawQuery
		}

		mac := hmac.New(sha256.New, []byte(apiSecret))
		mac.Write([]byte(timestamp + http.MethodGet + requestPath))
		signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("ACCESS-KEY", apiKey)
		req.Header.Set("ACCESS-SIGN", signature)
		req.Header.Set("ACCESS-TIMESTAMP", timestamp)
		if passphrase != "" {
			req.Header.Set("ACCESS-PASSPHRASE", passphrase)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}

// compile-time interface check
var _ APIKeyService = (*APIKeyClient)(nil)
