// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/exlink/internal/middleware"
	"github.com/hitoshi/exlink/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginOAuth(ctx context.Context, exchangeName, boundUserID string) (string, error)
	CompleteOAuth(ctx context.Context, exchangeName, code, state string) (*model.Session, error)
	APIKeyLogin(ctx context.Context, exchangeName, apiKey, apiSecret, passphrase string) (*model.Session, error)
	APIKeyConnect(ctx context.Context, exchangeName, userID, apiKey, apiSecret, passphrase string) error
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string // コールバック後のリダイレクト先フロントエンドURL
}

// AuthHandler は取引所連携・セッション関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// apiKeyRequest はPOST /auth/{exchange}のリクエストボディ。
type apiKeyRequest struct {
	APIKey     string `json:"apiKey"`
	APISecret  string `json:"apiSecret"`
	Passphrase string `json:"passphrase"`
	IsLogin    bool   `json:"isLogin"`
}

// Begin はOAuthフローを開始し、認可URLをJSONで返す。
// セッションが付与されている場合、コールバック後の紐付け先がそのユーザーに固定される。
// APIキー専用の取引所には認可URLの代わりに手動連携の案内を返す。
// GET /auth/{exchange}
func (h *AuthHandler) Begin(w http.ResponseWriter, r *http.Request) {
	exchangeName := chi.URLParam(r, "exchange")

	// 任意セッション: 未認証なら匿名として扱う
	boundUserID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		boundUserID = ""
	}

	authURL, err := h.service.BeginOAuth(r.Context(), exchangeName, boundUserID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeOAuthNotSupported {
			// OAuth非対応の取引所はAPIキーでの連携を案内する
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"message": apiErr.Message,
				"method":  "API_KEY",
			})
			return
		}
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": authURL})
}

// Callback はOAuthコールバックを処理し、セッショントークン付きで
// フロントエンドのダッシュボードへリダイレクトする。
// GET /auth/{exchange}/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	exchangeName := chi.URLParam(r, "exchange")
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	session, err := h.service.CompleteOAuth(r.Context(), exchangeName, code, state)
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("exchange", exchangeName),
			slog.String("error", err.Error()),
		)
		writeAPIError(w, err)
		return
	}

	redirectURL := h.config.BaseURL + "/dashboard?session_token=" + url.QueryEscape(session.ID)
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}

// APIKeyAuth はAPIキーによるログインまたは既存アカウントへの連携追加を処理する。
// isLogin=trueの場合は検証成功後にセッションを発行する。
// isLogin=falseの場合はBearerトークンで認証済みのユーザーに連携を追加する。
// POST /auth/{exchange}
func (h *AuthHandler) APIKeyAuth(w http.ResponseWriter, r *http.Request) {
	exchangeName := chi.URLParam(r, "exchange")

	var req apiKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingCredentialsError())
		return
	}

	if req.IsLogin {
		session, err := h.service.APIKeyLogin(r.Context(), exchangeName, req.APIKey, req.APISecret, req.Passphrase)
		if err != nil {
			writeAPIError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"session": map[string]interface{}{
				"id":         session.ID,
				"expires_at": session.ExpiresAt.Format(time.RFC3339),
			},
		})
		return
	}

	// 連携追加はログイン済みユーザーのみ
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.APIKeyConnect(r.Context(), exchangeName, userID, req.APIKey, req.APISecret, req.Passphrase); err != nil {
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "連携が完了しました。",
	})
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
			// ログアウト失敗でもクライアント側のトークン破棄は妨げない
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), token)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

// writeAPIError はサービス層のエラーを統一フォーマットのHTTPレスポンスに変換する。
// APIErrorでないエラーは詳細を隠して500を返す。
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unexpected error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.WriteErrorResponse(w, httpStatusForCategory(apiErr), apiErr)
}

// httpStatusForCategory はエラーカテゴリをHTTPステータスコードに対応付ける。
func httpStatusForCategory(apiErr *model.APIError) int {
	switch apiErr.Category {
	case "validation":
		return http.StatusBadRequest
	case "auth":
		return http.StatusUnauthorized
	case "exchange":
		// 上流取引所に起因する失敗
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
