package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/exlink/internal/model"
)

// TestRouterIntegration_MiddlewareChain は本番と同じ構成のミドルウェアチェーン
// （CORS -> OptionalSession/Session -> RateLimit）がchi.Routerで正しく動作することを検証する。
func TestRouterIntegration_MiddlewareChain(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "router-test-session" {
				return &model.Session{
					ID:        "router-test-session",
					UserID:    "user-router-test",
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    200,
		LoginRate:       1,
		LoginBurst:      2,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewCORSMiddleware("http://localhost:3000"))

	// 連携開始ルート: 未認証でも通すが、セッションがあればユーザーIDを引き継ぐ
	r.Group(func(r chi.Router) {
		r.Use(NewOptionalSessionMiddleware(repo))
		r.Use(rl.LoginMiddleware())

		r.Get("/auth/{exchange}", func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				userID = ""
			}
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})
	})

	// 認証が必要なルートグループ
	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(repo))
		r.Use(rl.GeneralMiddleware())

		r.Get("/api/exchanges", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})
	})

	// テスト1: GET /api/exchanges はBearerトークンありで通る
	t.Run("API_with_bearer_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/exchanges", nil)
		req.Header.Set("Authorization", "Bearer router-test-session")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}

		var body map[string]string
		json.NewDecoder(w.Result().Body).Decode(&body)
		if body["user_id"] != "user-router-test" {
			t.Errorf("user_id = %q, want %q", body["user_id"], "user-router-test")
		}
	})

	// テスト2: GET /api/exchanges はトークンなしで401
	t.Run("API_without_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/exchanges", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
		}
	})

	// テスト3: GET /auth/{exchange} は未認証でも通り、匿名として扱われる
	t.Run("Auth_route_anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/gemini", nil)
		req.RemoteAddr = "203.0.113.20:40000"
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}

		var body map[string]string
		json.NewDecoder(w.Result().Body).Decode(&body)
		if body["user_id"] != "" {
			t.Errorf("user_id = %q, want empty (anonymous)", body["user_id"])
		}
	})

	// テスト4: GET /auth/{exchange} はBearerトークンがあればユーザーIDが載る
	t.Run("Auth_route_with_session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/gemini", nil)
		req.RemoteAddr = "203.0.113.21:40000"
		req.Header.Set("Authorization", "Bearer router-test-session")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}

		var body map[string]string
		json.NewDecoder(w.Result().Body).Decode(&body)
		if body["user_id"] != "user-router-test" {
			t.Errorf("user_id = %q, want %q", body["user_id"], "user-router-test")
		}
	})

	// テスト5: 連携試行はIP単位でレート制限される
	t.Run("Auth_route_rate_limited_per_IP", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/auth/gemini", nil)
			req.RemoteAddr = "203.0.113.22:40000"
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusOK {
				t.Fatalf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
			}
		}

		req := httptest.NewRequest(http.MethodGet, "/auth/gemini", nil)
		req.RemoteAddr = "203.0.113.22:40000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusTooManyRequests {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
		}
	})
}
