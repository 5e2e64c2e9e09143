package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/exlink/internal/middleware"
	"github.com/hitoshi/exlink/internal/model"
)

// ConnectionListerInterface は連携一覧ハンドラーが必要とするサービスインターフェース。
type ConnectionListerInterface interface {
	ListConnections(ctx context.Context, userID string) ([]model.ConnectionSummary, error)
}

// ConnectionHandler は取引所連携一覧のHTTPハンドラー。
type ConnectionHandler struct {
	service ConnectionListerInterface
}

// NewConnectionHandler はConnectionHandlerを生成する。
func NewConnectionHandler(service ConnectionListerInterface) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// ListExchanges はログインユーザーの連携一覧を返す。レスポンスに秘匿情報は含まない。
// GET /api/exchanges
func (h *ConnectionHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	summaries, err := h.service.ListConnections(r.Context(), userID)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if summaries == nil {
		summaries = []model.ConnectionSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"exchanges": summaries,
	})
}
