// Package notify は連携完了時のユーザー通知を提供する。
// 通知はベストエフォートであり、配送失敗が連携フローを
// 失敗させることはない。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// defaultEndpoint はTelegram Bot APIのベースURL。
	defaultEndpoint = "https://api.telegram.org"
	// sendTimeout は1通知あたりの送信タイムアウト。
	// 連携フローの応答を通知の遅延で引き延ばさないための上限。
	sendTimeout = 5 * time.Second
)

// StatusConnected は連携成立時のステータス表記。
const StatusConnected = "Connected"

// Dispatcher は連携イベントの通知インターフェース。
type Dispatcher interface {
	// NotifyLinked は取引所連携の成立をユーザーに通知する。
	// secretPreviewには保存済み暗号文の先頭プレビューを渡す。平文の
	// 資格情報をこのインターフェースに渡してはならない。
	// 配送失敗はエラーとして返すが、呼び出し元はこれを飲み込み
	// 連携フローを失敗させてはならない。通知対象がない場合はno-op（nil）。
	NotifyLinked(ctx context.Context, chatID *int64, userID, exchangeDisplayName, status, secretPreview string) error
}

// TelegramNotifier はTelegram Bot API経由の通知実装。
type TelegramNotifier struct {
	httpClient *http.Client
	logger     *slog.Logger
	botToken   string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewTelegramNotifier はTelegramNotifierを生成する。
// botTokenが空の場合、通知は無効化され全呼び出しがno-opになる。
func NewTelegramNotifier(httpClient *http.Client, logger *slog.Logger, botToken string) *TelegramNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: sendTimeout}
	}
	return &TelegramNotifier{
		httpClient: httpClient,
		logger:     logger,
		botToken:   botToken,
		endpoint:   defaultEndpoint,
	}
}

// sendMessageRequest はsendMessage APIのリクエストボディ。
type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// NotifyLinked は取引所連携の成立を通知する。
// チャットIDが未登録のユーザー、トークン未設定の環境では何もしない。
func (n *TelegramNotifier) NotifyLinked(ctx context.Context, chatID *int64, userID, exchangeDisplayName, status, secretPreview string) error {
	if n.botToken == "" || chatID == nil {
		return nil
	}

	text := fmt.Sprintf(
		"🔔 *取引所連携通知*\n\n"+
			"👤 ユーザーID: `%s`\n"+
			"🏦 取引所: %s\n"+
			"📅 日時: %s\n"+
			"✅ ステータス: %s\n"+
			"🔐 暗号化トークン:\n`%s`\n\n"+
			"⚠️ *セキュリティ警告: このトークンを第三者と共有しないでください。*",
		userID, exchangeDisplayName, time.Now().Format("2006-01-02 15:04:05"),
		status, secretPreview)

	if err := n.send(ctx, *chatID, text); err != nil {
		return err
	}

	n.logger.Info("Telegram通知を送信しました", slog.String("exchange", exchangeDisplayName))
	return nil
}

// send はsendMessage APIを呼び出す。
func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Telegram APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("Telegram APIがエラーを返しました: status=%d body=%s", resp.StatusCode, string(body))
	}

	return nil
}

// compile-time interface check
var _ Dispatcher = (*TelegramNotifier)(nil)
