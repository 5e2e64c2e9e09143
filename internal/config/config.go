package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// 暗号化（64文字の16進文字列 = AES-256の32バイト鍵）
	EncryptionKey string

	// OAuth（取引所ごとのクライアント設定。未設定の取引所は連携開始時にエラーになる）
	GeminiClientID       string
	GeminiClientSecret   string
	GeminiRedirectURL    string
	BinanceClientID      string
	BinanceClientSecret  string
	BinanceRedirectURL   string
	CoinbaseClientID     string
	CoinbaseClientSecret string
	CoinbaseRedirectURL  string

	// Session
	SessionMaxAge int

	// Notification
	TelegramBotToken string

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Upstream
	UpstreamTimeout time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")
	if cfg.EncryptionKey == "" {
		missing = append(missing, "ENCRYPTION_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := validateEncryptionKey(cfg.EncryptionKey); err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}

	// OAuthクライアント設定（取引所ごとに任意）
	cfg.GeminiClientID = os.Getenv("GEMINI_CLIENT_ID")
	cfg.GeminiClientSecret = os.Getenv("GEMINI_CLIENT_SECRET")
	cfg.GeminiRedirectURL = os.Getenv("GEMINI_REDIRECT_URL")
	cfg.BinanceClientID = os.Getenv("BINANCE_CLIENT_ID")
	cfg.BinanceClientSecret = os.Getenv("BINANCE_CLIENT_SECRET")
	cfg.BinanceRedirectURL = os.Getenv("BINANCE_REDIRECT_URL")
	cfg.CoinbaseClientID = os.Getenv("COINBASE_CLIENT_ID")
	cfg.CoinbaseClientSecret = os.Getenv("COINBASE_CLIENT_SECRET")
	cfg.CoinbaseRedirectURL = os.Getenv("COINBASE_REDIRECT_URL")

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// validateEncryptionKey は鍵がAES-256に使える32バイトの16進文字列であることを確認する。
func validateEncryptionKey(keyHex string) error {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return fmt.Errorf("must be a hex string: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
