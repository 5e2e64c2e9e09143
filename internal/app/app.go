package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/exlink/internal/auth"
	"github.com/hitoshi/exlink/internal/config"
	"github.com/hitoshi/exlink/internal/database"
	"github.com/hitoshi/exlink/internal/exchange"
	"github.com/hitoshi/exlink/internal/handler"
	"github.com/hitoshi/exlink/internal/identity"
	"github.com/hitoshi/exlink/internal/logger"
	"github.com/hitoshi/exlink/internal/metrics"
	"github.com/hitoshi/exlink/internal/middleware"
	"github.com/hitoshi/exlink/internal/notify"
	"github.com/hitoshi/exlink/internal/repository"
	"github.com/hitoshi/exlink/internal/security"
	"github.com/hitoshi/exlink/internal/vault"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	connRepo := repository.NewPostgresConnectionRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	upstreamClient := ssrfGuard.NewSafeClient(cfg.UpstreamTimeout)

	cipher, err := security.NewAESGCMCipher(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize cipher: %w", err)
	}

	stateCodec, err := auth.NewStateTokenCodec(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize state codec: %w", err)
	}

	sanitizer := security.NewNameSanitizer()

	// 4. 取引所レジストリの構築
	services := exchange.DefaultServices(exchange.DefaultsOptions{
		Gemini: exchange.OAuthCredentials{
			ClientID:     cfg.GeminiClientID,
			ClientSecret: cfg.GeminiClientSecret,
			RedirectURL:  cfg.GeminiRedirectURL,
		},
		Binance: exchange.OAuthCredentials{
			ClientID:     cfg.BinanceClientID,
			ClientSecret: cfg.BinanceClientSecret,
			RedirectURL:  cfg.BinanceRedirectURL,
		},
		Coinbase: exchange.OAuthCredentials{
			ClientID:     cfg.CoinbaseClientID,
			ClientSecret: cfg.CoinbaseClientSecret,
			RedirectURL:  cfg.CoinbaseRedirectURL,
		},
		HTTPClient: upstreamClient,
	})

	// 上流エンドポイントの誤設定（内部ネットワーク宛等）は起動時に弾く
	if err := exchange.ValidateEndpoints(ssrfGuard, services...); err != nil {
		return fmt.Errorf("exchange endpoint validation failed: %w", err)
	}

	registry := exchange.NewRegistry(services...)

	// 5. メトリクス
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 6. ドメインサービスの初期化
	resolver := identity.NewResolver(userRepo, sanitizer, slog.Default())
	credVault := vault.NewCredentialVault(cipher, connRepo)
	// Telegram APIへの通知も取引所と同じSSRFガード付きクライアントで送る
	notifier := notify.NewTelegramNotifier(
		upstreamClient,
		slog.Default(),
		cfg.TelegramBotToken,
	)

	authService := auth.NewService(
		registry, stateCodec, resolver, credVault,
		userRepo, sessionRepo, notifier, collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 7. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.LoginRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
	rateLimiterCfg.LoginBurst = cfg.RateLimitLogin

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		StatusRecorder: collector,
		Gatherer:       promRegistry,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL: cfg.BaseURL,
		},

		ConnectionService: authService,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
