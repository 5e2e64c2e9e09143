// Package auth は取引所連携フローのオーケストレーション、
// stateトークンの符号化、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/exlink/internal/exchange"
	"github.com/hitoshi/exlink/internal/identity"
	"github.com/hitoshi/exlink/internal/metrics"
	"github.com/hitoshi/exlink/internal/model"
	"github.com/hitoshi/exlink/internal/notify"
	"github.com/hitoshi/exlink/internal/repository"
	"github.com/hitoshi/exlink/internal/vault"
)

// メトリクスのflow / stageラベル値。
const (
	flowOAuth  = "oauth"
	flowAPIKey = "api_key"

	stageStateDecode   = "state_decode"
	stageTokenExchange = "token_exchange"
	stageProfile       = "profile"
	stageValidate      = "validate"
	stageResolve       = "resolve"
	stagePersist       = "persist"
)

// ServiceConfig は連携サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は取引所連携のワークフローを逐次実行する。
// OAuthの開始・完了、APIキーによるログイン・連携の各経路で、
// レジストリ解決 → 認証 → アカウント解決 → 暗号化保存 → セッション発行 →
// ベストエフォート通知、の順に処理する。
type Service struct {
	registry    *exchange.Registry
	states      *StateTokenCodec
	resolver    *identity.Resolver
	vault       *vault.CredentialVault
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	notifier    notify.Dispatcher
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	registry *exchange.Registry,
	states *StateTokenCodec,
	resolver *identity.Resolver,
	credVault *vault.CredentialVault,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	notifier notify.Dispatcher,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		registry:    registry,
		states:      states,
		resolver:    resolver,
		vault:       credVault,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		notifier:    notifier,
		metrics:     collector,
		config:      config,
	}
}

// BeginOAuth はOAuthフローを開始し、stateトークンを埋め込んだ認可URLを返す。
// boundUserIDが空でない場合、コールバックでの解決先がそのアカウントに固定される。
// APIキー専用の取引所に対してはOAUTH_NOT_SUPPORTEDを返す（ハンドラーが
// 手動連携の案内に変換する）。URLの生成までで副作用はない。
func (s *Service) BeginOAuth(ctx context.Context, exchangeName, boundUserID string) (string, error) {
	svc, err := s.registry.Resolve(exchangeName)
	if err != nil {
		return "", err
	}

	oauthSvc, ok := svc.(exchange.OAuthService)
	if !ok {
		return "", model.NewOAuthNotSupportedError(svc.Descriptor().DisplayName)
	}

	state, err := s.states.Encode(boundUserID)
	if err != nil {
		return "", fmt.Errorf("failed to encode state token: %w", err)
	}

	return oauthSvc.AuthorizationURL(state), nil
}

// CompleteOAuth はOAuthコールバックを処理する。
// codeは必須。stateは復号に失敗しても中断せず匿名ログインに降格する。
// トークン交換・プロフィール取得・アカウント解決・暗号化保存を経て
// セッションを発行し、最後にベストエフォートで通知する。
func (s *Service) CompleteOAuth(ctx context.Context, exchangeName, code, state string) (*model.Session, error) {
	svc, err := s.registry.Resolve(exchangeName)
	if err != nil {
		return nil, err
	}
	desc := svc.Descriptor()

	oauthSvc, ok := svc.(exchange.OAuthService)
	if !ok {
		return nil, model.NewOAuthNotSupportedError(desc.DisplayName)
	}

	if code == "" {
		return nil, model.NewMissingCodeError()
	}

	// stateの解読失敗はエラーではなく匿名フローへの降格
	boundUserID, bound := s.states.Decode(state)
	if !bound && state != "" {
		slog.Warn("state token decode failed, continuing as anonymous",
			slog.String("exchange", desc.Name))
		s.metrics.RecordLinkFailure(desc.Name, flowOAuth, stageStateDecode)
	}

	start := time.Now()
	tokens, err := oauthSvc.ExchangeCode(ctx, code)
	s.metrics.RecordUpstreamLatency(desc.Name, stageTokenExchange, time.Since(start))
	if err != nil {
		s.metrics.RecordLinkFailure(desc.Name, flowOAuth, stageTokenExchange)
		return nil, model.NewTokenExchangeFailedError(desc.DisplayName, err.Error())
	}

	start = time.Now()
	profile, err := oauthSvc.FetchProfile(ctx, tokens.AccessToken)
	s.metrics.RecordUpstreamLatency(desc.Name, stageProfile, time.Since(start))
	if err != nil {
		s.metrics.RecordLinkFailure(desc.Name, flowOAuth, stageProfile)
		return nil, model.NewTokenExchangeFailedError(desc.DisplayName, err.Error())
	}

	user, err := s.resolveOAuthUser(ctx, desc, boundUserID, bound, profile)
	if err != nil {
		s.metrics.RecordLinkFailure(desc.Name, flowOAuth, stageResolve)
		return nil, err
	}

	ciphertext, err := s.vault.SaveOAuth(ctx, user.ID, desc.Name, vault.OAuthMaterial{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	})
	if err != nil {
		s.metrics.RecordLinkFailure(desc.Name, flowOAuth, stagePersist)
		return nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.dispatchNotification(ctx, user, desc.DisplayName, ciphertext)
	s.metrics.RecordLinkSuccess(desc.Name, flowOAuth)

	slog.Info("exchange linked via oauth",
		slog.String("user_id", user.ID),
		slog.String("exchange", desc.Name),
		slog.Bool("bound", bound),
	)

	return session, nil
}

// resolveOAuthUser はOAuthプロフィールから内部アカウントを解決する。
// 紐付けIDがある場合はそのアカウントに固定し、メール一致や合成IDへの
// フォールバックは行わない。
func (s *Service) resolveOAuthUser(ctx context.Context, desc exchange.Descriptor, boundUserID string, bound bool, profile *exchange.Profile) (*model.User, error) {
	if bound {
		return s.resolver.ResolveBound(ctx, boundUserID)
	}

	email := profile.Email
	if email == "" {
		if !desc.SyntheticProfileEmail {
			return nil, model.NewProfileIncompleteError(desc.DisplayName)
		}
		// メールアドレスを返さない契約の取引所は外部IDから合成する
		email = identity.FallbackEmail(desc.Name, profile.ExternalID)
	}

	return s.resolver.ResolveByEmail(ctx, email, profile.Name, desc.DisplayName)
}

// APIKeyLogin はAPIキーペアによるログインを処理し、新しいセッションを発行する。
// 検証に失敗した資格情報はアカウント作成も保存も行わずに拒否される。
func (s *Service) APIKeyLogin(ctx context.Context, exchangeName, apiKey, apiSecret, passphrase string) (*model.Session, error) {
	apiKeySvc, desc, err := s.resolveAPIKeyService(exchangeName)
	if err != nil {
		return nil, err
	}

	if err := s.validateAPIKey(ctx, apiKeySvc, desc, apiKey, apiSecret, passphrase); err != nil {
		return nil, err
	}

	user, err := s.resolver.ResolveSynthetic(ctx, desc.Name, desc.DisplayName, apiKey)
	if err != nil {
		s.metrics.RecordLinkFailure(desc.Name, flowAPIKey, stageResolve)
		return nil, err
	}

	ciphertext, err := s.saveAPIKey(ctx, user.ID, desc, apiKey, apiSecret, passphrase)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.dispatchNotification(ctx, user, desc.DisplayName, ciphertext)
	s.metrics.RecordLinkSuccess(desc.Name, flowAPIKey)

	slog.Info("user logged in via api key",
		slog.String("user_id", user.ID),
		slog.String("exchange", desc.Name),
	)

	return session, nil
}

// APIKeyConnect は既存アカウントにAPIキー連携を追加する。
// userIDは認証済みセッションから取り出された値でなければならない。
// 未認証の呼び出しは検証にも保存にも進まない。
func (s *Service) APIKeyConnect(ctx context.Context, exchangeName, userID, apiKey, apiSecret, passphrase string) error {
	if userID == "" {
		return model.NewUnauthorizedError()
	}

	apiKeySvc, desc, err := s.resolveAPIKeyService(exchangeName)
	if err != nil {
		return err
	}

	if err := s.validateAPIKey(ctx, apiKeySvc, desc, apiKey, apiSecret, passphrase); err != nil {
		return err
	}

	user, err := s.resolver.ResolveBound(ctx, userID)
	if err != nil {
		s.metrics.RecordLinkFailure(desc.Name, flowAPIKey, stageResolve)
		return err
	}

	ciphertext, err := s.saveAPIKey(ctx, user.ID, desc, apiKey, apiSecret, passphrase)
	if err != nil {
		return err
	}

	s.dispatchNotification(ctx, user, desc.DisplayName, ciphertext)
	s.metrics.RecordLinkSuccess(desc.Name, flowAPIKey)

	slog.Info("exchange connected via api key",
		slog.String("user_id", user.ID),
		slog.String("exchange", desc.Name),
	)

	return nil
}

// resolveAPIKeyService は取引所名をAPIキー対応サービスに解決する。
func (s *Service) resolveAPIKeyService(exchangeName string) (exchange.APIKeyService, exchange.Descriptor, error) {
	svc, err := s.registry.Resolve(exchangeName)
	if err != nil {
		return nil, exchange.Descriptor{}, err
	}
	apiKeySvc, ok := svc.(exchange.APIKeyService)
	if !ok {
		return nil, exchange.Descriptor{}, model.NewAPIKeyNotSupportedError(svc.Descriptor().DisplayName)
	}
	return apiKeySvc, svc.Descriptor(), nil
}

// validateAPIKey は資格情報の存在チェックと上流検証を行う。
// 検証失敗時は副作用なしで終端エラーを返す。
func (s *Service) validateAPIKey(ctx context.Context, svc exchange.APIKeyService, desc exchange.Descriptor, apiKey, apiSecret, passphrase string) error {
	if apiKey == "" || apiSecret == "" {
		return model.NewMissingCredentialsError()
	}

	start := time.Now()
	valid, err := svc.ValidateCredentials(ctx, apiKey, apiSecret, passphrase)
	s.metrics.RecordUpstreamLatency(desc.Name, stageValidate, time.Since(start))
	if err != nil {
		slog.Warn("api key validation error",
			slog.String("exchange", desc.Name),
			slog.String("error", err.Error()),
		)
	}
	if err != nil || !valid {
		s.metrics.RecordLinkFailure(desc.Name, flowAPIKey, stageValidate)
		return model.NewInvalidCredentialsError(desc.DisplayName)
	}
	return nil
}

// saveAPIKey は検証済みのAPIキー資格情報を暗号化保存し、
// 保存されたAPIキーの暗号文を返す。
func (s *Service) saveAPIKey(ctx context.Context, userID string, desc exchange.Descriptor, apiKey, apiSecret, passphrase string) (string, error) {
	ciphertext, err := s.vault.SaveAPIKey(ctx, userID, desc.Name, vault.APIKeyMaterial{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Passphrase: passphrase,
	})
	if err != nil {
		s.metrics.RecordLinkFailure(desc.Name, flowAPIKey, stagePersist)
		return "", err
	}
	return ciphertext, nil
}

// dispatchNotification は連携完了通知をベストエフォートで送る。
// 通知には保存済み暗号文の先頭プレビューのみを含め、平文は渡さない。
// 配送失敗はログとメトリクスに記録するだけで、フローの成否には影響しない。
func (s *Service) dispatchNotification(ctx context.Context, user *model.User, exchangeDisplayName, ciphertext string) {
	if err := s.notifier.NotifyLinked(ctx, user.TelegramChatID, user.ID, exchangeDisplayName,
		notify.StatusConnected, vault.SecretPreview(ciphertext)); err != nil {
		slog.Warn("link notification failed",
			slog.String("user_id", user.ID),
			slog.String("exchange", exchangeDisplayName),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordNotification("failure")
		return
	}
	s.metrics.RecordNotification("success")
}

// ListConnections はユーザーの連携一覧を返す。秘匿フィールドは含まない。
func (s *Service) ListConnections(ctx context.Context, userID string) ([]model.ConnectionSummary, error) {
	return s.vault.List(ctx, userID)
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
