// Package identity は取引所認証の結果を内部アカウントに解決する。
// 解決は3つの経路に分かれる: 既存セッションへの紐付け（Bound）、
// メールアドレス一致による検索・作成（EmailMatch）、
// メールアドレスを持たない取引所のための合成ID（Synthetic）。
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/exlink/internal/model"
	"github.com/hitoshi/exlink/internal/repository"
	"github.com/hitoshi/exlink/internal/security"
)

// syntheticEmailDomain は合成メールアドレスのドメイン。
// 実在のメール配送先ではなく、アカウントの安定した識別子としてのみ機能する。
const syntheticEmailDomain = "exlink.local"

// Resolver は取引所プロフィールから内部アカウントを解決・作成する。
// 既存アカウントのメールアドレスや名前を変更することはない。
type Resolver struct {
	userRepo  repository.UserRepository
	sanitizer security.NameSanitizerService
	logger    *slog.Logger
}

// NewResolver はResolverを生成する。
func NewResolver(userRepo repository.UserRepository, sanitizer security.NameSanitizerService, logger *slog.Logger) *Resolver {
	return &Resolver{
		userRepo:  userRepo,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// ResolveBound は連携開始時に紐付けられたユーザーIDを既存アカウントに解決する。
// アカウントが存在しない場合はUSER_NOT_FOUNDエラーを返す。
// 紐付けIDがある場合、メールアドレス一致や合成IDへのフォールバックは行わない。
func (r *Resolver) ResolveBound(ctx context.Context, userID string) (*model.User, error) {
	user, err := r.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find bound user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// ResolveByEmail はメールアドレスで既存アカウントを検索し、
// 存在しなければ新規作成する。作成は空のプロフィール行を伴う。
// 並行作成の競合（一意制約違反）では一度だけ再検索し、勝者の行を採用する。
func (r *Resolver) ResolveByEmail(ctx context.Context, email, name, exchangeDisplayName string) (*model.User, error) {
	user, err := r.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user != nil {
		return user, nil
	}

	displayName := r.sanitizer.Sanitize(name)
	if displayName == "" {
		displayName = exchangeDisplayName + " User"
	}

	now := time.Now()
	newUser := &model.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      displayName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	profile := &model.UserProfile{
		UserID:    newUser.ID,
		CreatedAt: now,
	}

	err = r.userRepo.CreateWithProfile(ctx, newUser, profile)
	if err == nil {
		r.logger.Info("user created", "user_id", newUser.ID)
		return newUser, nil
	}

	if errors.Is(err, repository.ErrDuplicateEmail) {
		// 並行作成で後着になった。勝者の行を再検索して採用する。
		r.logger.Info("concurrent user creation detected, re-reading winner row")
		winner, findErr := r.userRepo.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, fmt.Errorf("failed to re-read user after duplicate: %w", findErr)
		}
		if winner == nil {
			return nil, fmt.Errorf("user not found after duplicate email conflict")
		}
		return winner, nil
	}

	return nil, fmt.Errorf("failed to create user: %w", err)
}

// ResolveSynthetic はメールアドレスを持たない認証（APIキー連携、
// プロフィールにメールを含まない取引所のOAuth）のために、
// 取引所名と資格情報から決定的な合成アカウントを解決・作成する。
// 同じ資格情報による再ログインは常に同じアカウントに解決される。
func (r *Resolver) ResolveSynthetic(ctx context.Context, exchangeName, exchangeDisplayName, credential string) (*model.User, error) {
	email := SyntheticEmail(exchangeName, credential)
	return r.ResolveByEmail(ctx, email, "", exchangeDisplayName)
}

// SyntheticEmail は取引所名と資格情報から決定的な合成メールアドレスを生成する。
// 資格情報そのものはアドレスに含まれず、ハッシュの先頭8桁のみが使われる。
func SyntheticEmail(exchangeName, credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return fmt.Sprintf("%s_%s@%s", exchangeName, hex.EncodeToString(sum[:])[:8], syntheticEmailDomain)
}

// FallbackEmail はプロフィール契約にメールアドレスを含まないOAuth取引所のために、
// 取引所の外部IDから決定的な合成メールアドレスを生成する。
// 外部IDは秘匿情報ではないためハッシュ化せずそのまま埋め込む。
func FallbackEmail(exchangeName, externalID string) string {
	return fmt.Sprintf("%s_%s@%s", exchangeName, externalID, syntheticEmailDomain)
}
