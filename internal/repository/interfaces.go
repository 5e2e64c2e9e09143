// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/exlink/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
// 同一メールアドレスへの並行アカウント作成で後着側が受け取る。
// 呼び出し元（IdentityResolver）は再検索で勝者の行を採用する。
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithProfile はユーザーと空のプロフィール行を同一トランザクションで作成する。
	// メールアドレスの一意制約違反の場合はErrDuplicateEmailを返す。
	// 一意性の権威はストレージ層の制約であり、アプリケーション側の
	// 事前チェックには依存しない。
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.UserProfile) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ConnectionRepository は取引所連携情報の永続化インターフェース。
type ConnectionRepository interface {
	// Upsert は連携情報を(user_id, exchange)キーで冪等に保存する。
	// 既存行がある場合は秘匿フィールドを丸ごと置き換える（後勝ち）。
	// 同一ペアへの並行保存はストレージ層の一意制約で直列化され、
	// 行が重複することはない。
	Upsert(ctx context.Context, conn *model.ExchangeConnection) error

	// ListByUserID はユーザーの連携一覧を返す。秘匿フィールドは含まない。
	ListByUserID(ctx context.Context, userID string) ([]model.ConnectionSummary, error)
}
