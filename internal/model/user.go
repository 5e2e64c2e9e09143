// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// メールアドレスはアカウントの一意キーであり、作成後は変更されない。
type User struct {
	ID             string
	Email          string
	Name           string
	TelegramChatID *int64 // Telegram通知先。未設定の場合はnil。
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserProfile はユーザーの公開プロフィール行を表す。
// アカウント作成時に空の状態で同時に作成される。
type UserProfile struct {
	UserID    string
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// セッションIDはBearerトークンとしてクライアントに渡される。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
