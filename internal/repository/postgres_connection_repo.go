package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/exlink/internal/model"
)

// PostgresConnectionRepo はPostgreSQLを使用した取引所連携リポジトリ。
type PostgresConnectionRepo struct {
	db *sql.DB
}

// NewPostgresConnectionRepo はPostgresConnectionRepoを生成する。
func NewPostgresConnectionRepo(db *sql.DB) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{db: db}
}

// Upsert は連携情報を(user_id, exchange)キーで冪等に保存する。
// 単一のINSERT ... ON CONFLICT文で実行するため、同一ペアへの並行保存は
// PostgreSQL側で直列化され、常に1行のまま後勝ちで上書きされる。
// 前回保存時の秘匿フィールドは保持されず、今回の値（未指定ならNULL）で
// 丸ごと置き換えられる。
func (r *PostgresConnectionRepo) Upsert(ctx context.Context, conn *model.ExchangeConnection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exchange_connections
		   (user_id, exchange, access_token, refresh_token, api_key, api_secret,
		    passphrase, expires_at, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id, exchange) DO UPDATE SET
		   access_token  = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   api_key       = EXCLUDED.api_key,
		   api_secret    = EXCLUDED.api_secret,
		   passphrase    = EXCLUDED.passphrase,
		   expires_at    = EXCLUDED.expires_at,
		   is_active     = EXCLUDED.is_active,
		   updated_at    = EXCLUDED.updated_at`,
		conn.UserID, conn.Exchange, conn.AccessToken, conn.RefreshToken,
		conn.APIKey, conn.APISecret, conn.Passphrase, conn.ExpiresAt,
		conn.IsActive, conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert exchange connection: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの連携一覧を返す。
// 秘匿カラムはSELECT対象に含めない。
func (r *PostgresConnectionRepo) ListByUserID(ctx context.Context, userID string) ([]model.ConnectionSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT exchange, is_active, updated_at
		 FROM exchange_connections
		 WHERE user_id = $1
		 ORDER BY exchange`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange connections: %w", err)
	}
	defer rows.Close()

	var summaries []model.ConnectionSummary
	for rows.Next() {
		var s model.ConnectionSummary
		if err := rows.Scan(&s.Exchange, &s.IsActive, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange connection: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exchange connections: %w", err)
	}

	return summaries, nil
}

// compile-time interface check
var _ ConnectionRepository = (*PostgresConnectionRepo)(nil)
