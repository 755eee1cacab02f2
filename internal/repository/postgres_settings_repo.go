package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SettingKeyRobloxCookie は昇格済みセッション資格情報の設定キー。
// この永続値は環境変数のデフォルト資格情報より優先される。
const SettingKeyRobloxCookie = "roblox_cookie"

// PostgresSettingsRepo はPostgreSQLを使用したグローバル設定リポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// Get は指定キーの設定値を取得する。見つからない場合は空文字列を返す。
func (r *PostgresSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM app_settings WHERE key = $1`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("設定の取得に失敗しました: %w", err)
	}

	return value, nil
}

// Upsert は設定値を作成または更新する。
func (r *PostgresSettingsRepo) Upsert(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_settings (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("設定の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定キーの設定を削除する。存在しない場合もエラーにしない。
func (r *PostgresSettingsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM app_settings WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("設定の削除に失敗しました: %w", err)
	}
	return nil
}
