package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/presenceman/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用した追跡アカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByID は指定IDの追跡アカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.TrackedAccount, error) {
	account := &model.TrackedAccount{}
	var displayName, notes sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, roblox_user_id, username, display_name, notes, created_at, updated_at
		 FROM tracked_accounts WHERE id = $1`,
		id,
	).Scan(
		&account.ID, &account.RobloxUserID, &account.Username,
		&displayName, &notes, &account.CreatedAt, &account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("追跡アカウントの取得に失敗しました: %w", err)
	}

	account.DisplayName = nullStringValue(displayName)
	account.Notes = nullStringValue(notes)

	return account, nil
}

// FindByRobloxUserID はRobloxユーザーIDで追跡アカウントを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByRobloxUserID(ctx context.Context, robloxUserID int64) (*model.TrackedAccount, error) {
	account := &model.TrackedAccount{}
	var displayName, notes sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, roblox_user_id, username, display_name, notes, created_at, updated_at
		 FROM tracked_accounts WHERE roblox_user_id = $1`,
		robloxUserID,
	).Scan(
		&account.ID, &account.RobloxUserID, &account.Username,
		&displayName, &notes, &account.CreatedAt, &account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("RobloxユーザーIDによる追跡アカウントの検索に失敗しました: %w", err)
	}

	account.DisplayName = nullStringValue(displayName)
	account.Notes = nullStringValue(notes)

	return account, nil
}

// Create は追跡アカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.TrackedAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tracked_accounts (id, roblox_user_id, username, display_name, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.RobloxUserID, account.Username,
		nullString(account.DisplayName), nullString(account.Notes),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("追跡アカウントの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は追跡アカウントの情報を更新する。
func (r *PostgresAccountRepo) Update(ctx context.Context, account *model.TrackedAccount) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracked_accounts
		 SET username = $2, display_name = $3, notes = $4, updated_at = $5
		 WHERE id = $1`,
		account.ID, account.Username,
		nullString(account.DisplayName), nullString(account.Notes),
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("追跡アカウントの更新に失敗しました: %w", err)
	}
	return nil
}

// List は全追跡アカウントを作成日時の昇順で返す。
func (r *PostgresAccountRepo) List(ctx context.Context) ([]*model.TrackedAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, roblox_user_id, username, display_name, notes, created_at, updated_at
		 FROM tracked_accounts ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("追跡アカウント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var accounts []*model.TrackedAccount
	for rows.Next() {
		account := &model.TrackedAccount{}
		var displayName, notes sql.NullString

		if err := rows.Scan(
			&account.ID, &account.RobloxUserID, &account.Username,
			&displayName, &notes, &account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("追跡アカウント行の読み取りに失敗しました: %w", err)
		}

		account.DisplayName = nullStringValue(displayName)
		account.Notes = nullStringValue(notes)
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("追跡アカウント一覧の走査に失敗しました: %w", err)
	}

	return accounts, nil
}

// Delete は指定IDの追跡アカウントを削除する。
func (r *PostgresAccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tracked_accounts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("追跡アカウントの削除に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから値を取り出す。NULLは空文字列になる。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
