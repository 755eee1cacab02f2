package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/presenceman/internal/model"
)

// PostgresKitRepo はPostgreSQLを使用したキットリポジトリ。
type PostgresKitRepo struct {
	db *sql.DB
}

// NewPostgresKitRepo はPostgresKitRepoを生成する。
func NewPostgresKitRepo(db *sql.DB) *PostgresKitRepo {
	return &PostgresKitRepo{db: db}
}

// FindByID は指定IDのキットを取得する。見つからない場合はnilを返す。
func (r *PostgresKitRepo) FindByID(ctx context.Context, id string) (*model.Kit, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByName はキット名でキットを検索する。見つからない場合はnilを返す。
func (r *PostgresKitRepo) FindByName(ctx context.Context, name string) (*model.Kit, error) {
	return r.findOne(ctx, `WHERE name = $1`, name)
}

// findOne は単一キットの取得を行う共通処理。
func (r *PostgresKitRepo) findOne(ctx context.Context, where string, arg any) (*model.Kit, error) {
	kit := &model.Kit{}
	var role, description sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, role, description_html, created_at, updated_at
		 FROM kits `+where,
		arg,
	).Scan(
		&kit.ID, &kit.Name, &role, &description,
		&kit.CreatedAt, &kit.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キットの取得に失敗しました: %w", err)
	}

	kit.Role = nullStringValue(role)
	kit.DescriptionHTML = nullStringValue(description)

	return kit, nil
}

// Create はキットを作成する。
func (r *PostgresKitRepo) Create(ctx context.Context, kit *model.Kit) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kits (id, name, role, description_html, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		kit.ID, kit.Name, nullString(kit.Role), nullString(kit.DescriptionHTML),
		kit.CreatedAt, kit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("キットの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はキットを更新する。
func (r *PostgresKitRepo) Update(ctx context.Context, kit *model.Kit) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE kits
		 SET name = $2, role = $3, description_html = $4, updated_at = $5
		 WHERE id = $1`,
		kit.ID, kit.Name, nullString(kit.Role), nullString(kit.DescriptionHTML),
		kit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("キットの更新に失敗しました: %w", err)
	}
	return nil
}

// List は全キットを名前の昇順で返す。
func (r *PostgresKitRepo) List(ctx context.Context) ([]*model.Kit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, role, description_html, created_at, updated_at
		 FROM kits ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("キット一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var kits []*model.Kit
	for rows.Next() {
		kit := &model.Kit{}
		var role, description sql.NullString

		if err := rows.Scan(
			&kit.ID, &kit.Name, &role, &description,
			&kit.CreatedAt, &kit.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("キット行の読み取りに失敗しました: %w", err)
		}

		kit.Role = nullStringValue(role)
		kit.DescriptionHTML = nullStringValue(description)
		kits = append(kits, kit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("キット一覧の走査に失敗しました: %w", err)
	}

	return kits, nil
}

// Delete は指定IDのキットを削除する。
func (r *PostgresKitRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM kits WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("キットの削除に失敗しました: %w", err)
	}
	return nil
}
