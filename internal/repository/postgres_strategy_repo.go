package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/presenceman/internal/model"
)

// PostgresStrategyRepo はPostgreSQLを使用した戦略リポジトリ。
type PostgresStrategyRepo struct {
	db *sql.DB
}

// NewPostgresStrategyRepo はPostgresStrategyRepoを生成する。
func NewPostgresStrategyRepo(db *sql.DB) *PostgresStrategyRepo {
	return &PostgresStrategyRepo{db: db}
}

// FindByID は指定IDの戦略を取得する。見つからない場合はnilを返す。
func (r *PostgresStrategyRepo) FindByID(ctx context.Context, id string) (*model.Strategy, error) {
	strategy := &model.Strategy{}
	var description, author sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description_html, author, created_at, updated_at
		 FROM strategies WHERE id = $1`,
		id,
	).Scan(
		&strategy.ID, &strategy.Title, &description, &author,
		&strategy.CreatedAt, &strategy.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("戦略の取得に失敗しました: %w", err)
	}

	strategy.DescriptionHTML = nullStringValue(description)
	strategy.Author = nullStringValue(author)

	return strategy, nil
}

// Create は戦略を作成する。
func (r *PostgresStrategyRepo) Create(ctx context.Context, strategy *model.Strategy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO strategies (id, title, description_html, author, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		strategy.ID, strategy.Title,
		nullString(strategy.DescriptionHTML), nullString(strategy.Author),
		strategy.CreatedAt, strategy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("戦略の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は戦略を更新する。
func (r *PostgresStrategyRepo) Update(ctx context.Context, strategy *model.Strategy) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE strategies
		 SET title = $2, description_html = $3, author = $4, updated_at = $5
		 WHERE id = $1`,
		strategy.ID, strategy.Title,
		nullString(strategy.DescriptionHTML), nullString(strategy.Author),
		strategy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("戦略の更新に失敗しました: %w", err)
	}
	return nil
}

// List は全戦略を更新日時の降順で返す。
func (r *PostgresStrategyRepo) List(ctx context.Context) ([]*model.Strategy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description_html, author, created_at, updated_at
		 FROM strategies ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("戦略一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var strategies []*model.Strategy
	for rows.Next() {
		strategy := &model.Strategy{}
		var description, author sql.NullString

		if err := rows.Scan(
			&strategy.ID, &strategy.Title, &description, &author,
			&strategy.CreatedAt, &strategy.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("戦略行の読み取りに失敗しました: %w", err)
		}

		strategy.DescriptionHTML = nullStringValue(description)
		strategy.Author = nullStringValue(author)
		strategies = append(strategies, strategy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("戦略一覧の走査に失敗しました: %w", err)
	}

	return strategies, nil
}

// Delete は指定IDの戦略を削除する。
func (r *PostgresStrategyRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM strategies WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("戦略の削除に失敗しました: %w", err)
	}
	return nil
}
