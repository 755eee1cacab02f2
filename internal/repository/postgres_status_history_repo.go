package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/presenceman/internal/model"
)

// PostgresStatusHistoryRepo はPostgreSQLを使用したステータス履歴リポジトリ。
type PostgresStatusHistoryRepo struct {
	db *sql.DB
}

// NewPostgresStatusHistoryRepo はPostgresStatusHistoryRepoを生成する。
func NewPostgresStatusHistoryRepo(db *sql.DB) *PostgresStatusHistoryRepo {
	return &PostgresStatusHistoryRepo{db: db}
}

// Insert はステータス標本を1件記録する。
func (r *PostgresStatusHistoryRepo) Insert(ctx context.Context, sample *model.StatusSample) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO status_history
		 (roblox_user_id, is_online, is_in_game, in_target_game, presence_method, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sample.RobloxUserID, sample.IsOnline, sample.IsInGame, sample.InTargetGame,
		string(sample.PresenceMethod), sample.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("ステータス履歴の記録に失敗しました: %w", err)
	}
	return nil
}

// ListByRobloxUserID は指定ユーザの履歴を記録時刻の昇順で返す。
func (r *PostgresStatusHistoryRepo) ListByRobloxUserID(ctx context.Context, robloxUserID int64, since time.Time) ([]model.StatusSample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, roblox_user_id, is_online, is_in_game, in_target_game, presence_method, recorded_at
		 FROM status_history
		 WHERE roblox_user_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at ASC`,
		robloxUserID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("ステータス履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var samples []model.StatusSample
	for rows.Next() {
		var sample model.StatusSample
		var method string

		if err := rows.Scan(
			&sample.ID, &sample.RobloxUserID, &sample.IsOnline, &sample.IsInGame,
			&sample.InTargetGame, &method, &sample.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("ステータス履歴行の読み取りに失敗しました: %w", err)
		}

		sample.PresenceMethod = model.PresenceMethod(method)
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ステータス履歴の走査に失敗しました: %w", err)
	}

	return samples, nil
}

// DeleteOlderThan は指定時刻より古い履歴を削除し、削除件数を返す。
func (r *PostgresStatusHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM status_history WHERE recorded_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("古いステータス履歴の削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return deleted, nil
}
