// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/presenceman/internal/model"
)

// SettingsRepository はグローバル設定レコードの永続化インターフェース。
// 昇格済みセッション資格情報の永続上書き値を保持する。
type SettingsRepository interface {
	// Get は指定キーの設定値を取得する。見つからない場合は空文字列を返す。
	Get(ctx context.Context, key string) (string, error)

	// Upsert は設定値を作成または更新する。
	Upsert(ctx context.Context, key, value string) error

	// Delete は指定キーの設定を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}

// AccountRepository は追跡アカウントの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDの追跡アカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TrackedAccount, error)

	// FindByRobloxUserID はRobloxユーザーIDで追跡アカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByRobloxUserID(ctx context.Context, robloxUserID int64) (*model.TrackedAccount, error)

	// Create は追跡アカウントを作成する。
	Create(ctx context.Context, account *model.TrackedAccount) error

	// Update は追跡アカウントの情報を更新する。
	Update(ctx context.Context, account *model.TrackedAccount) error

	// List は全追跡アカウントを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.TrackedAccount, error)

	// Delete は指定IDの追跡アカウントを削除する。
	Delete(ctx context.Context, id string) error
}

// StrategyRepository は戦略投稿の永続化インターフェース。
type StrategyRepository interface {
	// FindByID は指定IDの戦略を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Strategy, error)

	// Create は戦略を作成する。
	Create(ctx context.Context, strategy *model.Strategy) error

	// Update は戦略を更新する。
	Update(ctx context.Context, strategy *model.Strategy) error

	// List は全戦略を更新日時の降順で返す。
	List(ctx context.Context) ([]*model.Strategy, error)

	// Delete は指定IDの戦略を削除する。
	Delete(ctx context.Context, id string) error
}

// KitRepository はキット定義の永続化インターフェース。
type KitRepository interface {
	// FindByID は指定IDのキットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Kit, error)

	// FindByName はキット名でキットを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Kit, error)

	// Create はキットを作成する。
	Create(ctx context.Context, kit *model.Kit) error

	// Update はキットを更新する。
	Update(ctx context.Context, kit *model.Kit) error

	// List は全キットを名前の昇順で返す。
	List(ctx context.Context) ([]*model.Kit, error)

	// Delete は指定IDのキットを削除する。
	Delete(ctx context.Context, id string) error
}

// StatusHistoryRepository はステータス履歴の永続化インターフェース。
// リフレッシュワーカーが書き込み、派生メトリクス計算が読み取る。
type StatusHistoryRepository interface {
	// Insert はステータス履歴の1行を追加する。
	Insert(ctx context.Context, sample *model.StatusSample) error

	// ListByRobloxUserID は指定ユーザーの履歴を指定時刻以降に限定して
	// 記録時刻の昇順で返す。
	ListByRobloxUserID(ctx context.Context, robloxUserID int64, since time.Time) ([]model.StatusSample, error)

	// DeleteOlderThan は指定時刻より古い履歴を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
