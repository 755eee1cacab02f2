// Package refresh は追跡アカウントのステータスを定期収集するワーカーを提供する。
// 収集した標本はstatus_historyに記録され、派生統計の入力となる。
// 保持期間を超過した履歴は各サイクルの末尾で削除される。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/presenceman/internal/metrics"
	"github.com/hitoshi/presenceman/internal/model"
	"github.com/hitoshi/presenceman/internal/repository"
)

// デフォルト設定値。
const (
	defaultMaxConcurrency = 5
	defaultRetentionDays  = 30
)

// StatusResolver はステータス解決の実行インターフェース。
type StatusResolver interface {
	// GetUserStatus はユーザーのプレゼンスステータスを解決する。
	GetUserStatus(ctx context.Context, userID int64, methodFilter model.PresenceMethod, credentialOverride string) (*model.UserStatus, error)
}

// Worker は追跡アカウントのステータス収集と履歴の保持期間管理を行う。
// semaphoreパターンで最大並列数を制御しながら解決を実行する。
type Worker struct {
	accounts       repository.AccountRepository
	history        repository.StatusHistoryRepository
	resolver       StatusResolver
	metrics        metrics.StatusMetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	retentionDays  int
	now            func() time.Time
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合は5、retentionDaysが0以下の場合は30を使用する。
func NewWorker(
	accounts repository.AccountRepository,
	history repository.StatusHistoryRepository,
	resolver StatusResolver,
	collector metrics.StatusMetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
	retentionDays int,
) *Worker {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &Worker{
		accounts:       accounts,
		history:        history,
		resolver:       resolver,
		metrics:        collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		retentionDays:  retentionDays,
		now:            time.Now,
	}
}

// Start は指定間隔のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("ステータス収集ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", w.maxConcurrency),
		slog.Int("retention_days", w.retentionDays),
	)

	// 起動直後に1回実行
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("収集サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ステータス収集ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("収集サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全追跡アカウントのステータスを1回収集して記録する。
// 個々のアカウントの失敗はサイクル全体を止めない。
// 末尾で保持期間を超過した履歴を削除する。冪等。
func (w *Worker) RunOnce(ctx context.Context) error {
	start := w.now()

	accounts, err := w.accounts.List(ctx)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		w.logger.Info("追跡対象のアカウントはありません")
		w.metrics.RecordRefreshCycle(0)
		return nil
	}

	w.logger.Info("収集サイクルを開始します",
		slog.Int("account_count", len(accounts)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, w.maxConcurrency)
	var wg sync.WaitGroup

	for _, account := range accounts {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(a *model.TrackedAccount) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := w.refreshAccount(ctx, a); err != nil {
				w.logger.Error("アカウントのステータス収集に失敗しました",
					slog.String("account_id", a.ID),
					slog.Int64("roblox_user_id", a.RobloxUserID),
					slog.String("error", err.Error()),
				)
			}
		}(account)
	}

	wg.Wait()

	w.trimHistory(ctx)
	w.metrics.RecordRefreshCycle(len(accounts))

	duration := w.now().Sub(start)
	w.logger.Info("収集サイクルが完了しました",
		slog.Int("account_count", len(accounts)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// refreshAccount は1アカウントのステータスを解決して履歴に記録する。
func (w *Worker) refreshAccount(ctx context.Context, account *model.TrackedAccount) error {
	status, err := w.resolver.GetUserStatus(ctx, account.RobloxUserID, model.MethodAuto, "")
	if err != nil {
		return err
	}

	sample := &model.StatusSample{
		RobloxUserID:   account.RobloxUserID,
		IsOnline:       status.IsOnline,
		IsInGame:       status.IsInGame,
		InTargetGame:   status.InTargetGame,
		PresenceMethod: status.PresenceMethod,
		RecordedAt:     w.now().UTC(),
	}

	return w.history.Insert(ctx, sample)
}

// trimHistory は保持期間を超過した履歴を削除する。
// 削除の失敗はログに記録するのみでサイクルは成功扱いとする。
func (w *Worker) trimHistory(ctx context.Context) {
	cutoff := w.now().UTC().AddDate(0, 0, -w.retentionDays)

	deleted, err := w.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("古い履歴の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", w.retentionDays),
		)
		return
	}

	if deleted > 0 {
		w.logger.Info("古い履歴を削除しました",
			slog.Int64("deleted_count", deleted),
			slog.Int("retention_days", w.retentionDays),
		)
	}
}
