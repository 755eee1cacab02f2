// Package presence はプレゼンス解決のオーケストレーションを提供する。
// キャッシュ照会、ユーザー名とプレゼンスの並行解決、ステータス分類、
// キャッシュ格納を1つのサービスにまとめる。
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/presenceman/internal/cache"
	"github.com/hitoshi/presenceman/internal/metrics"
	"github.com/hitoshi/presenceman/internal/model"
	"github.com/hitoshi/presenceman/internal/roblox"
)

// ChainResolver はソースチェーンによるプレゼンス解決のインターフェース。
// テスト時にモックに差し替え可能。
type ChainResolver interface {
	Resolve(ctx context.Context, userID int64, methodFilter model.PresenceMethod, credentialOverride string) (*roblox.ChainResult, error)
}

// UsernameLookup はユーザー名解決のインターフェース。
type UsernameLookup interface {
	Lookup(ctx context.Context, userID int64) (string, error)
}

// StatusClassifier は生のプレゼンスレコードの分類インターフェース。
type StatusClassifier interface {
	Classify(rec *model.PresenceRecord, userID int64) (isOnline, isInGame, inTargetGame bool)
}

// Service はプレゼンス解決サービス。
type Service struct {
	chain      ChainResolver
	usernames  UsernameLookup
	classifier StatusClassifier
	cache      cache.StatusCache
	metrics    metrics.StatusMetricsCollector
	logger     *slog.Logger
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// nowがnilの場合はtime.Nowを使用する。テストでは固定クロックを注入する。
func NewService(
	chain ChainResolver,
	usernames UsernameLookup,
	classifier StatusClassifier,
	statusCache cache.StatusCache,
	collector metrics.StatusMetricsCollector,
	logger *slog.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		chain:      chain,
		usernames:  usernames,
		classifier: classifier,
		cache:      statusCache,
		metrics:    collector,
		logger:     logger,
		now:        now,
	}
}

// GetUserStatus は指定ユーザーのUserStatusを解決する。
//
// キャッシュヒット時は上流を一切呼び出さずに即座に返す。
// ミス時はユーザー名とプレゼンスを並行に解決し、分類結果を
// キャッシュに格納して返す。
//
// ユーザー名解決の失敗はリクエスト全体の失敗となる。
// プレゼンス解決の失敗は全フラグfalseの劣化ステータスに格下げされ、
// リクエスト自体は成功する（attemptLogには失敗の記録が残る）。
func (s *Service) GetUserStatus(ctx context.Context, userID int64, methodFilter model.PresenceMethod, credentialOverride string) (*model.UserStatus, error) {
	key := cache.Key(userID, methodFilter)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheHit()
		return &cached, nil
	}
	s.metrics.RecordCacheMiss()

	start := s.now()

	// ユーザー名とプレゼンスを並行に解決する。
	// 片方の失敗はもう片方を中断しない。
	var (
		wg          sync.WaitGroup
		username    string
		usernameErr error
		chainResult *roblox.ChainResult
		chainErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		username, usernameErr = s.usernames.Lookup(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		chainResult, chainErr = s.chain.Resolve(ctx, userID, methodFilter, credentialOverride)
	}()
	wg.Wait()

	s.metrics.RecordResolutionLatency(s.now().Sub(start))

	// ユーザー名の失敗は常に致命的（匿名ステータスは合成しない）
	if usernameErr != nil {
		s.logger.Error("ユーザー名の解決に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", usernameErr.Error()),
		)
		return nil, usernameErr
	}

	for _, attempt := range chainResult.AttemptLog {
		if attempt.HTTPStatus != 0 {
			s.metrics.RecordUpstreamStatus(attempt.HTTPStatus)
		}
	}

	status := model.UserStatus{
		UserID:             userID,
		Username:           username,
		PresenceMethod:     model.MethodAuto,
		AttemptLog:         chainResult.AttemptLog,
		CredentialProvided: chainResult.CredentialProvided,
		LastUpdated:        s.now(),
	}

	if chainErr != nil {
		// 全候補が尽きた場合は全フラグfalseの劣化ステータスに格下げする
		s.metrics.RecordResolutionFailure()
		s.logger.Warn("プレゼンス解決に失敗したため劣化ステータスを返します",
			slog.Int64("user_id", userID),
			slog.String("error", chainErr.Error()),
			slog.Int("attempts", len(chainResult.AttemptLog)),
		)
	} else {
		isOnline, isInGame, inTarget := s.classifier.Classify(chainResult.Record, userID)
		status.IsOnline = isOnline
		status.IsInGame = isInGame
		status.InTargetGame = inTarget
		status.PresenceMethod = chainResult.Method
		s.metrics.RecordResolutionSuccess(string(chainResult.Method))
	}

	s.cache.Put(key, status)

	return &status, nil
}
