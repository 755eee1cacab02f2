package presence

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/presenceman/internal/cache"
	"github.com/hitoshi/presenceman/internal/metrics"
	"github.com/hitoshi/presenceman/internal/model"
	"github.com/hitoshi/presenceman/internal/roblox"
)

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

// stubChain は固定結果を返すChainResolver。呼び出し回数を記録する。
type stubChain struct {
	result *roblox.ChainResult
	err    error
	calls  int
}

func (s *stubChain) Resolve(ctx context.Context, userID int64, methodFilter model.PresenceMethod, credentialOverride string) (*roblox.ChainResult, error) {
	s.calls++
	return s.result, s.err
}

// stubUsernames は固定ユーザー名を返すUsernameLookup。
type stubUsernames struct {
	name  string
	err   error
	calls int
}

func (s *stubUsernames) Lookup(ctx context.Context, userID int64) (string, error) {
	s.calls++
	return s.name, s.err
}

// stubClassifier は固定分類を返すStatusClassifier。
type stubClassifier struct {
	isOnline, isInGame, inTarget bool
}

func (s *stubClassifier) Classify(rec *model.PresenceRecord, userID int64) (bool, bool, bool) {
	return s.isOnline, s.isInGame, s.inTarget
}

func successChainResult(method model.PresenceMethod) *roblox.ChainResult {
	return &roblox.ChainResult{
		Record: &model.PresenceRecord{PresenceType: model.PresenceTypeInGame},
		Method: method,
		AttemptLog: []model.Attempt{
			{Method: method, Success: true, HTTPStatus: 200},
		},
	}
}

func TestService_GetUserStatus_Success(t *testing.T) {
	chain := &stubChain{result: successChainResult(model.MethodPrimary)}
	usernames := &stubUsernames{name: "builderman"}
	classifier := &stubClassifier{isOnline: true, isInGame: true, inTarget: true}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := cache.NewTTLCache(60*time.Second, func() time.Time { return now })

	svc := NewService(chain, usernames, classifier, c, metrics.NopCollector{}, newTestLogger(), func() time.Time { return now })

	status, err := svc.GetUserStatus(context.Background(), 123, "", "")
	if err != nil {
		t.Fatalf("GetUserStatus がエラーを返した: %v", err)
	}

	if status.UserID != 123 {
		t.Errorf("UserID = %d, want 123", status.UserID)
	}
	if status.Username != "builderman" {
		t.Errorf("Username = %q, want builderman", status.Username)
	}
	if !status.IsOnline || !status.IsInGame || !status.InTargetGame {
		t.Errorf("フラグ = %v/%v/%v, want 全てtrue", status.IsOnline, status.IsInGame, status.InTargetGame)
	}
	if status.PresenceMethod != model.MethodPrimary {
		t.Errorf("PresenceMethod = %q, want primary", status.PresenceMethod)
	}
	if !status.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", status.LastUpdated, now)
	}
}

func TestService_GetUserStatus_CacheHitSkipsUpstream(t *testing.T) {
	chain := &stubChain{result: successChainResult(model.MethodPrimary)}
	usernames := &stubUsernames{name: "builderman"}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := cache.NewTTLCache(60*time.Second, func() time.Time { return clock() })

	svc := NewService(chain, usernames, &stubClassifier{}, c, metrics.NopCollector{}, newTestLogger(), func() time.Time { return clock() })

	first, err := svc.GetUserStatus(context.Background(), 123, "", "")
	if err != nil {
		t.Fatalf("1回目の GetUserStatus がエラーを返した: %v", err)
	}

	// TTL内の2回目: 上流呼び出しゼロ、LastUpdatedも同一であること
	now = now.Add(30 * time.Second)
	second, err := svc.GetUserStatus(context.Background(), 123, "", "")
	if err != nil {
		t.Fatalf("2回目の GetUserStatus がエラーを返した: %v", err)
	}

	if chain.calls != 1 || usernames.calls != 1 {
		t.Errorf("キャッシュヒット時に上流を呼んではならない: chain=%d usernames=%d", chain.calls, usernames.calls)
	}
	if !second.LastUpdated.Equal(first.LastUpdated) {
		t.Errorf("キャッシュヒットのLastUpdated = %v, want %v", second.LastUpdated, first.LastUpdated)
	}
}

func TestService_GetUserStatus_TTLElapsedReinvokesChain(t *testing.T) {
	chain := &stubChain{result: successChainResult(model.MethodPrimary)}
	usernames := &stubUsernames{name: "builderman"}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := cache.NewTTLCache(60*time.Second, func() time.Time { return clock() })

	svc := NewService(chain, usernames, &stubClassifier{}, c, metrics.NopCollector{}, newTestLogger(), func() time.Time { return clock() })

	if _, err := svc.GetUserStatus(context.Background(), 123, "", ""); err != nil {
		t.Fatalf("1回目の GetUserStatus がエラーを返した: %v", err)
	}

	now = now.Add(61 * time.Second)
	if _, err := svc.GetUserStatus(context.Background(), 123, "", ""); err != nil {
		t.Fatalf("2回目の GetUserStatus がエラーを返した: %v", err)
	}

	if chain.calls != 2 {
		t.Errorf("TTL超過後は再解決しなければならない: chain.calls = %d, want 2", chain.calls)
	}
}

func TestService_GetUserStatus_PresenceFailureDegrades(t *testing.T) {
	chain := &stubChain{
		result: &roblox.ChainResult{
			AttemptLog: []model.Attempt{
				{Method: model.MethodPrimary, HTTPStatus: 503, Error: "upstream down"},
				{Method: model.MethodFallback, HTTPStatus: 500, Error: "upstream down"},
			},
		},
		err: &model.PresenceUnavailableError{UserID: 123},
	}
	usernames := &stubUsernames{name: "builderman"}
	c := cache.NewTTLCache(60*time.Second, nil)

	svc := NewService(chain, usernames, &stubClassifier{isOnline: true}, c, metrics.NopCollector{}, newTestLogger(), nil)

	status, err := svc.GetUserStatus(context.Background(), 123, "", "")
	if err != nil {
		t.Fatalf("プレゼンス失敗はリクエスト失敗になってはならない: %v", err)
	}

	if status.IsOnline || status.IsInGame || status.InTargetGame {
		t.Error("劣化ステータスは全フラグfalseでなければならない")
	}
	if status.Username != "builderman" {
		t.Errorf("Username = %q, want builderman", status.Username)
	}
	if status.PresenceMethod != model.MethodAuto {
		t.Errorf("劣化ステータスのPresenceMethod = %q, want auto（デフォルト）", status.PresenceMethod)
	}
	if len(status.AttemptLog) != 2 {
		t.Errorf("AttemptLogは失敗の記録を保持しなければならない: %d件", len(status.AttemptLog))
	}
}

func TestService_GetUserStatus_UsernameFailureIsFatal(t *testing.T) {
	chain := &stubChain{result: successChainResult(model.MethodPrimary)}
	usernames := &stubUsernames{err: model.ErrUsernameUnavailable}
	c := cache.NewTTLCache(60*time.Second, nil)

	svc := NewService(chain, usernames, &stubClassifier{}, c, metrics.NopCollector{}, newTestLogger(), nil)

	_, err := svc.GetUserStatus(context.Background(), 123, "", "")
	if !errors.Is(err, model.ErrUsernameUnavailable) {
		t.Fatalf("ユーザー名失敗はリクエスト全体の失敗でなければならない: %v", err)
	}

	// 失敗した解決はキャッシュされないこと
	if _, ok := c.Get(cache.Key(123, model.MethodAuto)); ok {
		t.Error("失敗した解決がキャッシュされてはならない")
	}
}

func TestService_GetUserStatus_MethodsCachedIndependently(t *testing.T) {
	chain := &stubChain{result: successChainResult(model.MethodDirect)}
	usernames := &stubUsernames{name: "builderman"}
	c := cache.NewTTLCache(60*time.Second, nil)

	svc := NewService(chain, usernames, &stubClassifier{}, c, metrics.NopCollector{}, newTestLogger(), nil)

	if _, err := svc.GetUserStatus(context.Background(), 123, "", ""); err != nil {
		t.Fatalf("auto解決がエラーを返した: %v", err)
	}
	if _, err := svc.GetUserStatus(context.Background(), 123, model.MethodDirect, ""); err != nil {
		t.Fatalf("direct解決がエラーを返した: %v", err)
	}

	if chain.calls != 2 {
		t.Errorf("明示メソッドと自動選択は独立してキャッシュされる: chain.calls = %d, want 2", chain.calls)
	}
}
