package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/presenceman/internal/model"
)

// --- モック定義 ---

// mockPresenceService はPresenceServiceInterfaceのモック実装。
type mockPresenceService struct {
	getUserStatusFn func(ctx context.Context, userID int64, methodFilter model.PresenceMethod, credentialOverride string) (*model.UserStatus, error)
}

func (m *mockPresenceService) GetUserStatus(ctx context.Context, userID int64, methodFilter model.PresenceMethod, credentialOverride string) (*model.UserStatus, error) {
	if m.getUserStatusFn != nil {
		return m.getUserStatusFn(ctx, userID, methodFilter, credentialOverride)
	}
	return &model.UserStatus{UserID: userID}, nil
}

// mockAccountRepo はrepository.AccountRepositoryのモック実装。
type mockAccountRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.TrackedAccount, error)
	findByRobloxUserIDFn func(ctx context.Context, robloxUserID int64) (*model.TrackedAccount, error)
	createFn             func(ctx context.Context, account *model.TrackedAccount) error
	updateFn             func(ctx context.Context, account *model.TrackedAccount) error
	listFn               func(ctx context.Context) ([]*model.TrackedAccount, error)
	deleteFn             func(ctx context.Context, id string) error
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.TrackedAccount, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByRobloxUserID(ctx context.Context, robloxUserID int64) (*model.TrackedAccount, error) {
	if m.findByRobloxUserIDFn != nil {
		return m.findByRobloxUserIDFn(ctx, robloxUserID)
	}
	return nil, nil
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.TrackedAccount) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}

func (m *mockAccountRepo) Update(ctx context.Context, account *model.TrackedAccount) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, account)
	}
	return nil
}

func (m *mockAccountRepo) List(ctx context.Context) ([]*model.TrackedAccount, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockAccountRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockHistoryRepo はrepository.StatusHistoryRepositoryのモック実装。
type mockHistoryRepo struct {
	insertFn             func(ctx context.Context, sample *model.StatusSample) error
	listByRobloxUserIDFn func(ctx context.Context, robloxUserID int64, since time.Time) ([]model.StatusSample, error)
	deleteOlderThanFn    func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockHistoryRepo) Insert(ctx context.Context, sample *model.StatusSample) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, sample)
	}
	return nil
}

func (m *mockHistoryRepo) ListByRobloxUserID(ctx context.Context, robloxUserID int64, since time.Time) ([]model.StatusSample, error) {
	if m.listByRobloxUserIDFn != nil {
		return m.listByRobloxUserIDFn(ctx, robloxUserID, since)
	}
	return nil, nil
}

func (m *mockHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteOlderThanFn != nil {
		return m.deleteOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}

// mockStrategyRepo はrepository.StrategyRepositoryのモック実装。
type mockStrategyRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Strategy, error)
	createFn   func(ctx context.Context, strategy *model.Strategy) error
	updateFn   func(ctx context.Context, strategy *model.Strategy) error
	listFn     func(ctx context.Context) ([]*model.Strategy, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (m *mockStrategyRepo) FindByID(ctx context.Context, id string) (*model.Strategy, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockStrategyRepo) Create(ctx context.Context, strategy *model.Strategy) error {
	if m.createFn != nil {
		return m.createFn(ctx, strategy)
	}
	return nil
}

func (m *mockStrategyRepo) Update(ctx context.Context, strategy *model.Strategy) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, strategy)
	}
	return nil
}

func (m *mockStrategyRepo) List(ctx context.Context) ([]*model.Strategy, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockStrategyRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockKitRepo はrepository.KitRepositoryのモック実装。
type mockKitRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.Kit, error)
	findByNameFn func(ctx context.Context, name string) (*model.Kit, error)
	createFn     func(ctx context.Context, kit *model.Kit) error
	updateFn     func(ctx context.Context, kit *model.Kit) error
	listFn       func(ctx context.Context) ([]*model.Kit, error)
	deleteFn     func(ctx context.Context, id string) error
}

func (m *mockKitRepo) FindByID(ctx context.Context, id string) (*model.Kit, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockKitRepo) FindByName(ctx context.Context, name string) (*model.Kit, error) {
	if m.findByNameFn != nil {
		return m.findByNameFn(ctx, name)
	}
	return nil, nil
}

func (m *mockKitRepo) Create(ctx context.Context, kit *model.Kit) error {
	if m.createFn != nil {
		return m.createFn(ctx, kit)
	}
	return nil
}

func (m *mockKitRepo) Update(ctx context.Context, kit *model.Kit) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, kit)
	}
	return nil
}

func (m *mockKitRepo) List(ctx context.Context) ([]*model.Kit, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockKitRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockSettingsRepo はrepository.SettingsRepositoryのモック実装。
type mockSettingsRepo struct {
	getFn    func(ctx context.Context, key string) (string, error)
	upsertFn func(ctx context.Context, key, value string) error
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return "", nil
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, key, value string) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, key, value)
	}
	return nil
}

func (m *mockSettingsRepo) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

// stubSanitizer はテスト用のサニタイザ。呼び出しを記録し、固定の変換を行う。
type stubSanitizer struct {
	lastInput string
}

func (s *stubSanitizer) Sanitize(dirty string) string {
	s.lastInput = dirty
	return "[sanitized]" + dirty
}

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからエラーレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
