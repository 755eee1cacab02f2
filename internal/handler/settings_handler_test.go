package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/presenceman/internal/repository"
)

// Cookie未設定時の状態を検証
func TestSettingsHandler_GetCookieStatus_None(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsRepo{}, false, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/settings/cookie", nil)
	rec := httptest.NewRecorder()
	h.GetCookieStatus(rec, req)

	var resp cookieStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのJSONパースに失敗: %v", err)
	}
	if resp.Configured {
		t.Error("configured = true, want false")
	}
	if resp.Source != cookieSourceNone {
		t.Errorf("source = %q, want none", resp.Source)
	}
}

// 環境変数のみ設定時の状態を検証
func TestSettingsHandler_GetCookieStatus_Environment(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsRepo{}, true, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/settings/cookie", nil)
	rec := httptest.NewRecorder()
	h.GetCookieStatus(rec, req)

	var resp cookieStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのJSONパースに失敗: %v", err)
	}
	if !resp.Configured || resp.Source != cookieSourceEnvironment {
		t.Errorf("resp = %+v, want configured/environment", resp)
	}
}

// 保存値が環境変数より優先されることを検証
func TestSettingsHandler_GetCookieStatus_DatabaseWins(t *testing.T) {
	settings := &mockSettingsRepo{
		getFn: func(ctx context.Context, key string) (string, error) {
			return "stored-cookie", nil
		},
	}
	h := NewSettingsHandler(settings, true, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/settings/cookie", nil)
	rec := httptest.NewRecorder()
	h.GetCookieStatus(rec, req)

	var resp cookieStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのJSONパースに失敗: %v", err)
	}
	if resp.Source != cookieSourceDatabase {
		t.Errorf("source = %q, want database", resp.Source)
	}

	// Cookieの値そのものは決して返さない
	if strings.Contains(rec.Body.String(), "stored-cookie") {
		t.Error("レスポンスにCookieの値が含まれています")
	}
}

// Cookie更新がUpsertされることを検証
func TestSettingsHandler_UpdateCookie_Stores(t *testing.T) {
	var storedKey, storedValue string
	stored := false
	settings := &mockSettingsRepo{
		getFn: func(ctx context.Context, key string) (string, error) {
			if stored {
				return storedValue, nil
			}
			return "", nil
		},
		upsertFn: func(ctx context.Context, key, value string) error {
			storedKey, storedValue = key, value
			stored = true
			return nil
		},
	}
	h := NewSettingsHandler(settings, false, discardLogger())

	body := `{"cookie": "  new-session-cookie  "}`
	req := httptest.NewRequest(http.MethodPut, "/api/settings/cookie", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.UpdateCookie(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if storedKey != repository.SettingKeyRobloxCookie {
		t.Errorf("key = %q, want %q", storedKey, repository.SettingKeyRobloxCookie)
	}
	if storedValue != "new-session-cookie" {
		t.Errorf("value = %q, want new-session-cookie（前後空白は除去される）", storedValue)
	}

	var resp cookieStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのJSONパースに失敗: %v", err)
	}
	if !resp.Configured || resp.Source != cookieSourceDatabase {
		t.Errorf("resp = %+v, want configured/database", resp)
	}
	if strings.Contains(rec.Body.String(), "new-session-cookie") {
		t.Error("レスポンスにCookieの値が含まれています")
	}
}

// 空文字列指定で保存値が削除されることを検証
func TestSettingsHandler_UpdateCookie_EmptyDeletes(t *testing.T) {
	deletedKey := ""
	settings := &mockSettingsRepo{
		deleteFn: func(ctx context.Context, key string) error {
			deletedKey = key
			return nil
		},
	}
	h := NewSettingsHandler(settings, true, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/settings/cookie", bytes.NewBufferString(`{"cookie": ""}`))
	rec := httptest.NewRecorder()
	h.UpdateCookie(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if deletedKey != repository.SettingKeyRobloxCookie {
		t.Errorf("deletedKey = %q, want %q", deletedKey, repository.SettingKeyRobloxCookie)
	}

	var resp cookieStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのJSONパースに失敗: %v", err)
	}
	// 削除後は環境変数にフォールバック
	if resp.Source != cookieSourceEnvironment {
		t.Errorf("source = %q, want environment", resp.Source)
	}
}
