package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/presenceman/internal/repository"
)

// Cookie設定の出所を表す値。
const (
	cookieSourceDatabase    = "database"
	cookieSourceEnvironment = "environment"
	cookieSourceNone        = "none"
)

// SettingsHandler はアプリケーション設定のHTTPハンドラー。
// セッションCookieの値そのものは決してレスポンスに含めない。
type SettingsHandler struct {
	settings     repository.SettingsRepository
	envCookieSet bool
	logger       *slog.Logger
}

// NewSettingsHandler はSettingsHandlerを生成する。
// envCookieSetは環境変数でCookieが設定されているかを示す。
func NewSettingsHandler(settings repository.SettingsRepository, envCookieSet bool, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings:     settings,
		envCookieSet: envCookieSet,
		logger:       logger,
	}
}

// cookieStatusResponse はCookie設定状態のAPIレスポンス。
type cookieStatusResponse struct {
	Configured bool   `json:"configured"`
	Source     string `json:"source"`
}

// updateCookieRequest はCookie更新リクエストのボディ。
type updateCookieRequest struct {
	Cookie string `json:"cookie"`
}

// GetCookieStatus はCookieの設定状態を返す。値そのものは返さない。
// GET /api/settings/cookie
func (h *SettingsHandler) GetCookieStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.cookieStatus(r)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateCookie は保存済みCookieを更新する。
// 空文字列を指定した場合は保存値を削除し、環境変数の値に戻す。
// PUT /api/settings/cookie
func (h *SettingsHandler) UpdateCookie(w http.ResponseWriter, r *http.Request) {
	var req updateCookieRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cookie := strings.TrimSpace(req.Cookie)
	if cookie == "" {
		if err := h.settings.Delete(r.Context(), repository.SettingKeyRobloxCookie); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
	} else {
		if err := h.settings.Upsert(r.Context(), repository.SettingKeyRobloxCookie, cookie); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
	}

	resp, err := h.cookieStatus(r)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// cookieStatus は現在のCookie設定状態を算出する。
func (h *SettingsHandler) cookieStatus(r *http.Request) (cookieStatusResponse, error) {
	stored, err := h.settings.Get(r.Context(), repository.SettingKeyRobloxCookie)
	if err != nil {
		return cookieStatusResponse{}, err
	}

	switch {
	case stored != "":
		return cookieStatusResponse{Configured: true, Source: cookieSourceDatabase}, nil
	case h.envCookieSet:
		return cookieStatusResponse{Configured: true, Source: cookieSourceEnvironment}, nil
	default:
		return cookieStatusResponse{Configured: false, Source: cookieSourceNone}, nil
	}
}
