package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/presenceman/internal/model"
)

// PresenceServiceInterface はステータスハンドラーが必要とするサービスインターフェース。
type PresenceServiceInterface interface {
	// GetUserStatus はユーザーのプレゼンスステータスを解決する。
	GetUserStatus(ctx context.Context, userID int64, methodFilter model.PresenceMethod, credentialOverride string) (*model.UserStatus, error)
}

// StatusHandler はプレゼンスステータス照会のHTTPハンドラー。
type StatusHandler struct {
	service PresenceServiceInterface
	logger  *slog.Logger
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(service PresenceServiceInterface, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		service: service,
		logger:  logger,
	}
}

// statusRequest はステータス照会リクエストのボディ。
// userIdはクライアント実装のばらつきを吸収するため数値と文字列の両方を受け付ける。
type statusRequest struct {
	UserID json.RawMessage `json:"userId"`
	Method string          `json:"method"`
	Cookie string          `json:"cookie"`
}

// parseUserID はuserIdフィールドを正の整数として解釈する。
func parseUserID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, asNumber > 0
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		n, err := strconv.ParseInt(asString, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, n > 0
	}

	return 0, false
}

// GetStatus はプレゼンスステータス照会を処理する。
// POST /roblox-status
//
// userIdが欠落または不正な場合は400を返す。
// プレゼンス解決の失敗はサービス層で全オフライン扱いに縮退されるため、
// ここに到達するエラーはユーザー名解決の失敗であり500を返す。
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}

	userID, ok := parseUserID(req.UserID)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}

	method := model.PresenceMethod(req.Method)
	if req.Method == "" {
		method = model.MethodAuto
	}
	if !method.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMethodError(req.Method))
		return
	}

	status, err := h.service.GetUserStatus(r.Context(), userID, method, req.Cookie)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
