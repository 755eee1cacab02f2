package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/presenceman/internal/model"
	"github.com/hitoshi/presenceman/internal/repository"
	"github.com/hitoshi/presenceman/internal/stats"
)

// 統計の集計対象期間のデフォルトと上限（日数）。
const (
	defaultStatsDays = 7
	maxStatsDays     = 30
)

// AccountHandler は追跡アカウント管理のHTTPハンドラー。
type AccountHandler struct {
	accounts repository.AccountRepository
	history  repository.StatusHistoryRepository
	logger   *slog.Logger
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(accounts repository.AccountRepository, history repository.StatusHistoryRepository, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		history:  history,
		logger:   logger,
	}
}

// accountRequest はアカウント作成・更新リクエストのボディ。
type accountRequest struct {
	RobloxUserID int64  `json:"roblox_user_id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	Notes        string `json:"notes"`
}

// accountStatsResponse はアカウント統計のAPIレスポンス。
type accountStatsResponse struct {
	Account *model.TrackedAccount `json:"account"`
	Days    int                   `json:"days"`
	Stats   stats.Summary         `json:"stats"`
}

// List は追跡アカウント一覧を返す。
// GET /api/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if accounts == nil {
		accounts = []*model.TrackedAccount{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// Create は追跡アカウントを登録する。
// POST /api/accounts
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.RobloxUserID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("roblox_user_idには正の整数を指定してください"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("usernameは必須です"))
		return
	}

	existing, err := h.accounts.FindByRobloxUserID(r.Context(), req.RobloxUserID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if existing != nil {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateAccountError(req.RobloxUserID))
		return
	}

	now := time.Now().UTC()
	account := &model.TrackedAccount{
		ID:           uuid.NewString(),
		RobloxUserID: req.RobloxUserID,
		Username:     req.Username,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.accounts.Create(r.Context(), account); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Get は追跡アカウント詳細を返す。
// GET /api/accounts/:id
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := h.findAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Update は追跡アカウントを更新する。
// PUT /api/accounts/:id
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	account, ok := h.findAccount(w, r)
	if !ok {
		return
	}

	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("usernameは必須です"))
		return
	}

	// roblox_user_idは作成後に変更できない（履歴との対応が壊れるため）
	account.Username = req.Username
	account.DisplayName = strings.TrimSpace(req.DisplayName)
	account.Notes = req.Notes
	account.UpdatedAt = time.Now().UTC()

	if err := h.accounts.Update(r.Context(), account); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// Delete は追跡アカウントを削除する。
// DELETE /api/accounts/:id
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := h.findAccount(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Delete(r.Context(), account.ID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats はアカウントのステータス履歴から派生統計を返す。
// GET /api/accounts/:id/stats?days=7
func (h *AccountHandler) Stats(w http.ResponseWriter, r *http.Request) {
	account, ok := h.findAccount(w, r)
	if !ok {
		return
	}

	days := defaultStatsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStatsDays {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("daysには1〜30の整数を指定してください"))
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	samples, err := h.history.ListByRobloxUserID(r.Context(), account.RobloxUserID, since)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, accountStatsResponse{
		Account: account,
		Days:    days,
		Stats:   stats.Summarize(samples),
	})
}

// findAccount はURLパラメータのIDでアカウントを取得する。
// 見つからない場合は404を書き込みfalseを返す。
func (h *AccountHandler) findAccount(w http.ResponseWriter, r *http.Request) (*model.TrackedAccount, bool) {
	id := chi.URLParam(r, "id")

	account, err := h.accounts.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return nil, false
	}
	if account == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(id))
		return nil, false
	}
	return account, true
}
