package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/presenceman/internal/model"
	"github.com/hitoshi/presenceman/internal/repository"
)

// HTMLSanitizer は投稿本文のHTMLサニタイズを行うインターフェース。
type HTMLSanitizer interface {
	Sanitize(dirty string) string
}

// StrategyHandler は戦略投稿管理のHTTPハンドラー。
type StrategyHandler struct {
	strategies repository.StrategyRepository
	sanitizer  HTMLSanitizer
	logger     *slog.Logger
}

// NewStrategyHandler はStrategyHandlerを生成する。
func NewStrategyHandler(strategies repository.StrategyRepository, sanitizer HTMLSanitizer, logger *slog.Logger) *StrategyHandler {
	return &StrategyHandler{
		strategies: strategies,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// strategyRequest は戦略作成・更新リクエストのボディ。
type strategyRequest struct {
	Title           string `json:"title"`
	DescriptionHTML string `json:"description_html"`
	Author          string `json:"author"`
}

// List は戦略一覧を更新日時の降順で返す。
// GET /api/strategies
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	strategies, err := h.strategies.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if strategies == nil {
		strategies = []*model.Strategy{}
	}
	writeJSON(w, http.StatusOK, strategies)
}

// Create は戦略を投稿する。本文HTMLは保存前にサニタイズされる。
// POST /api/strategies
func (h *StrategyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("titleは必須です"))
		return
	}

	now := time.Now().UTC()
	strategy := &model.Strategy{
		ID:              uuid.NewString(),
		Title:           req.Title,
		DescriptionHTML: h.sanitizer.Sanitize(req.DescriptionHTML),
		Author:          strings.TrimSpace(req.Author),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.strategies.Create(r.Context(), strategy); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, strategy)
}

// Get は戦略詳細を返す。
// GET /api/strategies/:id
func (h *StrategyHandler) Get(w http.ResponseWriter, r *http.Request) {
	strategy, ok := h.findStrategy(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, strategy)
}

// Update は戦略を更新する。本文HTMLは保存前にサニタイズされる。
// PUT /api/strategies/:id
func (h *StrategyHandler) Update(w http.ResponseWriter, r *http.Request) {
	strategy, ok := h.findStrategy(w, r)
	if !ok {
		return
	}

	var req strategyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("titleは必須です"))
		return
	}

	strategy.Title = req.Title
	strategy.DescriptionHTML = h.sanitizer.Sanitize(req.DescriptionHTML)
	strategy.Author = strings.TrimSpace(req.Author)
	strategy.UpdatedAt = time.Now().UTC()

	if err := h.strategies.Update(r.Context(), strategy); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, strategy)
}

// Delete は戦略を削除する。
// DELETE /api/strategies/:id
func (h *StrategyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	strategy, ok := h.findStrategy(w, r)
	if !ok {
		return
	}

	if err := h.strategies.Delete(r.Context(), strategy.ID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// findStrategy はURLパラメータのIDで戦略を取得する。
// 見つからない場合は404を書き込みfalseを返す。
func (h *StrategyHandler) findStrategy(w http.ResponseWriter, r *http.Request) (*model.Strategy, bool) {
	id := chi.URLParam(r, "id")

	strategy, err := h.strategies.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return nil, false
	}
	if strategy == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewStrategyNotFoundError(id))
		return nil, false
	}
	return strategy, true
}
