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

// KitHandler はキット管理のHTTPハンドラー。
type KitHandler struct {
	kits      repository.KitRepository
	sanitizer HTMLSanitizer
	logger    *slog.Logger
}

// NewKitHandler はKitHandlerを生成する。
func NewKitHandler(kits repository.KitRepository, sanitizer HTMLSanitizer, logger *slog.Logger) *KitHandler {
	return &KitHandler{
		kits:      kits,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// kitRequest はキット作成・更新リクエストのボディ。
type kitRequest struct {
	Name            string `json:"name"`
	Role            string `json:"role"`
	DescriptionHTML string `json:"description_html"`
}

// List はキット一覧を名前の昇順で返す。
// GET /api/kits
func (h *KitHandler) List(w http.ResponseWriter, r *http.Request) {
	kits, err := h.kits.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if kits == nil {
		kits = []*model.Kit{}
	}
	writeJSON(w, http.StatusOK, kits)
}

// Create はキットを登録する。キット名は一意でなければならない。
// POST /api/kits
func (h *KitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req kitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("nameは必須です"))
		return
	}

	existing, err := h.kits.FindByName(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if existing != nil {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateKitError(req.Name))
		return
	}

	now := time.Now().UTC()
	kit := &model.Kit{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Role:            strings.TrimSpace(req.Role),
		DescriptionHTML: h.sanitizer.Sanitize(req.DescriptionHTML),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.kits.Create(r.Context(), kit); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, kit)
}

// Get はキット詳細を返す。
// GET /api/kits/:id
func (h *KitHandler) Get(w http.ResponseWriter, r *http.Request) {
	kit, ok := h.findKit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, kit)
}

// Update はキットを更新する。名前変更時は一意性を再検証する。
// PUT /api/kits/:id
func (h *KitHandler) Update(w http.ResponseWriter, r *http.Request) {
	kit, ok := h.findKit(w, r)
	if !ok {
		return
	}

	var req kitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("nameは必須です"))
		return
	}

	if req.Name != kit.Name {
		existing, err := h.kits.FindByName(r.Context(), req.Name)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		if existing != nil {
			writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateKitError(req.Name))
			return
		}
	}

	kit.Name = req.Name
	kit.Role = strings.TrimSpace(req.Role)
	kit.DescriptionHTML = h.sanitizer.Sanitize(req.DescriptionHTML)
	kit.UpdatedAt = time.Now().UTC()

	if err := h.kits.Update(r.Context(), kit); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, kit)
}

// Delete はキットを削除する。
// DELETE /api/kits/:id
func (h *KitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kit, ok := h.findKit(w, r)
	if !ok {
		return
	}

	if err := h.kits.Delete(r.Context(), kit.ID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// findKit はURLパラメータのIDでキットを取得する。
// 見つからない場合は404を書き込みfalseを返す。
func (h *KitHandler) findKit(w http.ResponseWriter, r *http.Request) (*model.Kit, bool) {
	id := chi.URLParam(r, "id")

	kit, err := h.kits.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return nil, false
	}
	if kit == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewKitNotFoundError(id))
		return nil, false
	}
	return kit, true
}
