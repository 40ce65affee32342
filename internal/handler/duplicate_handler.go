package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshbtc/travelcheck/internal/dedup"
	"github.com/eshbtc/travelcheck/internal/middleware"
	"github.com/eshbtc/travelcheck/internal/model"
)

// DuplicateServiceInterface は重複検出ハンドラーが必要とするサービスインターフェース。
type DuplicateServiceInterface interface {
	// RunClustering はユーザーの全渡航記録に対して重複クラスタリングを実行する。
	RunClustering(ctx context.Context, userID string) (*dedup.RunResult, error)
	// ListGroups はユーザーの重複グループ一覧を返す。
	ListGroups(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.DuplicateGroupWithItems, error)
	// ResolveGroup はグループの解決状態を更新する。
	ResolveGroup(ctx context.Context, userID, groupID string, status model.DuplicateStatus) error
}

// DuplicateHandler は重複検出・解決のHTTPハンドラー。
type DuplicateHandler struct {
	service DuplicateServiceInterface
}

// NewDuplicateHandler はDuplicateHandlerを生成する。
func NewDuplicateHandler(service DuplicateServiceInterface) *DuplicateHandler {
	return &DuplicateHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// duplicateItemResponse はグループ所属アイテムのレスポンス。
type duplicateItemResponse struct {
	EntryID         string  `json:"entry_id"`
	IsPrimary       bool    `json:"is_primary"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// duplicateGroupResponse は重複グループのレスポンス。
type duplicateGroupResponse struct {
	ID              string                  `json:"id"`
	SimilarityScore float64                 `json:"similarity_score"`
	Status          string                  `json:"status"`
	CreatedAt       time.Time               `json:"created_at"`
	Items           []duplicateItemResponse `json:"items"`
}

// scanResponse はクラスタリング実行結果のレスポンス。
type scanResponse struct {
	EntryCount int                      `json:"entry_count"`
	GroupCount int                      `json:"group_count"`
	Groups     []duplicateGroupResponse `json:"groups"`
}

// duplicateListResponse は重複グループ一覧のレスポンス。
type duplicateListResponse struct {
	Groups []duplicateGroupResponse `json:"groups"`
	Total  int                      `json:"total"`
}

// resolveRequest はグループ解決リクエストのボディ。
type resolveRequest struct {
	Status string `json:"status"` // "resolved" または "auto_resolved"
}

// toDuplicateGroupResponse はドメインのグループをAPIレスポンス型に変換する。
func toDuplicateGroupResponse(g model.DuplicateGroupWithItems) duplicateGroupResponse {
	items := make([]duplicateItemResponse, len(g.Items))
	for i, item := range g.Items {
		items[i] = duplicateItemResponse{
			EntryID:         item.EntryID,
			IsPrimary:       item.IsPrimary,
			ConfidenceScore: item.ConfidenceScore,
		}
	}
	return duplicateGroupResponse{
		ID:              g.ID,
		SimilarityScore: g.SimilarityScore,
		Status:          string(g.Status),
		CreatedAt:       g.CreatedAt,
		Items:           items,
	}
}

// Scan は重複クラスタリングを実行し、検出されたグループを返す。
// POST /api/duplicates/scan
func (h *DuplicateHandler) Scan(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	result, err := h.service.RunClustering(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	groups := make([]duplicateGroupResponse, len(result.Groups))
	for i, g := range result.Groups {
		groups[i] = toDuplicateGroupResponse(g)
	}

	writeJSONResponse(w, http.StatusOK, scanResponse{
		EntryCount: result.EntryCount,
		GroupCount: len(groups),
		Groups:     groups,
	})
}

// List は重複グループ一覧を取得する。
// GET /api/duplicates?status=pending|resolved|auto_resolved
func (h *DuplicateHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	status := model.DuplicateStatus(r.URL.Query().Get("status"))

	groups, err := h.service.ListGroups(r.Context(), userID, status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]duplicateGroupResponse, len(groups))
	for i, g := range groups {
		results[i] = toDuplicateGroupResponse(g)
	}

	writeJSONResponse(w, http.StatusOK, duplicateListResponse{
		Groups: results,
		Total:  len(results),
	})
}

// Resolve は重複グループの解決状態を更新する。
// POST /api/duplicates/:id/resolve
func (h *DuplicateHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	groupID := chi.URLParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if err := h.service.ResolveGroup(r.Context(), userID, groupID, model.DuplicateStatus(req.Status)); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
