package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshbtc/travelcheck/internal/entry"
	"github.com/eshbtc/travelcheck/internal/ingest"
	"github.com/eshbtc/travelcheck/internal/middleware"
	"github.com/eshbtc/travelcheck/internal/model"
)

// EntryServiceInterface は渡航記録ハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	Create(ctx context.Context, userID string, params entry.Params) (*model.TravelEntry, error)
	Get(ctx context.Context, userID, entryID string) (*model.TravelEntry, error)
	List(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error)
	Update(ctx context.Context, userID, entryID string, params entry.Params) (*model.TravelEntry, error)
	Delete(ctx context.Context, userID, entryID string) error
}

// IngestServiceInterface はメール取り込みハンドラーが必要とするサービスインターフェース。
type IngestServiceInterface interface {
	IngestEmail(ctx context.Context, userID, emailID, rawHTML string) (*ingest.IngestResult, error)
}

// EntryHandler は渡航記録管理のHTTPハンドラー。
type EntryHandler struct {
	service       EntryServiceInterface
	ingestService IngestServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface, ingestService IngestServiceInterface) *EntryHandler {
	return &EntryHandler{
		service:       service,
		ingestService: ingestService,
	}
}

// --- リクエスト・レスポンス型 ---

// entryRequest は渡航記録の作成・更新リクエストのボディ。
type entryRequest struct {
	EntryDate          string `json:"entry_date"` // YYYY-MM-DD
	ExitDate           string `json:"exit_date,omitempty"`
	CountryCode        string `json:"country_code"`
	CountryName        string `json:"country_name"`
	City               string `json:"city,omitempty"`
	EntryType          string `json:"entry_type,omitempty"`
	FlightNumber       string `json:"flight_number,omitempty"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
}

// entryResponse は渡航記録のAPIレスポンス。
type entryResponse struct {
	ID                 string    `json:"id"`
	EntryDate          string    `json:"entry_date"`
	ExitDate           string    `json:"exit_date,omitempty"`
	CountryCode        string    `json:"country_code"`
	CountryName        string    `json:"country_name"`
	City               string    `json:"city,omitempty"`
	EntryType          string    `json:"entry_type"`
	FlightNumber       string    `json:"flight_number,omitempty"`
	ConfirmationNumber string    `json:"confirmation_number,omitempty"`
	SourceType         string    `json:"source_type"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// entryListResponse は渡航記録一覧のレスポンス。
type entryListResponse struct {
	Entries []entryResponse `json:"entries"`
	Total   int             `json:"total"`
}

// emailImportRequest はフライト確認メール取り込みリクエストのボディ。
type emailImportRequest struct {
	EmailID string `json:"email_id"`
	HTML    string `json:"html"`
}

// emailImportResponse はメール取り込み結果のレスポンス。
type emailImportResponse struct {
	Inserted           int      `json:"inserted"`
	Updated            int      `json:"updated"`
	ConfirmationNumber string   `json:"confirmation_number,omitempty"`
	Dates              []string `json:"dates,omitempty"`
	Airports           []string `json:"airports,omitempty"`
	FlightNumbers      []string `json:"flight_numbers,omitempty"`
}

// toEntryResponse はドメインのTravelEntryをAPIレスポンス型に変換する。
func toEntryResponse(e *model.TravelEntry) entryResponse {
	return entryResponse{
		ID:                 e.ID,
		EntryDate:          e.EntryDate.Format(dateLayout),
		ExitDate:           formatDatePtr(e.ExitDate),
		CountryCode:        e.CountryCode,
		CountryName:        e.CountryName,
		City:               e.City,
		EntryType:          string(e.EntryType),
		FlightNumber:       e.FlightNumber,
		ConfirmationNumber: e.ConfirmationNumber,
		SourceType:         string(e.SourceType),
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

// toEntryParams はリクエストボディをサービス層のパラメータに変換する。
func toEntryParams(req entryRequest) (entry.Params, error) {
	entryDate, err := parseDateParam(req.EntryDate)
	if err != nil {
		return entry.Params{}, model.NewInvalidEntryError("入国日の形式が不正です")
	}

	var exitDate *time.Time
	if req.ExitDate != "" {
		parsed, err := time.Parse(dateLayout, req.ExitDate)
		if err != nil {
			return entry.Params{}, model.NewInvalidEntryError("出国日の形式が不正です")
		}
		exitDate = &parsed
	}

	return entry.Params{
		EntryDate:          entryDate,
		ExitDate:           exitDate,
		CountryCode:        req.CountryCode,
		CountryName:        req.CountryName,
		City:               req.City,
		EntryType:          model.EntryType(req.EntryType),
		FlightNumber:       req.FlightNumber,
		ConfirmationNumber: req.ConfirmationNumber,
	}, nil
}

// Create は渡航記録を手動で作成する。
// POST /api/entries
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	params, err := toEntryParams(req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toEntryResponse(created))
}

// List は渡航記録一覧を取得する。
// GET /api/entries?type=entry|exit|trip
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	entryType := model.EntryType(r.URL.Query().Get("type"))

	entries, err := h.service.List(r.Context(), userID, entryType)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]entryResponse, len(entries))
	for i, e := range entries {
		results[i] = toEntryResponse(e)
	}

	writeJSONResponse(w, http.StatusOK, entryListResponse{
		Entries: results,
		Total:   len(results),
	})
}

// Get は渡航記録の詳細を取得する。
// GET /api/entries/:id
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	entryID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), userID, entryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toEntryResponse(found))
}

// Update は渡航記録を更新する。
// PUT /api/entries/:id
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	entryID := chi.URLParam(r, "id")

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	params, err := toEntryParams(req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, entryID, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toEntryResponse(updated))
}

// Delete は渡航記録を削除する。
// DELETE /api/entries/:id
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	entryID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, entryID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ImportEmail はフライト確認メールのHTML本文から渡航記録を取り込む。
// POST /api/entries/import/email
func (h *EntryHandler) ImportEmail(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req emailImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if req.HTML == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "メール本文（html）が空です。",
			Category: "validation",
			Action:   "取り込むメールのHTML本文を指定してください。",
		})
		return
	}

	result, err := h.ingestService.IngestEmail(r.Context(), userID, req.EmailID, req.HTML)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, emailImportResponse{
		Inserted:           result.Inserted,
		Updated:            result.Updated,
		ConfirmationNumber: result.Record.ConfirmationNumber,
		Dates:              result.Record.Dates,
		Airports:           result.Record.Airports,
		FlightNumbers:      result.Record.FlightNumbers,
	})
}
