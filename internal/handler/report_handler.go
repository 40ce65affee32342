package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eshbtc/travelcheck/internal/crossref"
	"github.com/eshbtc/travelcheck/internal/middleware"
	"github.com/eshbtc/travelcheck/internal/model"
)

// ReportServiceInterface はレポートハンドラーが必要とするサービスインターフェース。
type ReportServiceInterface interface {
	// GeneratePresenceReport は指定期間の滞在日数レポートを生成する。
	GeneratePresenceReport(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*model.PresenceReport, error)
	// BuildTimeline はパスポートスキャンとフライトメールの記録を統合タイムラインに変換する。
	BuildTimeline(ctx context.Context, userID string, passports []model.PassportScanRecord, flights []model.FlightEmailRecord) (*crossref.FusionResult, error)
}

// ReportHandler は滞在日数レポートと統合タイムラインのHTTPハンドラー。
type ReportHandler struct {
	service ReportServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

// timelineRequest は統合タイムライン生成リクエストのボディ。
type timelineRequest struct {
	Passports []model.PassportScanRecord `json:"passports"`
	Flights   []model.FlightEmailRecord  `json:"flights"`
}

// Presence は滞在日数レポートを生成する。
// GET /api/reports/presence?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *ReportHandler) Presence(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	start, err := parseDateParam(r.URL.Query().Get("start"))
	if err != nil {
		handleServiceError(w, model.NewInvalidPeriodError("開始日の形式が不正です"))
		return
	}
	end, err := parseDateParam(r.URL.Query().Get("end"))
	if err != nil {
		handleServiceError(w, model.NewInvalidPeriodError("終了日の形式が不正です"))
		return
	}

	report, err := h.service.GeneratePresenceReport(r.Context(), userID, start, end)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, report)
}

// Timeline はパスポートスキャンとフライトメールの記録を統合タイムラインに変換する。
// POST /api/reports/timeline
func (h *ReportHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req timelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	result, err := h.service.BuildTimeline(r.Context(), userID, req.Passports, req.Flights)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}
