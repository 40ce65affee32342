package handler

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshbtc/travelcheck/internal/model"
)

// advisoriesPerCountry は1カ国あたりの渡航情報の最大返却件数。
const advisoriesPerCountry = 20

// advisoryCountryPattern は渡航情報の取得で受け付ける国コードの形式。
var advisoryCountryPattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// AdvisoryLister は渡航情報の取得インターフェース。
// repository.AdvisoryRepositoryの部分集合として定義する。
type AdvisoryLister interface {
	ListByCountryCode(ctx context.Context, countryCode string, limit int) ([]*model.Advisory, error)
}

// AdvisoryHandler は渡航情報のHTTPハンドラー。
type AdvisoryHandler struct {
	lister AdvisoryLister
}

// NewAdvisoryHandler はAdvisoryHandlerを生成する。
func NewAdvisoryHandler(lister AdvisoryLister) *AdvisoryHandler {
	return &AdvisoryHandler{lister: lister}
}

// advisoryResponse は渡航情報のAPIレスポンス。
type advisoryResponse struct {
	CountryCode string     `json:"country_code"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// advisoryListResponse は渡航情報一覧のレスポンス。
type advisoryListResponse struct {
	CountryCode string             `json:"country_code"`
	Advisories  []advisoryResponse `json:"advisories"`
}

// ListByCountry は指定国の渡航情報を取得する。
// GET /api/advisories/:countryCode
func (h *AdvisoryHandler) ListByCountry(w http.ResponseWriter, r *http.Request) {
	countryCode := chi.URLParam(r, "countryCode")
	if !advisoryCountryPattern.MatchString(countryCode) {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "国コードの形式が不正です。",
			Category: "validation",
			Action:   "ISO 3166-1 alpha-2形式の国コードを指定してください。",
		})
		return
	}
	countryCode = strings.ToUpper(countryCode)

	advisories, err := h.lister.ListByCountryCode(r.Context(), countryCode, advisoriesPerCountry)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]advisoryResponse, len(advisories))
	for i, a := range advisories {
		results[i] = advisoryResponse{
			CountryCode: a.CountryCode,
			Title:       a.Title,
			Summary:     a.Summary,
			Link:        a.Link,
			PublishedAt: a.PublishedAt,
			FetchedAt:   a.FetchedAt,
		}
	}

	writeJSONResponse(w, http.StatusOK, advisoryListResponse{
		CountryCode: countryCode,
		Advisories:  results,
	})
}
