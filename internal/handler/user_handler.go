package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/eshbtc/travelcheck/internal/middleware"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// UpdateHomeCountry はユーザーの母国設定を更新する。
	UpdateHomeCountry(ctx context.Context, userID, countryCode, countryName string) error
	// Withdraw はユーザーの退会処理を実行する。
	// user、identities、sessions、travel_entries、duplicate_groupsを一括削除する。
	// advisoriesは共有キャッシュとして残す。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// homeCountryRequest は母国設定更新リクエストのボディ。
type homeCountryRequest struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
}

// UpdateHomeCountry はユーザーの母国設定を更新する。
// PUT /api/users/me/home-country
func (h *UserHandler) UpdateHomeCountry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req homeCountryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if err := h.service.UpdateHomeCountry(r.Context(), userID, req.CountryCode, req.CountryName); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"country_code": req.CountryCode,
		"country_name": req.CountryName,
	})
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
