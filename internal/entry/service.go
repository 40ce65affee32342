// Package entry は渡航記録の管理機能を提供する。
package entry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/repository"
)

// Params は渡航記録の作成・更新パラメータ。
type Params struct {
	EntryDate          time.Time
	ExitDate           *time.Time
	CountryCode        string
	CountryName        string
	City               string
	EntryType          model.EntryType
	FlightNumber       string
	ConfirmationNumber string
}

// Service は渡航記録のサービス層。
// 手動入力による記録のCRUDとバリデーションを提供する。
type Service struct {
	entryRepo  repository.TravelEntryRepository
	maxEntries int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(entryRepo repository.TravelEntryRepository, maxEntries int) *Service {
	return &Service{
		entryRepo:  entryRepo,
		maxEntries: maxEntries,
	}
}

// Create は手動入力の渡航記録を作成する。
// 記録種別が未指定の場合はentryとして扱う。
func (s *Service) Create(ctx context.Context, userID string, params Params) (*model.TravelEntry, error) {
	if params.EntryType == "" {
		params.EntryType = model.EntryTypeEntry
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}

	count, err := s.entryRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("渡航記録数の取得に失敗しました: %w", err)
	}
	if count >= s.maxEntries {
		return nil, model.NewEntryLimitError()
	}

	now := time.Now()
	entry := &model.TravelEntry{
		ID:                 uuid.New().String(),
		UserID:             userID,
		EntryDate:          params.EntryDate,
		ExitDate:           params.ExitDate,
		CountryCode:        params.CountryCode,
		CountryName:        params.CountryName,
		City:               params.City,
		EntryType:          params.EntryType,
		FlightNumber:       params.FlightNumber,
		ConfirmationNumber: params.ConfirmationNumber,
		SourceType:         model.SourceTypeManual,
		ContentHash:        model.ContentHash(params.CountryCode, params.EntryDate, params.EntryType),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("渡航記録の作成に失敗しました: %w", err)
	}

	slog.Info("渡航記録を作成しました",
		slog.String("user_id", userID),
		slog.String("entry_id", entry.ID),
		slog.String("country_code", entry.CountryCode),
	)

	return entry, nil
}

// Get は指定IDの渡航記録を取得する。
// 他ユーザーの記録は存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, userID, entryID string) (*model.TravelEntry, error) {
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("渡航記録の取得に失敗しました: %w", err)
	}
	if entry == nil || entry.UserID != userID {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	return entry, nil
}

// List はユーザーの渡航記録をentry_date昇順で返す。
// entryTypeが空文字列以外の場合は記録種別でフィルタする。
func (s *Service) List(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error) {
	if entryType != "" && !entryType.IsValid() {
		return nil, model.NewInvalidEntryTypeError(string(entryType))
	}

	entries, err := s.entryRepo.ListByUserID(ctx, userID, entryType)
	if err != nil {
		return nil, fmt.Errorf("渡航記録一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// Update は既存の渡航記録を訂正編集する。
// 取得元・作成日時は維持され、content_hashは再計算される。
func (s *Service) Update(ctx context.Context, userID, entryID string, params Params) (*model.TravelEntry, error) {
	if params.EntryType == "" {
		params.EntryType = model.EntryTypeEntry
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}

	entry, err := s.Get(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	entry.EntryDate = params.EntryDate
	entry.ExitDate = params.ExitDate
	entry.CountryCode = params.CountryCode
	entry.CountryName = params.CountryName
	entry.City = params.City
	entry.EntryType = params.EntryType
	entry.FlightNumber = params.FlightNumber
	entry.ConfirmationNumber = params.ConfirmationNumber
	entry.ContentHash = model.ContentHash(params.CountryCode, params.EntryDate, params.EntryType)
	entry.UpdatedAt = time.Now()

	if err := s.entryRepo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("渡航記録の更新に失敗しました: %w", err)
	}

	return entry, nil
}

// Delete は指定IDの渡航記録を削除する。
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	// 所有権確認
	if _, err := s.Get(ctx, userID, entryID); err != nil {
		return err
	}

	if err := s.entryRepo.DeleteByID(ctx, entryID); err != nil {
		return fmt.Errorf("渡航記録の削除に失敗しました: %w", err)
	}

	slog.Info("渡航記録を削除しました",
		slog.String("user_id", userID),
		slog.String("entry_id", entryID),
	)

	return nil
}

// validateParams は渡航記録パラメータを検証する。
func validateParams(params Params) error {
	if params.EntryDate.IsZero() {
		return model.NewInvalidEntryError("入国日は必須です")
	}
	if params.CountryCode == "" && params.CountryName == "" {
		return model.NewInvalidEntryError("国コードまたは国名は必須です")
	}
	if !params.EntryType.IsValid() {
		return model.NewInvalidEntryTypeError(string(params.EntryType))
	}
	if params.ExitDate != nil && params.ExitDate.Before(params.EntryDate) {
		return model.NewInvalidEntryError("出国日は入国日以降である必要があります")
	}
	return nil
}
