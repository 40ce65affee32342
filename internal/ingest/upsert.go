package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eshbtc/travelcheck/internal/crossref"
	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/repository"
)

// IngestResult は1通のメール取り込みの結果サマリー。
type IngestResult struct {
	Inserted int
	Updated  int
	Record   model.FlightEmailRecord
}

// IngestRecorder はメール取り込みのメトリクス記録インターフェース。
type IngestRecorder interface {
	RecordEmailIngested(inserted, updated int)
}

// EntryUpsertService は抽出済みフライト記録の同一性判定とUPSERT処理を提供する。
// 3段階の同一性判定ロジックにより、同じメールの再取り込みや
// 複数ソースからの同一渡航の登録による重複を防ぎつつ、既存記録の上書き更新を行う。
type EntryUpsertService struct {
	entryRepo  repository.TravelEntryRepository
	extractor  *EmailExtractor
	pairs      crossref.PairExtractor
	recorder   IngestRecorder
	maxEntries int
}

// NewEntryUpsertService はEntryUpsertServiceの新しいインスタンスを生成する。
// pairsがnilの場合はcrossref.RegexExtractorを使用する。recorderはnil可。
func NewEntryUpsertService(
	entryRepo repository.TravelEntryRepository,
	extractor *EmailExtractor,
	pairs crossref.PairExtractor,
	recorder IngestRecorder,
	maxEntries int,
) *EntryUpsertService {
	if pairs == nil {
		pairs = crossref.NewRegexExtractor()
	}
	return &EntryUpsertService{
		entryRepo:  entryRepo,
		extractor:  extractor,
		pairs:      pairs,
		recorder:   recorder,
		maxEntries: maxEntries,
	}
}

// IngestEmail はフライト確認メールのHTML本文から渡航記録を取り込む。
//
// 3段階の同一性判定ロジック:
//  1. (user_id, confirmation_number) - 最優先
//  2. (user_id, flight_number, entry_date) - 第2優先
//  3. hash(country_code + entry_date + entry_type) - 第3優先
//
// 区間（日付と空港コードのペア）ごとに1件のTravelEntryをUPSERTする。
// 抽出可能な区間がないメールはEXTRACTION_FAILEDエラーを返す。
func (s *EntryUpsertService) IngestEmail(ctx context.Context, userID, emailID, rawHTML string) (*IngestResult, error) {
	record := s.extractor.Extract(emailID, rawHTML)

	events := s.pairs.ExtractFlightEvents(record)
	if len(events) == 0 {
		return nil, model.NewExtractionFailedError("日付と空港コードのペアが見つかりません")
	}

	count, err := s.entryRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("渡航記録数の取得に失敗しました: %w", err)
	}
	if count+len(events) > s.maxEntries {
		return nil, model.NewEntryLimitError()
	}

	now := time.Now()
	result := &IngestResult{Record: record}

	for i, event := range events {
		candidate := &model.TravelEntry{
			UserID:             userID,
			EntryDate:          event.Date,
			CountryCode:        event.Country,
			EntryType:          model.EntryTypeEntry,
			FlightNumber:       flightNumberAt(record.FlightNumbers, i),
			ConfirmationNumber: record.ConfirmationNumber,
			SourceType:         model.SourceTypeEmail,
		}
		candidate.ContentHash = model.ContentHash(candidate.CountryCode, candidate.EntryDate, candidate.EntryType)

		existing, findErr := s.findExistingEntry(ctx, userID, candidate)
		if findErr != nil {
			slog.Error("渡航記録の同一性判定でエラー",
				"user_id", userID,
				"email_id", emailID,
				"error", findErr,
			)
			return result, fmt.Errorf("渡航記録の同一性判定に失敗しました: %w", findErr)
		}

		if existing != nil {
			if updateErr := s.updateExistingEntry(ctx, existing, candidate, now); updateErr != nil {
				slog.Error("渡航記録の更新でエラー",
					"user_id", userID,
					"entry_id", existing.ID,
					"error", updateErr,
				)
				return result, fmt.Errorf("渡航記録の更新に失敗しました: %w", updateErr)
			}
			result.Updated++
		} else {
			if createErr := s.createNewEntry(ctx, candidate, now); createErr != nil {
				slog.Error("渡航記録の挿入でエラー",
					"user_id", userID,
					"email_id", emailID,
					"error", createErr,
				)
				return result, fmt.Errorf("渡航記録の挿入に失敗しました: %w", createErr)
			}
			result.Inserted++
		}
	}

	if s.recorder != nil {
		s.recorder.RecordEmailIngested(result.Inserted, result.Updated)
	}

	slog.Info("メール取り込み完了",
		"user_id", userID,
		"email_id", emailID,
		"inserted", result.Inserted,
		"updated", result.Updated,
	)

	return result, nil
}

// findExistingEntry は3段階の同一性判定で既存の渡航記録を検索する。
// 優先順位: (user_id, confirmation_number) > (user_id, flight_number, entry_date) > content_hash
func (s *EntryUpsertService) findExistingEntry(
	ctx context.Context,
	userID string,
	candidate *model.TravelEntry,
) (*model.TravelEntry, error) {
	// 第1優先: user_id + confirmation_number
	if candidate.ConfirmationNumber != "" {
		entry, err := s.entryRepo.FindByUserAndConfirmation(ctx, userID, candidate.ConfirmationNumber)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}

	// 第2優先: user_id + flight_number + entry_date
	if candidate.FlightNumber != "" {
		entry, err := s.entryRepo.FindByUserFlightAndDate(ctx, userID, candidate.FlightNumber, candidate.EntryDate)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}

	// 第3優先: content_hash
	if candidate.ContentHash != "" {
		entry, err := s.entryRepo.FindByUserAndContentHash(ctx, userID, candidate.ContentHash)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}

	return nil, nil
}

// updateExistingEntry は既存の渡航記録を上書き更新する。履歴は保持しない。
// 出国日・国名・市区町村はメール抽出では得られないため既存の値を維持する。
func (s *EntryUpsertService) updateExistingEntry(
	ctx context.Context,
	existing, candidate *model.TravelEntry,
	now time.Time,
) error {
	existing.EntryDate = candidate.EntryDate
	existing.CountryCode = candidate.CountryCode
	existing.FlightNumber = candidate.FlightNumber
	if candidate.ConfirmationNumber != "" {
		existing.ConfirmationNumber = candidate.ConfirmationNumber
	}
	existing.ContentHash = candidate.ContentHash
	existing.UpdatedAt = now

	return s.entryRepo.Update(ctx, existing)
}

// createNewEntry は新規の渡航記録を作成する。
func (s *EntryUpsertService) createNewEntry(ctx context.Context, candidate *model.TravelEntry, now time.Time) error {
	candidate.ID = uuid.New().String()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	return s.entryRepo.Create(ctx, candidate)
}

// flightNumberAt はi番目の区間に対応する便名を返す。
// 便名の件数が区間数に満たない場合は空文字列（未設定）を返す。
func flightNumberAt(flightNumbers []string, i int) string {
	if i < len(flightNumbers) {
		return flightNumbers[i]
	}
	return ""
}
