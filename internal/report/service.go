// Package report は滞在日数レポートと統合タイムラインの生成を提供する。
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eshbtc/travelcheck/internal/crossref"
	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/presence"
	"github.com/eshbtc/travelcheck/internal/repository"
)

// Recorder はレポート生成のメトリクス記録インターフェース。
type Recorder interface {
	RecordReportGenerated()
	RecordEventsFused(eventCount int)
}

// Service はレポート生成のサービス層。
// 滞在日数レポートはユーザーの母国設定から母国判定述語を構築して計算する。
type Service struct {
	entryRepo repository.TravelEntryRepository
	userRepo  repository.UserRepository
	fuser     *crossref.Fuser
	recorder  Recorder
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// fuserがnilの場合はデフォルトの抽出器を使用する。
// recorderはnil可（メトリクス記録なし）。nowがnilの場合はtime.Nowを使用する。
func NewService(
	entryRepo repository.TravelEntryRepository,
	userRepo repository.UserRepository,
	fuser *crossref.Fuser,
	recorder Recorder,
	now func() time.Time,
) *Service {
	if fuser == nil {
		fuser = crossref.NewFuser(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		entryRepo: entryRepo,
		userRepo:  userRepo,
		fuser:     fuser,
		recorder:  recorder,
		now:       now,
	}
}

// GeneratePresenceReport は指定期間の滞在日数レポートを生成する。
// 対象はユーザーの全渡航記録。母国はユーザー設定から決まり、
// 未設定の場合は米国をデフォルトとする。
func (s *Service) GeneratePresenceReport(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*model.PresenceReport, error) {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, model.NewInvalidPeriodError("開始日と終了日は必須です")
	}
	if !periodEnd.After(periodStart) {
		return nil, model.NewInvalidPeriodError("終了日は開始日より後である必要があります")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	entries, err := s.entryRepo.ListByUserID(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("渡航記録の取得に失敗しました: %w", err)
	}

	isHome := presence.DefaultHomePredicate
	if user.HomeCountryCode != "" || user.HomeCountryName != "" {
		isHome = presence.HomeCountryPredicate(user.HomeCountryCode, user.HomeCountryName)
	}

	calc := presence.NewCalculator(isHome, s.now)
	result := calc.BuildReport(entries, model.ReportPeriod{Start: periodStart, End: periodEnd})

	if s.recorder != nil {
		s.recorder.RecordReportGenerated()
	}

	slog.Info("滞在日数レポートを生成しました",
		slog.String("user_id", userID),
		slog.Time("period_start", periodStart),
		slog.Time("period_end", periodEnd),
		slog.Int("trip_count", len(result.Trips)),
		slog.Int("total_days_outside", result.TotalDaysOutside),
	)

	return result, nil
}

// BuildTimeline はパスポートスキャンとフライトメールの記録を統合タイムラインに変換する。
// 抽出可能なペアを持たないレコードは結果に寄与しないだけで、エラーにはならない。
func (s *Service) BuildTimeline(ctx context.Context, userID string, passports []model.PassportScanRecord, flights []model.FlightEmailRecord) (*crossref.FusionResult, error) {
	result := s.fuser.Fuse(passports, flights)

	if s.recorder != nil {
		s.recorder.RecordEventsFused(len(result.Events))
	}

	slog.Info("統合タイムラインを生成しました",
		slog.String("user_id", userID),
		slog.Int("event_count", len(result.Events)),
		slog.Int("country_count", len(result.PresenceAnalysis)),
	)

	return result, nil
}
