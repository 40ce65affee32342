// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/repository"
)

// EntryDeleter は渡航記録の一括削除インターフェース。
type EntryDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// GroupDeleter は重複グループの一括削除インターフェース。
type GroupDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// countryCodePattern は母国設定で受け付ける国コードの形式（ISO 3166-1 alpha-2）。
var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// Service はユーザー管理のサービス層。
// 母国設定の更新と退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	entryDeleter EntryDeleter
	groupDeleter GroupDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	entryDeleter EntryDeleter,
	groupDeleter GroupDeleter,
) *Service {
	return &Service{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		entryDeleter: entryDeleter,
		groupDeleter: groupDeleter,
	}
}

// Get は指定IDのユーザーを取得する。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateHomeCountry はユーザーの母国設定を更新する。
// 母国は滞在日数レポートで国外日数から除外される国を決める。
func (s *Service) UpdateHomeCountry(ctx context.Context, userID, countryCode, countryName string) error {
	if !countryCodePattern.MatchString(countryCode) {
		return model.NewInvalidEntryError(fmt.Sprintf("国コードの形式が不正です: %s", countryCode))
	}
	if countryName == "" {
		return model.NewInvalidEntryError("国名は必須です")
	}

	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}

	if err := s.userRepo.UpdateHomeCountry(ctx, userID, countryCode, countryName); err != nil {
		return fmt.Errorf("母国設定の更新に失敗しました: %w", err)
	}

	slog.Info("母国設定を更新しました",
		slog.String("user_id", userID),
		slog.String("home_country_code", countryCode),
	)

	return nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: duplicate_groups → travel_entries → sessions → user（+ CASCADE: identities）
// 渡航情報（advisories）は全ユーザー共有のキャッシュとして残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 重複グループを削除（渡航記録への参照を先に外す）
	if s.groupDeleter != nil {
		if err := s.groupDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("重複グループの削除に失敗しました: %w", err)
		}
	}

	// 2. 渡航記録を削除
	if s.entryDeleter != nil {
		if err := s.entryDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("渡航記録の削除に失敗しました: %w", err)
		}
	}

	// 3. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 4. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
