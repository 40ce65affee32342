package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

type mockEntryRepo struct {
	listByUserIDFunc func(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error)
}

func (m *mockEntryRepo) FindByID(ctx context.Context, id string) (*model.TravelEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) ListByUserID(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error) {
	return m.listByUserIDFunc(ctx, userID, entryType)
}

func (m *mockEntryRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (m *mockEntryRepo) FindByUserAndConfirmation(ctx context.Context, userID, confirmationNumber string) (*model.TravelEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) FindByUserFlightAndDate(ctx context.Context, userID, flightNumber string, entryDate time.Time) (*model.TravelEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) FindByUserAndContentHash(ctx context.Context, userID, contentHash string) (*model.TravelEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) Create(ctx context.Context, entry *model.TravelEntry) error { return nil }

func (m *mockEntryRepo) Update(ctx context.Context, entry *model.TravelEntry) error { return nil }

func (m *mockEntryRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (m *mockEntryRepo) DeleteByUserID(ctx context.Context, userID string) error { return nil }

func (m *mockEntryRepo) ListDestinationCountryCodes(ctx context.Context) ([]string, error) {
	return nil, nil
}

type createdGroup struct {
	group *model.DuplicateGroup
	items []model.DuplicateItem
}

type mockGroupRepo struct {
	created []createdGroup

	createGroupWithItemsFunc func(ctx context.Context, group *model.DuplicateGroup, items []model.DuplicateItem) error
	findGroupByIDFunc        func(ctx context.Context, id string) (*model.DuplicateGroupWithItems, error)
	listGroupsByUserIDFunc   func(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.DuplicateGroupWithItems, error)
	updateStatusFunc         func(ctx context.Context, groupID string, status model.DuplicateStatus) error
}

func (m *mockGroupRepo) CreateGroupWithItems(ctx context.Context, group *model.DuplicateGroup, items []model.DuplicateItem) error {
	if m.createGroupWithItemsFunc != nil {
		if err := m.createGroupWithItemsFunc(ctx, group, items); err != nil {
			return err
		}
	}
	m.created = append(m.created, createdGroup{group: group, items: items})
	return nil
}

func (m *mockGroupRepo) FindGroupByID(ctx context.Context, id string) (*model.DuplicateGroupWithItems, error) {
	if m.findGroupByIDFunc != nil {
		return m.findGroupByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockGroupRepo) ListGroupsByUserID(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.DuplicateGroupWithItems, error) {
	if m.listGroupsByUserIDFunc != nil {
		return m.listGroupsByUserIDFunc(ctx, userID, status)
	}
	return nil, nil
}

func (m *mockGroupRepo) UpdateStatus(ctx context.Context, groupID string, status model.DuplicateStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, groupID, status)
	}
	return nil
}

func (m *mockGroupRepo) DeleteByUserID(ctx context.Context, userID string) error { return nil }

type mockRecorder struct {
	groupCounts []int
}

func (m *mockRecorder) RecordClusteringRun(groupCount int) {
	m.groupCounts = append(m.groupCounts, groupCount)
}

// クラスタリング実行の永続化マッピングを検証:
// status=pending、is_primaryはアンカーのみtrue、confidence_score=グループ類似度
func TestRunClustering_PersistenceMapping(t *testing.T) {
	entries := []*model.TravelEntry{
		entry("a", "FR", "2023-06-01"),
		entry("b", "FR", "2023-06-02"),
		entry("c", "DE", "2023-09-15"),
	}
	entryRepo := &mockEntryRepo{
		listByUserIDFunc: func(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error) {
			if userID != "user-1" {
				t.Errorf("userID = %s, want user-1", userID)
			}
			if entryType != "" {
				t.Errorf("entryType = %s, want 空文字列（全種別）", entryType)
			}
			return entries, nil
		},
	}
	groupRepo := &mockGroupRepo{}
	recorder := &mockRecorder{}

	svc := NewService(entryRepo, groupRepo, NewClusterer(nil, 0), recorder)

	result, err := svc.RunClustering(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RunClustering() error = %v", err)
	}

	if result.EntryCount != 3 {
		t.Errorf("EntryCount = %d, want 3", result.EntryCount)
	}
	if len(groupRepo.created) != 1 {
		t.Fatalf("永続化されたグループ数 = %d, want 1", len(groupRepo.created))
	}

	cg := groupRepo.created[0]
	if cg.group.UserID != "user-1" {
		t.Errorf("group.UserID = %s, want user-1", cg.group.UserID)
	}
	if cg.group.Status != model.DuplicateStatusPending {
		t.Errorf("group.Status = %s, want pending", cg.group.Status)
	}
	if cg.group.ID == "" {
		t.Error("group.IDが空です")
	}
	if cg.group.SimilarityScore != 1.0 {
		t.Errorf("group.SimilarityScore = %v, want 1.0", cg.group.SimilarityScore)
	}

	if len(cg.items) != 2 {
		t.Fatalf("アイテム数 = %d, want 2", len(cg.items))
	}
	primaryCount := 0
	for i, item := range cg.items {
		if item.GroupID != cg.group.ID {
			t.Errorf("items[%d].GroupID = %s, want %s", i, item.GroupID, cg.group.ID)
		}
		if item.ConfidenceScore != cg.group.SimilarityScore {
			t.Errorf("items[%d].ConfidenceScore = %v, want %v", i, item.ConfidenceScore, cg.group.SimilarityScore)
		}
		if item.IsPrimary {
			primaryCount++
		}
	}
	if primaryCount != 1 {
		t.Errorf("is_primary数 = %d, want 1", primaryCount)
	}
	if !cg.items[0].IsPrimary {
		t.Error("アンカー（先頭アイテム）がis_primaryではありません")
	}
	if cg.items[0].EntryID != "a" {
		t.Errorf("アンカーのEntryID = %s, want a", cg.items[0].EntryID)
	}

	if len(recorder.groupCounts) != 1 || recorder.groupCounts[0] != 1 {
		t.Errorf("メトリクス記録 = %v, want [1]", recorder.groupCounts)
	}
}

// 重複が見つからない場合にグループを書き込まないことを検証
func TestRunClustering_NoGroups(t *testing.T) {
	entryRepo := &mockEntryRepo{
		listByUserIDFunc: func(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error) {
			return []*model.TravelEntry{
				entry("a", "FR", "2023-06-01"),
				entry("b", "DE", "2023-09-15"),
			}, nil
		},
	}
	groupRepo := &mockGroupRepo{}

	svc := NewService(entryRepo, groupRepo, NewClusterer(nil, 0), nil)

	result, err := svc.RunClustering(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RunClustering() error = %v", err)
	}
	if len(result.Groups) != 0 {
		t.Errorf("グループ数 = %d, want 0", len(result.Groups))
	}
	if len(groupRepo.created) != 0 {
		t.Errorf("永続化されたグループ数 = %d, want 0", len(groupRepo.created))
	}
}

// 記録取得エラーが呼び出し元へ伝播することを検証
func TestRunClustering_ListError(t *testing.T) {
	wantErr := errors.New("db down")
	entryRepo := &mockEntryRepo{
		listByUserIDFunc: func(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error) {
			return nil, wantErr
		},
	}

	svc := NewService(entryRepo, &mockGroupRepo{}, NewClusterer(nil, 0), nil)

	_, err := svc.RunClustering(context.Background(), "user-1")
	if !errors.Is(err, wantErr) {
		t.Errorf("RunClustering() error = %v, want %v をラップしたエラー", err, wantErr)
	}
}

// グループ保存エラーで実行が中断することを検証
func TestRunClustering_PersistError(t *testing.T) {
	wantErr := errors.New("insert failed")
	entryRepo := &mockEntryRepo{
		listByUserIDFunc: func(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error) {
			return []*model.TravelEntry{
				entry("a", "FR", "2023-06-01"),
				entry("b", "FR", "2023-06-02"),
			}, nil
		},
	}
	groupRepo := &mockGroupRepo{
		createGroupWithItemsFunc: func(ctx context.Context, group *model.DuplicateGroup, items []model.DuplicateItem) error {
			return wantErr
		},
	}

	svc := NewService(entryRepo, groupRepo, NewClusterer(nil, 0), nil)

	_, err := svc.RunClustering(context.Background(), "user-1")
	if !errors.Is(err, wantErr) {
		t.Errorf("RunClustering() error = %v, want %v をラップしたエラー", err, wantErr)
	}
}

// 解決状態の更新を検証
func TestResolveGroup(t *testing.T) {
	tests := []struct {
		name      string
		status    model.DuplicateStatus
		owner     string
		found     bool
		wantErr   bool
		wantCode  string
		wantCalls int
	}{
		{
			name:      "正常系: resolved",
			status:    model.DuplicateStatusResolved,
			owner:     "user-1",
			found:     true,
			wantCalls: 1,
		},
		{
			name:      "正常系: auto_resolved",
			status:    model.DuplicateStatusAutoResolved,
			owner:     "user-1",
			found:     true,
			wantCalls: 1,
		},
		{
			name:     "pendingへの遷移は拒否",
			status:   model.DuplicateStatusPending,
			owner:    "user-1",
			found:    true,
			wantErr:  true,
			wantCode: model.ErrCodeInvalidGroupStatus,
		},
		{
			name:     "グループが存在しない",
			status:   model.DuplicateStatusResolved,
			found:    false,
			wantErr:  true,
			wantCode: model.ErrCodeGroupNotFound,
		},
		{
			name:     "他ユーザーのグループ",
			status:   model.DuplicateStatusResolved,
			owner:    "user-2",
			found:    true,
			wantErr:  true,
			wantCode: model.ErrCodeGroupNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updateCalls := 0
			groupRepo := &mockGroupRepo{
				findGroupByIDFunc: func(ctx context.Context, id string) (*model.DuplicateGroupWithItems, error) {
					if !tt.found {
						return nil, nil
					}
					return &model.DuplicateGroupWithItems{
						DuplicateGroup: model.DuplicateGroup{ID: id, UserID: tt.owner},
					}, nil
				},
				updateStatusFunc: func(ctx context.Context, groupID string, status model.DuplicateStatus) error {
					updateCalls++
					if status != tt.status {
						t.Errorf("UpdateStatus status = %s, want %s", status, tt.status)
					}
					return nil
				},
			}

			svc := NewService(&mockEntryRepo{}, groupRepo, NewClusterer(nil, 0), nil)

			err := svc.ResolveGroup(context.Background(), "user-1", "group-1", tt.status)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveGroup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("APIErrorではありません: %v", err)
				}
				if apiErr.Code != tt.wantCode {
					t.Errorf("Code = %s, want %s", apiErr.Code, tt.wantCode)
				}
			}
			if updateCalls != tt.wantCalls {
				t.Errorf("UpdateStatus呼び出し回数 = %d, want %d", updateCalls, tt.wantCalls)
			}
		})
	}
}
