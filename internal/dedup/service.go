package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/repository"
)

// RunRecorder はクラスタリング実行のメトリクス記録インターフェース。
type RunRecorder interface {
	RecordClusteringRun(groupCount int)
}

// RunResult は1回のクラスタリング実行の結果サマリー。
type RunResult struct {
	EntryCount int
	Groups     []model.DuplicateGroupWithItems
}

// Service は重複検出のサービス層。
// ユーザーの渡航記録をentry_date昇順で読み込み、クラスタリングを実行し、
// 検出されたグループをDuplicateGroup/DuplicateItemとして永続化する。
//
// 同一ユーザーの記録集合に対する並行実行の直列化は呼び出し側の責務
// （エンジンは実行中に入力スナップショットが変化しないことを前提とする）。
type Service struct {
	entryRepo repository.TravelEntryRepository
	groupRepo repository.DuplicateGroupRepository
	clusterer *Clusterer
	recorder  RunRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnil可（メトリクス記録なし）。
func NewService(
	entryRepo repository.TravelEntryRepository,
	groupRepo repository.DuplicateGroupRepository,
	clusterer *Clusterer,
	recorder RunRecorder,
) *Service {
	return &Service{
		entryRepo: entryRepo,
		groupRepo: groupRepo,
		clusterer: clusterer,
		recorder:  recorder,
	}
}

// RunClustering はユーザーの全渡航記録に対してクラスタリングを1回実行し、
// 検出されたグループを永続化して返す。
//
// 永続化マッピング:
//   - 1グループ = 1 DuplicateGroup行（similarity_score = グループ平均類似度、status = pending）
//   - 1メンバー = 1 DuplicateItem行（is_primaryはアンカー（先頭要素）のみtrue、
//     confidence_score = グループのsimilarity_score）
//
// グループとアイテムはグループ単位でアトミックに書き込まれる。
func (s *Service) RunClustering(ctx context.Context, userID string) (*RunResult, error) {
	entries, err := s.entryRepo.ListByUserID(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("渡航記録の取得に失敗しました: %w", err)
	}

	groups := s.clusterer.Cluster(entries)
	now := time.Now()

	result := &RunResult{EntryCount: len(entries)}

	for _, g := range groups {
		group := &model.DuplicateGroup{
			ID:              uuid.New().String(),
			UserID:          userID,
			SimilarityScore: g.Similarity,
			Status:          model.DuplicateStatusPending,
			CreatedAt:       now,
		}

		items := make([]model.DuplicateItem, len(g.Entries))
		for i, entry := range g.Entries {
			items[i] = model.DuplicateItem{
				ID:              uuid.New().String(),
				GroupID:         group.ID,
				EntryID:         entry.ID,
				IsPrimary:       i == 0, // アンカーのみプライマリ
				ConfidenceScore: g.Similarity,
				CreatedAt:       now,
			}
		}

		if err := s.groupRepo.CreateGroupWithItems(ctx, group, items); err != nil {
			return nil, fmt.Errorf("重複グループの保存に失敗しました: %w", err)
		}

		result.Groups = append(result.Groups, model.DuplicateGroupWithItems{
			DuplicateGroup: *group,
			Items:          items,
		})
	}

	if s.recorder != nil {
		s.recorder.RecordClusteringRun(len(groups))
	}

	slog.Info("クラスタリング実行完了",
		slog.String("user_id", userID),
		slog.Int("entry_count", len(entries)),
		slog.Int("group_count", len(groups)),
	)

	return result, nil
}

// ListGroups はユーザーの重複グループ一覧を返す。
// statusが空文字列以外の場合は解決状態でフィルタする。
func (s *Service) ListGroups(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.DuplicateGroupWithItems, error) {
	groups, err := s.groupRepo.ListGroupsByUserID(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("重複グループ一覧の取得に失敗しました: %w", err)
	}
	return groups, nil
}

// ResolveGroup はグループの解決状態を更新する。
// 状態遷移は外部アクター（重複解決UI経由のユーザー操作）として実行される。
// エンジン自身がpending以外の状態を書き込むことはない。
func (s *Service) ResolveGroup(ctx context.Context, userID, groupID string, status model.DuplicateStatus) error {
	if status != model.DuplicateStatusResolved && status != model.DuplicateStatusAutoResolved {
		return model.NewInvalidGroupStatusError(string(status))
	}

	group, err := s.groupRepo.FindGroupByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("重複グループの取得に失敗しました: %w", err)
	}
	if group == nil || group.UserID != userID {
		return model.NewGroupNotFoundError(groupID)
	}

	if err := s.groupRepo.UpdateStatus(ctx, groupID, status); err != nil {
		return fmt.Errorf("解決状態の更新に失敗しました: %w", err)
	}

	return nil
}
