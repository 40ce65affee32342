// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 有効期限を過ぎたセッションと、保持期間（デフォルト90日）を超過した
// 解決済み重複グループを日次バッチで削除する。
// duplicate_itemsはCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションと解決済み重複グループの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db                 Executor
	logger             *slog.Logger
	GroupRetentionDays int // 解決済み重複グループの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:                 db,
		logger:             logger,
		GroupRetentionDays: 90,
	}
}

// Run は期限切れセッションと保持期間を超過した解決済み重複グループを削除する。
// 未解決（pending）のグループは削除しない。
// duplicate_itemsはCASCADE削除により自動的に削除される。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessionsDeleted, err := j.deleteExpiredSessions(ctx)
	if err != nil {
		return err
	}

	groupsDeleted, err := j.deleteResolvedGroups(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("sessions_deleted", sessionsDeleted),
		slog.Int64("groups_deleted", groupsDeleted),
		slog.Int("group_retention_days", j.GroupRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// deleteExpiredSessions は有効期限を過ぎたセッションを削除する。
func (j *CleanupJob) deleteExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("セッション削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}

// deleteResolvedGroups は保持期間を超過した解決済み重複グループを削除する。
// created_atがGroupRetentionDays日前より古いresolved/auto_resolvedグループを対象とする。
func (j *CleanupJob) deleteResolvedGroups(ctx context.Context) (int64, error) {
	interval := fmt.Sprintf("%d days", j.GroupRetentionDays)

	query := `DELETE FROM duplicate_groups
		WHERE status IN ('resolved', 'auto_resolved')
		AND created_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("解決済み重複グループの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("group_retention_days", j.GroupRetentionDays),
		)
		return 0, fmt.Errorf("解決済み重複グループの削除に失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("重複グループ削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}
