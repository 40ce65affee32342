package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/eshbtc/travelcheck/internal/model"
)

// PostgresDuplicateGroupRepo はPostgreSQLを使用した重複グループリポジトリ。
type PostgresDuplicateGroupRepo struct {
	db *sql.DB
}

// NewPostgresDuplicateGroupRepo はPostgresDuplicateGroupRepoを生成する。
func NewPostgresDuplicateGroupRepo(db *sql.DB) *PostgresDuplicateGroupRepo {
	return &PostgresDuplicateGroupRepo{db: db}
}

// CreateGroupWithItems はグループとその所属アイテムを同一トランザクションで作成する。
// 部分的に書き込まれた重複グループを残さない。
func (r *PostgresDuplicateGroupRepo) CreateGroupWithItems(ctx context.Context, group *model.DuplicateGroup, items []model.DuplicateItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO duplicate_groups (id, user_id, similarity_score, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		group.ID, group.UserID, group.SimilarityScore, string(group.Status), group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert duplicate group: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO duplicate_items (id, group_id, entry_id, is_primary, confidence_score, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, item.GroupID, item.EntryID, item.IsPrimary, item.ConfidenceScore, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert duplicate item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindGroupByID は指定IDのグループをアイテム付きで取得する。見つからない場合はnilを返す。
func (r *PostgresDuplicateGroupRepo) FindGroupByID(ctx context.Context, id string) (*model.DuplicateGroupWithItems, error) {
	group := &model.DuplicateGroupWithItems{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, similarity_score, status, created_at
		 FROM duplicate_groups WHERE id = $1`,
		id,
	).Scan(&group.ID, &group.UserID, &group.SimilarityScore, &group.Status, &group.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate group: %w", err)
	}

	items, err := r.listItemsByGroupIDs(ctx, []string{group.ID})
	if err != nil {
		return nil, err
	}
	group.Items = items[group.ID]
	return group, nil
}

// ListGroupsByUserID はユーザーの重複グループ一覧をアイテム付きで返す。
// statusが空文字列以外の場合は解決状態でフィルタする。similarity_score降順で返す。
func (r *PostgresDuplicateGroupRepo) ListGroupsByUserID(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.DuplicateGroupWithItems, error) {
	query := `SELECT id, user_id, similarity_score, status, created_at
		FROM duplicate_groups WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY similarity_score DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []model.DuplicateGroupWithItems
	var groupIDs []string
	for rows.Next() {
		var g model.DuplicateGroupWithItems
		if err := rows.Scan(&g.ID, &g.UserID, &g.SimilarityScore, &g.Status, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate group: %w", err)
		}
		groups = append(groups, g)
		groupIDs = append(groupIDs, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicate groups: %w", err)
	}

	if len(groups) == 0 {
		return groups, nil
	}

	itemsByGroup, err := r.listItemsByGroupIDs(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Items = itemsByGroup[groups[i].ID]
	}
	return groups, nil
}

// listItemsByGroupIDs は複数グループの所属アイテムをまとめて取得する。
// アンカー（is_primary）が先頭に来るよう並べる。
func (r *PostgresDuplicateGroupRepo) listItemsByGroupIDs(ctx context.Context, groupIDs []string) (map[string][]model.DuplicateItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, entry_id, is_primary, confidence_score, created_at
		 FROM duplicate_items
		 WHERE group_id = ANY($1)
		 ORDER BY group_id, is_primary DESC, created_at ASC`,
		pq.Array(groupIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate items: %w", err)
	}
	defer rows.Close()

	itemsByGroup := make(map[string][]model.DuplicateItem)
	for rows.Next() {
		var item model.DuplicateItem
		if err := rows.Scan(&item.ID, &item.GroupID, &item.EntryID, &item.IsPrimary, &item.ConfidenceScore, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate item: %w", err)
		}
		itemsByGroup[item.GroupID] = append(itemsByGroup[item.GroupID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicate items: %w", err)
	}
	return itemsByGroup, nil
}

// UpdateStatus はグループの解決状態を更新する。
func (r *PostgresDuplicateGroupRepo) UpdateStatus(ctx context.Context, groupID string, status model.DuplicateStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE duplicate_groups SET status = $2 WHERE id = $1`,
		groupID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update duplicate group status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("duplicate group not found: %s", groupID)
	}
	return nil
}

// DeleteByUserID はユーザーの全重複グループを削除する。
// duplicate_itemsはCASCADE削除される。
func (r *PostgresDuplicateGroupRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM duplicate_groups WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user duplicate groups: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DuplicateGroupRepository = (*PostgresDuplicateGroupRepo)(nil)
