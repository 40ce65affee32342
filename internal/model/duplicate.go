// Package model はドメインモデルを定義する。
package model

import "time"

// DuplicateStatus は重複グループの解決状態を表す。
// エンジン自身はstatusを遷移させない。遷移は重複解決UI（外部アクター）が行う。
type DuplicateStatus string

const (
	// DuplicateStatusPending は未解決の重複グループ。
	DuplicateStatusPending DuplicateStatus = "pending"
	// DuplicateStatusResolved はユーザー操作により解決済みの重複グループ。
	DuplicateStatusResolved DuplicateStatus = "resolved"
	// DuplicateStatusAutoResolved は自動解決済みの重複グループ。
	DuplicateStatusAutoResolved DuplicateStatus = "auto_resolved"
)

// IsValid は解決状態がサポートされている値かを返す。
func (s DuplicateStatus) IsValid() bool {
	switch s {
	case DuplicateStatusPending, DuplicateStatusResolved, DuplicateStatusAutoResolved:
		return true
	}
	return false
}

// DuplicateGroup はクラスタリング実行で検出された重複グループを表す。
// similarity_scoreはアンカーに対する非アンカーメンバーの類似度の平均値。
// グループは必ず2件以上のDuplicateItemを持つ。
type DuplicateGroup struct {
	ID              string
	UserID          string
	SimilarityScore float64
	Status          DuplicateStatus
	CreatedAt       time.Time
}

// DuplicateItem は重複グループに属する1件の渡航記録への参照を表す。
// is_primaryはグループ内で必ず1件のみtrue（アンカー = グループの先頭要素）。
// confidence_scoreはグループのsimilarity_scoreと同値。
type DuplicateItem struct {
	ID              string
	GroupID         string
	EntryID         string
	IsPrimary       bool
	ConfidenceScore float64
	CreatedAt       time.Time
}

// DuplicateGroupWithItems は重複グループとその所属アイテムを結合したモデル。
// duplicate_itemsテーブルとJOINして取得される。
type DuplicateGroupWithItems struct {
	DuplicateGroup
	Items []DuplicateItem
}
