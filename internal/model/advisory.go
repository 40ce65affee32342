// Package model はドメインモデルを定義する。
package model

import "time"

// Advisory は渡航先国の渡航情報（政府発表の注意喚起等）を表す。
// 渡航先国の公開フィードからバッチジョブで取得し、レポート画面の参考情報として表示する。
type Advisory struct {
	ID          string
	CountryCode string
	Title       string
	Summary     string
	Link        string
	PublishedAt *time.Time
	FetchedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
