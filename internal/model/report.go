// Package model はドメインモデルを定義する。
package model

import "time"

// Trip は滞在期間計算から導出された1回の渡航を表す。
// エンジン自身は永続化しない派生データ。
type Trip struct {
	DepartureDate time.Time `json:"departureDate"`
	ReturnDate    time.Time `json:"returnDate"` // 出国日未記録の場合は計算時点の「今日」
	Destination   string    `json:"destination"`
	DaysAbsent    int       `json:"daysAbsent"` // 出国日未記録の記録は定義上0
	// RiskNote は365日超の渡航に付与される継続居住リスクの注記。
	// 参考情報であり、法的判定ではない。
	RiskNote string `json:"riskNote,omitempty"`
}

// ReportPeriod は滞在レポートの対象期間を表す。
type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PresenceReport は物理的滞在日数レポートの集計結果を表す。
// フィールド名と日数計算のセマンティクスはレポート出力先との互換性サーフェスであり、
// 変更してはならない。
type PresenceReport struct {
	Period               ReportPeriod `json:"period"`
	TotalDaysOutside     int          `json:"totalDaysOutside"`
	PhysicalPresenceDays int          `json:"physicalPresenceDays"` // 期間日数 - 滞在外日数。負値もそのまま報告する
	Trips                []Trip       `json:"trips"`
}
