// Package model はドメインモデルを定義する。
package model

import "time"

// EventType は渡航イベントの種別を表す。
type EventType string

const (
	// EventTypePassportStamp はパスポートスタンプ由来のイベント。
	EventTypePassportStamp EventType = "passport_stamp"
	// EventTypeFlight はフライト記録由来のイベント。
	EventTypeFlight EventType = "flight"
)

// EventSource は渡航イベントの取得元を表す。
type EventSource string

const (
	// EventSourcePassportScan はパスポートスキャン取得元。
	EventSourcePassportScan EventSource = "passport_scan"
	// EventSourceEmail はメール取得元。
	EventSourceEmail EventSource = "email"
)

// TravelEvent はクロスリファレンスで抽出された1件の渡航イベントを表す。
// countryは抽出された生トークンであり、ISO国コード表との照合は行わない。
type TravelEvent struct {
	Date       time.Time   `json:"date"`
	Country    string      `json:"country"`
	Type       EventType   `json:"type"`
	Source     EventSource `json:"source"`
	Confidence float64     `json:"confidence"`
	SourceID   string      `json:"sourceId"`
}

// PassportScanRecord はOCRコラボレーターから供給されるパスポートスキャン記録。
// 生テキストと抽出信頼度を持つ。エンジンは抽出品質の検証を行わない。
type PassportScanRecord struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0の場合はデフォルト値0.7を使用
}

// FlightEmailRecord はメール抽出コラボレーターから供給される構造化フライト記録。
type FlightEmailRecord struct {
	ID            string   `json:"id"`
	Dates         []string `json:"dates"`    // 日付文字列。スラッシュ区切りまたはISO形式
	Airports      []string `json:"airports"` // 空港/国コード候補
	FlightNumbers []string `json:"flightNumbers"`
	// ConfirmationNumber は予約番号（PNR）。1通のメールで1件、全区間で共有される。
	ConfirmationNumber string  `json:"confirmationNumber,omitempty"`
	Confidence         float64 `json:"confidence"` // 0の場合はデフォルト値0.6を使用
}
