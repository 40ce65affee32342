// Package crossref は異種ソースの渡航記録を統合イベントタイムラインに変換する。
//
// パスポートスキャン（OCRテキスト）とフライト確認メール（構造化抽出）から
// (日付, 国/空港コード)ペアを抽出し、時系列順の統合イベント・国別集計・
// 信頼度サマリーを生成する。抽出はPairExtractorインターフェースの背後に
// 分離されており、将来NLPベースの抽出器へ差し替えても下流の統合ロジックは
// 変更不要である。
package crossref

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

// 抽出元レコードが信頼度を持たない場合のデフォルト値。
// パスポートスタンプはOCR由来のため構造化メール抽出よりわずかに高い。
const (
	defaultPassportConfidence = 0.7
	defaultFlightConfidence   = 0.6
)

// PairExtractor は生レコードからTravelEventを抽出するインターフェース。
type PairExtractor interface {
	// ExtractPassportEvents はパスポートスキャンのOCRテキストからイベントを抽出する。
	// 抽出可能なペアがないレコードは空スライスを返す（エラーにはしない）。
	ExtractPassportEvents(record model.PassportScanRecord) []model.TravelEvent

	// ExtractFlightEvents はフライト確認メールの構造化抽出結果からイベントを抽出する。
	ExtractFlightEvents(record model.FlightEmailRecord) []model.TravelEvent
}

var (
	// 日付らしき部分文字列: ISO形式（YYYY-MM-DD）またはスラッシュ形式（M/D/YYYY）
	datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}`)
	// 大文字3連続: 国コード・空港コードの候補
	codePattern = regexp.MustCompile(`[A-Z]{3}`)
)

// RegexExtractor は正規表現ベースの位置的ペアリング抽出器。
//
// テキスト中のi番目の日付をi番目のコードと対応付ける（短い方のリスト長で打ち切り）。
// 位置的ペアリングは文脈情報を持たないヒューリスティックであり、日付とコードの
// 実際の近接は考慮しない。既存タイムラインとの互換性のためこの挙動を維持する。
type RegexExtractor struct{}

// NewRegexExtractor はRegexExtractorの新しいインスタンスを生成する。
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// ExtractPassportEvents はOCRテキストから日付と3文字コードを抽出し、
// 位置的にペアリングしてpassport_stampイベントを生成する。
// 解析不能な日付文字列はペアリング前に除外される。
func (x *RegexExtractor) ExtractPassportEvents(record model.PassportScanRecord) []model.TravelEvent {
	dates := parseDates(datePattern.FindAllString(record.Text, -1))
	codes := codePattern.FindAllString(record.Text, -1)

	confidence := record.Confidence
	if confidence == 0 {
		confidence = defaultPassportConfidence
	}

	return pairEvents(dates, codes, model.EventTypePassportStamp, model.EventSourcePassportScan, confidence, record.ID)
}

// ExtractFlightEvents は構造化抽出済みのdates/airportsを位置的にペアリングして
// flightイベントを生成する。
func (x *RegexExtractor) ExtractFlightEvents(record model.FlightEmailRecord) []model.TravelEvent {
	dates := parseDates(record.Dates)

	confidence := record.Confidence
	if confidence == 0 {
		confidence = defaultFlightConfidence
	}

	return pairEvents(dates, record.Airports, model.EventTypeFlight, model.EventSourceEmail, confidence, record.ID)
}

// pairEvents はi番目の日付とi番目のコードを対応付けてイベント列を生成する。
// 短い方のリスト長で打ち切る。
func pairEvents(dates []time.Time, codes []string, eventType model.EventType, source model.EventSource, confidence float64, sourceID string) []model.TravelEvent {
	n := len(dates)
	if len(codes) < n {
		n = len(codes)
	}

	events := make([]model.TravelEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, model.TravelEvent{
			Date:       dates[i],
			Country:    codes[i],
			Type:       eventType,
			Source:     source,
			Confidence: confidence,
			SourceID:   sourceID,
		})
	}
	return events
}

// parseDates は日付文字列のリストを解析する。解析不能な文字列は除外される。
func parseDates(raw []string) []time.Time {
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		if t, ok := parseDate(s); ok {
			dates = append(dates, t)
		}
	}
	return dates
}

// parseDate はISO形式またはスラッシュ形式の日付文字列を解析する。
// スラッシュ形式はMM/DD/YYYYとして解釈し、第1要素が12を超える場合のみ
// DD/MM/YYYYとして再解釈する。
func parseDate(s string) (time.Time, bool) {
	if strings.Contains(s, "-") {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	first, err1 := strconv.Atoi(parts[0])
	second, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}

	month, day := first, second
	if first > 12 {
		month, day = second, first
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// 存在しない日付（2/30など）はtime.Dateが繰り上げるため照合する
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}
