// Package presence は滞在日数レポートの計算を提供する。
//
// レポートは母国以外の渡航記録から旅程一覧と国外日数を導出し、
// 物理的滞在日数（期間日数 − 国外日数）を計算する。
// 国外日数は記録ごとに独立して計算され、重複区間のマージは行わない
// （重複する記録はそれぞれの全区間を計上する。既存レポートとの互換性のため
// 区間結合による補正は行わない）。
package presence

import (
	"math"
	"sort"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

// 継続居住リスクの判定閾値（日数）。
const continuousResidenceRiskDays = 365

// continuousResidenceRiskNote は365日超の渡航に付与する注意書き。
// 法的判定ではなく情報提供のみ。
const continuousResidenceRiskNote = "365日を超える渡航は継続居住要件に影響する可能性があります。移民弁護士への相談を検討してください。"

// HomePredicate は渡航記録が母国滞在かどうかを判定する述語。
// 母国と判定された記録は旅程・国外日数の計算から除外される。
type HomePredicate func(entry *model.TravelEntry) bool

// HomeCountryPredicate は国コードまたは国名の一致で母国を判定する述語を返す。
func HomeCountryPredicate(countryCode, countryName string) HomePredicate {
	return func(entry *model.TravelEntry) bool {
		if countryCode != "" && entry.CountryCode == countryCode {
			return true
		}
		if countryName != "" && entry.CountryName == countryName {
			return true
		}
		return false
	}
}

// DefaultHomePredicate は米国を母国とするデフォルト述語。
var DefaultHomePredicate = HomeCountryPredicate("US", "United States")

// Calculator は滞在日数レポートを計算する。
// 母国判定述語と現在時刻は注入可能（テストの決定性とユーザーごとの母国設定のため）。
type Calculator struct {
	isHome HomePredicate
	now    func() time.Time
}

// NewCalculator はCalculatorの新しいインスタンスを生成する。
// isHomeがnilの場合はDefaultHomePredicate、nowがnilの場合はtime.Nowを使用する。
func NewCalculator(isHome HomePredicate, now func() time.Time) *Calculator {
	if isHome == nil {
		isHome = DefaultHomePredicate
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{isHome: isHome, now: now}
}

// BuildReport は渡航記録と対象期間から滞在日数レポートを計算する。
//
// 計算手順:
//  1. 母国滞在の記録を除外する。
//  2. 残りの記録をentry_date昇順に並べ、1記録1旅程として展開する。
//     出国日のない記録は帰国日を本日（計算時点）とし、daysAbsentは0とする
//     （進行中の渡航は旅程一覧では不在0日だが、国外日数には計上される）。
//  3. 国外日数: 各記録の[入国日, 出国日または本日]を対象期間にクランプし、
//     空でない区間の日数を加算する。記録は独立に処理され、重複区間も
//     それぞれ全量を計上する。
//  4. 物理的滞在日数 = 期間日数 − 国外日数。二重計上により負になりうるが、
//     黙ってクランプせず生の値を返す（扱いは呼び出し側の判断）。
//
// 「本日」はレポート計算の開始時に1回だけ評価され、レポート内で一貫する。
func (c *Calculator) BuildReport(entries []*model.TravelEntry, period model.ReportPeriod) *model.PresenceReport {
	today := c.now()

	outside := make([]*model.TravelEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.EntryDate.IsZero() {
			continue
		}
		if c.isHome(e) {
			continue
		}
		outside = append(outside, e)
	}
	sort.SliceStable(outside, func(i, j int) bool {
		return outside[i].EntryDate.Before(outside[j].EntryDate)
	})

	trips := make([]model.Trip, 0, len(outside))
	for _, e := range outside {
		trip := model.Trip{
			DepartureDate: e.EntryDate,
			Destination:   destination(e),
		}
		if e.HasExitDate() {
			trip.ReturnDate = *e.ExitDate
			trip.DaysAbsent = ceilDays(e.EntryDate, *e.ExitDate)
		} else {
			trip.ReturnDate = today
			trip.DaysAbsent = 0
		}
		if trip.DaysAbsent > continuousResidenceRiskDays {
			trip.RiskNote = continuousResidenceRiskNote
		}
		trips = append(trips, trip)
	}

	totalOutside := 0
	for _, e := range outside {
		end := today
		if e.HasExitDate() {
			end = *e.ExitDate
		}
		clampStart := maxTime(e.EntryDate, period.Start)
		clampEnd := minTime(end, period.End)
		if clampEnd.After(clampStart) {
			totalOutside += ceilDays(clampStart, clampEnd)
		}
	}

	totalDaysInPeriod := ceilDays(period.Start, period.End)

	return &model.PresenceReport{
		Period:               period,
		TotalDaysOutside:     totalOutside,
		PhysicalPresenceDays: totalDaysInPeriod - totalOutside,
		Trips:                trips,
	}
}

// destination は旅程の渡航先表示名を返す。国名を優先し、なければ国コード。
func destination(e *model.TravelEntry) string {
	if e.CountryName != "" {
		return e.CountryName
	}
	return e.CountryCode
}

// ceilDays はfromからtoまでの日数を切り上げで返す。
func ceilDays(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
