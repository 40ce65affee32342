package crossref

import (
	"sort"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

// CountryVisits は国/空港コード単位の訪問集計。
type CountryVisits struct {
	Country    string              `json:"country"`
	VisitCount int                 `json:"visitCount"`
	FirstVisit time.Time           `json:"firstVisit"`
	LastVisit  time.Time           `json:"lastVisit"`
	Events     []model.TravelEvent `json:"events"`
}

// Summary はタイムライン全体のサマリー。
// イベントが存在しない場合、EarliestDate/LatestDateはゼロ値。
type Summary struct {
	TotalEvents       int       `json:"totalEvents"`
	DistinctCountries int       `json:"distinctCountries"`
	EarliestDate      time.Time `json:"earliestDate,omitzero"`
	LatestDate        time.Time `json:"latestDate,omitzero"`
}

// Confidence は統合結果の信頼度内訳。
type Confidence struct {
	// Overall は全イベント信頼度の算術平均（イベントがない場合は0）。
	Overall float64 `json:"overall"`
	// PassportEvents / EmailEvents はソース別のイベント数。
	PassportEvents int `json:"passportEvents"`
	EmailEvents    int `json:"emailEvents"`
}

// FusionResult は統合タイムラインの出力。
// PresenceAnalysisは国/空港コード単位の訪問集計。
type FusionResult struct {
	Events           []model.TravelEvent `json:"events"`
	PresenceAnalysis []CountryVisits     `json:"presenceAnalysis"`
	Summary          Summary             `json:"summary"`
	Confidence       Confidence          `json:"confidence"`
}

// Fuser は複数ソースのレコードを統合タイムラインに変換する。
type Fuser struct {
	extractor PairExtractor
}

// NewFuser はFuserの新しいインスタンスを生成する。
// extractorがnilの場合はRegexExtractorを使用する。
func NewFuser(extractor PairExtractor) *Fuser {
	if extractor == nil {
		extractor = NewRegexExtractor()
	}
	return &Fuser{extractor: extractor}
}

// Fuse はパスポートスキャンとフライトメールのレコード群を統合する。
//
//  1. 各レコードからイベントを抽出して連結し、日付昇順に整列する。
//  2. 国/空港コード単位で訪問回数・初回/最終訪問日を集計する。
//  3. 全体サマリーと信頼度内訳を計算する。
//
// 抽出可能なペアを持たないレコードは結果に寄与しないだけで、処理は継続する。
func (f *Fuser) Fuse(passports []model.PassportScanRecord, flights []model.FlightEmailRecord) *FusionResult {
	var events []model.TravelEvent
	for _, r := range passports {
		events = append(events, f.extractor.ExtractPassportEvents(r)...)
	}
	for _, r := range flights {
		events = append(events, f.extractor.ExtractFlightEvents(r)...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})

	result := &FusionResult{
		Events:           events,
		PresenceAnalysis: aggregateByCountry(events),
		Summary:          summarize(events),
	}
	result.Confidence = computeConfidence(events)
	return result
}

// aggregateByCountry は国/空港コード単位の訪問集計を生成する。
// 結果はコードの辞書順で返す（出力の決定性のため）。
func aggregateByCountry(events []model.TravelEvent) []CountryVisits {
	byCountry := make(map[string]*CountryVisits)
	for _, e := range events {
		v, ok := byCountry[e.Country]
		if !ok {
			v = &CountryVisits{
				Country:    e.Country,
				FirstVisit: e.Date,
				LastVisit:  e.Date,
			}
			byCountry[e.Country] = v
		}
		v.VisitCount++
		v.Events = append(v.Events, e)
		if e.Date.Before(v.FirstVisit) {
			v.FirstVisit = e.Date
		}
		if e.Date.After(v.LastVisit) {
			v.LastVisit = e.Date
		}
	}

	countries := make([]CountryVisits, 0, len(byCountry))
	for _, v := range byCountry {
		countries = append(countries, *v)
	}
	sort.Slice(countries, func(i, j int) bool {
		return countries[i].Country < countries[j].Country
	})
	return countries
}

func summarize(events []model.TravelEvent) Summary {
	s := Summary{TotalEvents: len(events)}
	if len(events) == 0 {
		return s
	}

	distinct := make(map[string]struct{})
	s.EarliestDate = events[0].Date
	s.LatestDate = events[0].Date
	for _, e := range events {
		distinct[e.Country] = struct{}{}
		if e.Date.Before(s.EarliestDate) {
			s.EarliestDate = e.Date
		}
		if e.Date.After(s.LatestDate) {
			s.LatestDate = e.Date
		}
	}
	s.DistinctCountries = len(distinct)
	return s
}

func computeConfidence(events []model.TravelEvent) Confidence {
	var c Confidence
	if len(events) == 0 {
		return c
	}

	var sum float64
	for _, e := range events {
		sum += e.Confidence
		switch e.Source {
		case model.EventSourcePassportScan:
			c.PassportEvents++
		case model.EventSourceEmail:
			c.EmailEvents++
		}
	}
	c.Overall = sum / float64(len(events))
	return c
}
