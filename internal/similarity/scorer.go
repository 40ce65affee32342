// Package similarity は渡航記録間の正規化類似度スコアリングを提供する。
//
// スコアは重み付き要素方式で計算する。各要素は適用可能な場合のみ分母に重みを加え、
// 一致した場合のみ分子に重みを加える。最終スコアは分子/分母（分母0の場合は0）。
// この正規化により、市区町村・便名・予約番号を持たない2件の記録でも
// 日付と国の一致だけでスコア1.0になりうる。
package similarity

import (
	"math"
	"strings"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

// 各要素の重み。日付と国は常に適用し、残りは両方の記録が値を持つ場合のみ適用する。
const (
	weightDate         = 0.4
	weightCountry      = 0.3
	weightCity         = 0.1
	weightFlight       = 0.1
	weightConfirmation = 0.1
)

// 日付近接の部分一致重み（差が1日超3日以内の場合）。
const partialDateWeight = 0.2

// Scorer は2件の渡航記録の類似度を[0,1]で計算する。
// 呼び出し規約として第1引数には常にグループのアンカーを渡すが、
// 定義された要素の計算は引数順序に依存しない。
type Scorer struct{}

// NewScorer はScorerの新しいインスタンスを生成する。
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score は2件の渡航記録の類似度を計算する。
// 欠損フィールド（入国日ゼロ値、国コード/国名とも空）は当該要素の不一致として扱い、
// エラーにはしない（一括処理の継続性を優先する）。
func (s *Scorer) Score(a, b *model.TravelEntry) float64 {
	if a == nil || b == nil {
		return 0
	}

	var numerator, denominator float64

	// 日付近接（常に適用）: 差1日以内で満点、3日以内で部分点
	denominator += weightDate
	if !a.EntryDate.IsZero() && !b.EntryDate.IsZero() {
		diff := absDays(a.EntryDate, b.EntryDate)
		switch {
		case diff <= 1:
			numerator += weightDate
		case diff <= 3:
			numerator += partialDateWeight
		}
	}

	// 国一致（常に適用）: 国コードまたは国名のどちらかが一致すればよい
	denominator += weightCountry
	if countryMatches(a, b) {
		numerator += weightCountry
	}

	// 市区町村一致（両方に値がある場合のみ適用、大文字小文字を無視）
	if a.City != "" && b.City != "" {
		denominator += weightCity
		if strings.EqualFold(a.City, b.City) {
			numerator += weightCity
		}
	}

	// 便名一致（両方に値がある場合のみ適用、完全一致）
	if a.FlightNumber != "" && b.FlightNumber != "" {
		denominator += weightFlight
		if a.FlightNumber == b.FlightNumber {
			numerator += weightFlight
		}
	}

	// 予約番号一致（両方に値がある場合のみ適用、完全一致）
	if a.ConfirmationNumber != "" && b.ConfirmationNumber != "" {
		denominator += weightConfirmation
		if a.ConfirmationNumber == b.ConfirmationNumber {
			numerator += weightConfirmation
		}
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// countryMatches は国コードまたは国名のどちらかが一致するかを返す。
// 両記録がともに国情報を欠く場合は不一致として扱う。
func countryMatches(a, b *model.TravelEntry) bool {
	if a.CountryCode != "" && a.CountryCode == b.CountryCode {
		return true
	}
	if a.CountryName != "" && a.CountryName == b.CountryName {
		return true
	}
	return false
}

// absDays は2つの日付の差の絶対日数を返す。
func absDays(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours()) / 24
}
