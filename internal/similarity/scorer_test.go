package similarity

import (
	"testing"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// 同一国・日付1日差・任意フィールドなしの2件がスコア1.0になることを検証
// （分子 0.4+0.3 = 0.7、分母 0.7）
func TestScore_DateAndCountryOnly_FullMatch(t *testing.T) {
	s := NewScorer()
	a := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FR", CountryName: "France"}
	b := &model.TravelEntry{EntryDate: date("2023-06-02"), CountryCode: "FR", CountryName: "France"}

	got := s.Score(a, b)
	if got != 1.0 {
		t.Errorf("Score = %v, want 1.0", got)
	}
}

// 同一国・日付10日差がスコア約0.43（0.3/0.7）になることを検証
func TestScore_DistantDates_BelowThreshold(t *testing.T) {
	s := NewScorer()
	a := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FR"}
	b := &model.TravelEntry{EntryDate: date("2023-06-11"), CountryCode: "FR"}

	got := s.Score(a, b)
	want := 0.3 / 0.7
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
	if got >= 0.7 {
		t.Errorf("スコア %v がデフォルト閾値0.7以上になっています", got)
	}
}

// 日付差の段階的な重み付けを検証
func TestScore_DateProximityTiers(t *testing.T) {
	s := NewScorer()
	tests := []struct {
		name  string
		dateB string
		want  float64
	}{
		{"同日", "2023-06-01", 1.0},
		{"1日差", "2023-06-02", 1.0},
		{"2日差は部分点", "2023-06-03", (0.2 + 0.3) / 0.7},
		{"3日差は部分点", "2023-06-04", (0.2 + 0.3) / 0.7},
		{"4日差は0点", "2023-06-05", 0.3 / 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "DE"}
			b := &model.TravelEntry{EntryDate: date(tt.dateB), CountryCode: "DE"}
			got := s.Score(a, b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

// 国コード不一致でも国名が一致すれば国要素が加点されることを検証
func TestScore_CountryNameFallback(t *testing.T) {
	s := NewScorer()
	a := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FRA", CountryName: "France"}
	b := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FR", CountryName: "France"}

	if got := s.Score(a, b); got != 1.0 {
		t.Errorf("Score = %v, want 1.0（国名一致で加点されるべき）", got)
	}
}

// 全要素が適用・一致した場合にスコア1.0になることを検証
func TestScore_AllFactors_FullMatch(t *testing.T) {
	s := NewScorer()
	a := &model.TravelEntry{
		EntryDate: date("2023-06-01"), CountryCode: "FR",
		City: "Paris", FlightNumber: "AF123", ConfirmationNumber: "ABC123",
	}
	b := &model.TravelEntry{
		EntryDate: date("2023-06-01"), CountryCode: "FR",
		City: "PARIS", FlightNumber: "AF123", ConfirmationNumber: "ABC123",
	}

	if got := s.Score(a, b); got != 1.0 {
		t.Errorf("Score = %v, want 1.0", got)
	}
}

// 市区町村の比較が大文字小文字を無視し、便名・予約番号は完全一致であることを検証
func TestScore_OptionalFactorComparisons(t *testing.T) {
	s := NewScorer()

	// 便名は大文字小文字を区別する完全一致
	a := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FR", FlightNumber: "AF123"}
	b := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FR", FlightNumber: "af123"}
	got := s.Score(a, b)
	want := (0.4 + 0.3) / (0.4 + 0.3 + 0.1)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("便名不一致時のScore = %v, want %v", got, want)
	}
}

// 片方のみが任意フィールドを持つ場合、その要素は分母に加算されないことを検証
func TestScore_OptionalFactorNotApplicable(t *testing.T) {
	s := NewScorer()
	a := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FR", City: "Paris"}
	b := &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FR"}

	// cityはbに値がないため適用外。スコアは0.7/0.7 = 1.0
	if got := s.Score(a, b); got != 1.0 {
		t.Errorf("Score = %v, want 1.0（適用外要素は正規化に含めない）", got)
	}
}

// 定義された要素の計算が引数順序に依存しないことを検証
func TestScore_OrderIndependent(t *testing.T) {
	s := NewScorer()
	entries := []*model.TravelEntry{
		{EntryDate: date("2023-06-01"), CountryCode: "FR", City: "Paris", FlightNumber: "AF123"},
		{EntryDate: date("2023-06-03"), CountryCode: "FR", City: "Lyon"},
		{EntryDate: date("2023-07-15"), CountryCode: "DE", ConfirmationNumber: "XYZ789"},
		{EntryDate: date("2023-06-02"), CountryName: "France", ConfirmationNumber: "XYZ789"},
	}

	for i, a := range entries {
		for j, b := range entries {
			ab := s.Score(a, b)
			ba := s.Score(b, a)
			if ab != ba {
				t.Errorf("Score(entries[%d], entries[%d]) = %v, 逆順 = %v", i, j, ab, ba)
			}
		}
	}
}

// 欠損フィールドがクラッシュせず当該要素の不一致として扱われることを検証
func TestScore_MalformedEntries(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		name string
		a, b *model.TravelEntry
		want float64
	}{
		{
			name: "入国日欠損は日付要素0点",
			a:    &model.TravelEntry{CountryCode: "FR"},
			b:    &model.TravelEntry{EntryDate: date("2023-06-01"), CountryCode: "FR"},
			want: 0.3 / 0.7,
		},
		{
			name: "両方の入国日欠損でも日付要素は加点しない",
			a:    &model.TravelEntry{CountryCode: "FR"},
			b:    &model.TravelEntry{CountryCode: "FR"},
			want: 0.3 / 0.7,
		},
		{
			name: "国情報が両方空なら国要素も0点",
			a:    &model.TravelEntry{EntryDate: date("2023-06-01")},
			b:    &model.TravelEntry{EntryDate: date("2023-06-01")},
			want: 0.4 / 0.7,
		},
		{
			name: "nil記録はスコア0",
			a:    nil,
			b:    &model.TravelEntry{EntryDate: date("2023-06-01")},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}
