// Package ingest はフライト確認メールからの渡航記録の取り込みを提供する。
//
// メールのHTML本文から日付・空港コード・便名・予約番号を抽出して
// 構造化レコード化し、3段階の同一性判定でTravelEntryへUPSERTする。
package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/security"
)

var (
	// 日付らしき部分文字列: ISO形式またはスラッシュ形式
	datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}`)
	// 空港コード候補: 前後が英数字でない大文字3連続
	airportPattern = regexp.MustCompile(`\b[A-Z]{3}\b`)
	// 便名: 航空会社2レターコード + 便番号
	flightNumberPattern = regexp.MustCompile(`\b[A-Z]{2}\d{1,4}\b`)
	// 予約番号: ラベル語に続く英数字5〜8文字
	confirmationPattern = regexp.MustCompile(`(?i)(?:confirmation(?:\s+(?:number|code))?|booking\s+reference|record\s+locator|PNR|予約番号)[:：\s#]*([A-Z0-9]{5,8})`)
)

// EmailExtractor はフライト確認メールのHTML本文から構造化レコードを抽出する。
//
// 抽出手順:
//  1. HTMLを解析し、<time datetime="...">属性からISO日付を収集する
//     （航空会社のメールテンプレートはマシンリーダブルな日付属性を持つことが多い）。
//  2. 本文をプレーンテキスト化し、正規表現で日付・空港コード・便名・予約番号を抽出する。
//
// 抽出はヒューリスティックであり、結果の品質検証は下流（レビューUI）の責務。
type EmailExtractor struct {
	sanitizer security.ContentSanitizerService
}

// NewEmailExtractor はEmailExtractorの新しいインスタンスを生成する。
func NewEmailExtractor(sanitizer security.ContentSanitizerService) *EmailExtractor {
	return &EmailExtractor{sanitizer: sanitizer}
}

// Extract はメールHTML本文から構造化フライト記録を抽出する。
// 抽出できるフィールドがない場合も空のレコードを返す（エラーにしない）。
func (x *EmailExtractor) Extract(emailID, rawHTML string) model.FlightEmailRecord {
	record := model.FlightEmailRecord{ID: emailID}

	// datetime属性の日付を優先して収集
	record.Dates = appendUnique(record.Dates, datetimeAttrs(rawHTML)...)

	plain := x.sanitizer.PlainText(rawHTML)
	record.Dates = appendUnique(record.Dates, datePattern.FindAllString(plain, -1)...)
	record.FlightNumbers = appendUnique(nil, flightNumberPattern.FindAllString(plain, -1)...)
	record.Airports = airportCodes(plain)

	if m := confirmationPattern.FindStringSubmatch(plain); m != nil {
		record.ConfirmationNumber = strings.ToUpper(m[1])
	}

	return record
}

// datetimeAttrs はHTML中の<time datetime="...">属性値を文書順で収集する。
// HTMLが解析不能な場合は空を返す（プレーンテキスト抽出へフォールバック）。
func datetimeAttrs(rawHTML string) []string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var dates []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "time" {
			for _, attr := range n.Attr {
				if attr.Key == "datetime" && attr.Val != "" {
					// datetime属性はISO 8601。時刻部分は日付抽出では不要
					if d, _, found := strings.Cut(attr.Val, "T"); found {
						dates = append(dates, d)
					} else {
						dates = append(dates, attr.Val)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return dates
}

// airportCodes は大文字3連続の空港コード候補を抽出する。
// 予約番号ラベルの"PNR"のような既知の非空港語は除外する。
func airportCodes(plain string) []string {
	var codes []string
	for _, c := range airportPattern.FindAllString(plain, -1) {
		if nonAirportWords[c] {
			continue
		}
		codes = append(codes, c)
	}
	return codes
}

// nonAirportWords は空港コードと誤認しやすい既知の語。
var nonAirportWords = map[string]bool{
	"PNR": true,
	"ETA": true,
	"ETD": true,
	"UTC": true,
	"GMT": true,
}

// appendUnique は順序を保ちつつ重複を除いて追加する。
func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
