// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はフライト確認メールのHTML本文を処理する。
// メール本文は信頼できない外部入力であり、抽出パイプラインに渡す前に
// マークアップを除去してプレーンテキスト化する。
// bluemondayライブラリの全タグ除去ポリシーを使用する。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はメールHTML本文の無害化インターフェースを定義する。
// フライト情報抽出の前処理として使用される。
type ContentSanitizerService interface {
	// PlainText はHTML本文から全タグを除去したプレーンテキストを返す。
	// script/style要素とその内容、全てのタグ・属性が除去され、
	// HTMLエンティティはデコードされる。連続する空白は1つに畳まれる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	PlainText(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たず、テキストコンテンツのみを通過させる。
// script/styleタグの内容もbluemondayが除去する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// PlainText はHTML本文から全タグを除去したプレーンテキストを返す。
// タグ境界が語の区切りになるよう、除去前にタグの先頭へ空白を挿入してから
// サニタイズする（"<td>2023-01-15</td><td>FRA</td>" が "2023-01-15FRA" に
// 潰れて日付抽出を壊さないようにするため）。
func (s *contentSanitizer) PlainText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}

	spaced := strings.ReplaceAll(rawHTML, "<", " <")
	stripped := s.policy.Sanitize(spaced)
	decoded := html.UnescapeString(stripped)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(decoded, " "))
}
