// Package model はドメインモデルを定義する。
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TravelEntry は1回の出入国記録を表す。
// 手動入力、フライト確認メール、パスポートスキャンのいずれかを起源とし、
// 作成したユーザーが所有する。永続化後は訂正編集を除きイミュータブル。
type TravelEntry struct {
	ID                 string
	UserID             string
	EntryDate          time.Time  // 入国日（出発日）
	ExitDate           *time.Time // 出国日。未帰国（渡航継続中）の場合はnil
	CountryCode        string     // 例: "FR"
	CountryName        string     // 例: "France"
	City               string     // 任意。空文字列は未設定を表す
	EntryType          EntryType
	FlightNumber       string // 任意。空文字列は未設定を表す
	ConfirmationNumber string // 任意。空文字列は未設定を表す
	SourceType         SourceType
	ContentHash        string // 同一性判定の第3優先手段に使用するハッシュ
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasExitDate は出国日が記録されているかを返す。
func (e *TravelEntry) HasExitDate() bool {
	return e.ExitDate != nil
}

// ContentHash は国コード・入国日・記録種別のSHA-256ハッシュを計算する。
// 取り込み時の同一性判定の第3優先手段として使用される。
func ContentHash(countryCode string, entryDate time.Time, entryType EntryType) string {
	data := fmt.Sprintf("%s|%s|%s", countryCode, entryDate.UTC().Format("2006-01-02"), entryType)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// EntryType は記録の種別を表す。
type EntryType string

const (
	// EntryTypeEntry は入国記録。
	EntryTypeEntry EntryType = "entry"
	// EntryTypeExit は出国記録。
	EntryTypeExit EntryType = "exit"
	// EntryTypeTrip は入出国をまとめた渡航記録。
	EntryTypeTrip EntryType = "trip"
)

// IsValid は記録種別がサポートされている値かを返す。
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeEntry, EntryTypeExit, EntryTypeTrip:
		return true
	}
	return false
}

// SourceType は記録の取得元を表す。
type SourceType string

const (
	// SourceTypeManual は手動入力による記録。
	SourceTypeManual SourceType = "manual"
	// SourceTypeEmail はフライト確認メール抽出による記録。
	SourceTypeEmail SourceType = "email"
	// SourceTypePassportScan はパスポートスキャンOCR抽出による記録。
	SourceTypePassportScan SourceType = "passport_scan"
)

// IsValid は取得元がサポートされている値かを返す。
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeManual, SourceTypeEmail, SourceTypePassportScan:
		return true
	}
	return false
}
