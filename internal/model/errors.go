// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, travel, report, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEntryNotFound       = "ENTRY_NOT_FOUND"
	ErrCodeInvalidEntry        = "INVALID_ENTRY"
	ErrCodeInvalidPeriod       = "INVALID_PERIOD"
	ErrCodeInvalidEntryType    = "INVALID_ENTRY_TYPE"
	ErrCodeGroupNotFound       = "DUPLICATE_GROUP_NOT_FOUND"
	ErrCodeInvalidGroupStatus  = "INVALID_GROUP_STATUS"
	ErrCodeEntryLimit          = "ENTRY_LIMIT"
	ErrCodeExtractionFailed    = "EXTRACTION_FAILED"
	ErrCodeAdvisoryNotFound    = "ADVISORY_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
)

// NewEntryNotFoundError は渡航記録未検出エラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定された渡航記録が見つかりません: %s", entryID),
		Category: "travel",
		Action:   "渡航記録IDを確認してください。",
	}
}

// NewInvalidEntryError は無効な渡航記録エラーを生成する。
func NewInvalidEntryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEntry,
		Message:  fmt.Sprintf("無効な渡航記録です: %s", reason),
		Category: "validation",
		Action:   "入国日、国コードまたは国名を確認してください。出国日は入国日以降である必要があります。",
	}
}

// NewInvalidPeriodError は無効なレポート期間エラーを生成する。
func NewInvalidPeriodError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPeriod,
		Message:  fmt.Sprintf("無効なレポート期間です: %s", reason),
		Category: "validation",
		Action:   "開始日と終了日をYYYY-MM-DD形式で指定し、終了日が開始日より後であることを確認してください。",
	}
}

// NewInvalidEntryTypeError は無効な記録種別エラーを生成する。
func NewInvalidEntryTypeError(entryType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEntryType,
		Message:  fmt.Sprintf("無効な記録種別です: %s", entryType),
		Category: "validation",
		Action:   "記録種別には entry、exit、trip のいずれかを指定してください。",
	}
}

// NewGroupNotFoundError は重複グループ未検出エラーを生成する。
func NewGroupNotFoundError(groupID string) *APIError {
	return &APIError{
		Code:     ErrCodeGroupNotFound,
		Message:  fmt.Sprintf("指定された重複グループが見つかりません: %s", groupID),
		Category: "travel",
		Action:   "重複グループIDを確認してください。",
	}
}

// NewInvalidGroupStatusError は無効な重複グループ状態エラーを生成する。
func NewInvalidGroupStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGroupStatus,
		Message:  fmt.Sprintf("無効な解決状態です: %s", status),
		Category: "validation",
		Action:   "解決状態には resolved または auto_resolved を指定してください。",
	}
}

// NewEntryLimitError は渡航記録の上限エラーを生成する。
func NewEntryLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeEntryLimit,
		Message:  "渡航記録数が上限（5000件）に達しています。",
		Category: "travel",
		Action:   "不要な渡航記録を削除してから、新しい記録を登録してください。",
	}
}

// NewExtractionFailedError はメール抽出失敗エラーを生成する。
func NewExtractionFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeExtractionFailed,
		Message:  fmt.Sprintf("メールからのフライト情報抽出に失敗しました: %s", reason),
		Category: "travel",
		Action:   "フライト確認メールの本文が含まれているか確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
