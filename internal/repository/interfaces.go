// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateHomeCountry はユーザーの母国設定を更新する。
	// 滞在日数計算の母国判定述語はこの設定から構築される。
	UpdateHomeCountry(ctx context.Context, id, countryCode, countryName string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、travel_entries、duplicate_groupsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TravelEntryRepository は渡航記録の永続化インターフェース。
// スコアリング・クラスタリングでは記録を読み取り専用として扱う。
type TravelEntryRepository interface {
	// FindByID は指定IDの渡航記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TravelEntry, error)

	// ListByUserID はユーザーの渡航記録をentry_date昇順で返す。
	// entryTypeが空文字列以外の場合は記録種別でフィルタする。
	// クラスタリング入力の契約順序（entry_date昇順）はこのメソッドが保証する。
	ListByUserID(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error)

	// CountByUserID はユーザーの渡航記録数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// FindByUserAndConfirmation は予約番号で渡航記録を検索する。
	// 同一性判定の最優先手段。見つからない場合はnilを返す。
	FindByUserAndConfirmation(ctx context.Context, userID, confirmationNumber string) (*model.TravelEntry, error)

	// FindByUserFlightAndDate は便名と入国日で渡航記録を検索する。
	// 同一性判定の第2優先手段。見つからない場合はnilを返す。
	FindByUserFlightAndDate(ctx context.Context, userID, flightNumber string, entryDate time.Time) (*model.TravelEntry, error)

	// FindByUserAndContentHash はcontent_hashで渡航記録を検索する。
	// 同一性判定の第3優先手段（hash(country+entry_date+entry_type)）。見つからない場合はnilを返す。
	FindByUserAndContentHash(ctx context.Context, userID, contentHash string) (*model.TravelEntry, error)

	// Create は渡航記録を作成する。
	Create(ctx context.Context, entry *model.TravelEntry) error

	// Update は既存の渡航記録を上書き更新する。取り込み時の同一記録更新に使用する。
	Update(ctx context.Context, entry *model.TravelEntry) error

	// DeleteByID は指定IDの渡航記録を削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全渡航記録を削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// ListDestinationCountryCodes は全ユーザーの渡航先国コード（重複なし、空を除く）を返す。
	// 渡航情報バッチの取得対象国の決定に使用する。
	ListDestinationCountryCodes(ctx context.Context) ([]string, error)
}

// DuplicateGroupRepository は重複グループの永続化インターフェース。
type DuplicateGroupRepository interface {
	// CreateGroupWithItems はグループとその所属アイテムを同一トランザクションで作成する。
	// 部分的に書き込まれた重複グループを残さないため、アトミック性はこのメソッドが保証する。
	CreateGroupWithItems(ctx context.Context, group *model.DuplicateGroup, items []model.DuplicateItem) error

	// FindGroupByID は指定IDのグループをアイテム付きで取得する。見つからない場合はnilを返す。
	FindGroupByID(ctx context.Context, id string) (*model.DuplicateGroupWithItems, error)

	// ListGroupsByUserID はユーザーの重複グループ一覧をアイテム付きで返す。
	// statusが空文字列以外の場合は解決状態でフィルタする。
	// similarity_score降順で返す。
	ListGroupsByUserID(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.DuplicateGroupWithItems, error)

	// UpdateStatus はグループの解決状態を更新する。
	// エンジン自身はこのメソッドを呼ばない。状態遷移は重複解決UI（外部アクター）が行う。
	UpdateStatus(ctx context.Context, groupID string, status model.DuplicateStatus) error

	// DeleteByUserID はユーザーの全重複グループを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// AdvisoryRepository は渡航情報の永続化インターフェース。
type AdvisoryRepository interface {
	// ListCountriesNeedingRefresh は渡航情報の取得が必要な国コードを返す。
	// 未取得の国を優先し、次にfetched_atがttlより古い国を返す。
	ListCountriesNeedingRefresh(ctx context.Context, ttl time.Duration, limit int) ([]string, error)

	// Upsert は渡航情報を(country_code, link)をキーに冪等にUPSERTする。
	Upsert(ctx context.Context, advisory *model.Advisory) error

	// ListByCountryCode は指定国の渡航情報をpublished_at降順で返す。
	ListByCountryCode(ctx context.Context, countryCode string, limit int) ([]*model.Advisory, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
