package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

// PostgresTravelEntryRepo はPostgreSQLを使用した渡航記録リポジトリ。
type PostgresTravelEntryRepo struct {
	db *sql.DB
}

// NewPostgresTravelEntryRepo はPostgresTravelEntryRepoを生成する。
func NewPostgresTravelEntryRepo(db *sql.DB) *PostgresTravelEntryRepo {
	return &PostgresTravelEntryRepo{db: db}
}

// entryColumns は渡航記録のSELECT句。scanEntryの列順と一致させる。
const entryColumns = `id, user_id, entry_date, exit_date,
	country_code, country_name, COALESCE(city, ''),
	entry_type, COALESCE(flight_number, ''), COALESCE(confirmation_number, ''),
	source_type, COALESCE(content_hash, ''), created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*model.TravelEntry, error) {
	entry := &model.TravelEntry{}
	var exitDate sql.NullTime
	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.EntryDate, &exitDate,
		&entry.CountryCode, &entry.CountryName, &entry.City,
		&entry.EntryType, &entry.FlightNumber, &entry.ConfirmationNumber,
		&entry.SourceType, &entry.ContentHash, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if exitDate.Valid {
		entry.ExitDate = &exitDate.Time
	}
	return entry, nil
}

// FindByID は指定IDの渡航記録を取得する。見つからない場合はnilを返す。
func (r *PostgresTravelEntryRepo) FindByID(ctx context.Context, id string) (*model.TravelEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM travel_entries WHERE id = $1`,
		id,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find travel entry by ID: %w", err)
	}
	return entry, nil
}

// ListByUserID はユーザーの渡航記録をentry_date昇順で返す。
// entryTypeが空文字列以外の場合は記録種別でフィルタする。
func (r *PostgresTravelEntryRepo) ListByUserID(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM travel_entries
		WHERE user_id = $1`
	args := []interface{}{userID}
	if entryType != "" {
		query += ` AND entry_type = $2`
		args = append(args, string(entryType))
	}
	query += ` ORDER BY entry_date ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list travel entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.TravelEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan travel entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate travel entries: %w", err)
	}
	return entries, nil
}

// CountByUserID はユーザーの渡航記録数を返す。
func (r *PostgresTravelEntryRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM travel_entries WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count travel entries: %w", err)
	}
	return count, nil
}

// FindByUserAndConfirmation は予約番号で渡航記録を検索する。見つからない場合はnilを返す。
func (r *PostgresTravelEntryRepo) FindByUserAndConfirmation(ctx context.Context, userID, confirmationNumber string) (*model.TravelEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM travel_entries
		 WHERE user_id = $1 AND confirmation_number = $2
		 ORDER BY entry_date ASC LIMIT 1`,
		userID, confirmationNumber,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find travel entry by confirmation: %w", err)
	}
	return entry, nil
}

// FindByUserFlightAndDate は便名と入国日で渡航記録を検索する。見つからない場合はnilを返す。
func (r *PostgresTravelEntryRepo) FindByUserFlightAndDate(ctx context.Context, userID, flightNumber string, entryDate time.Time) (*model.TravelEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM travel_entries
		 WHERE user_id = $1 AND flight_number = $2 AND entry_date = $3
		 LIMIT 1`,
		userID, flightNumber, entryDate,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find travel entry by flight and date: %w", err)
	}
	return entry, nil
}

// FindByUserAndContentHash はcontent_hashで渡航記録を検索する。見つからない場合はnilを返す。
func (r *PostgresTravelEntryRepo) FindByUserAndContentHash(ctx context.Context, userID, contentHash string) (*model.TravelEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM travel_entries
		 WHERE user_id = $1 AND content_hash = $2
		 LIMIT 1`,
		userID, contentHash,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find travel entry by content hash: %w", err)
	}
	return entry, nil
}

// Create は渡航記録を作成する。
func (r *PostgresTravelEntryRepo) Create(ctx context.Context, entry *model.TravelEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO travel_entries
		 (id, user_id, entry_date, exit_date, country_code, country_name, city,
		  entry_type, flight_number, confirmation_number, source_type, content_hash,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''),
		         $8, NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''), $13, $14)`,
		entry.ID, entry.UserID, entry.EntryDate, entry.ExitDate,
		entry.CountryCode, entry.CountryName, entry.City,
		string(entry.EntryType), entry.FlightNumber, entry.ConfirmationNumber,
		string(entry.SourceType), entry.ContentHash, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create travel entry: %w", err)
	}
	return nil
}

// Update は既存の渡航記録を上書き更新する。
func (r *PostgresTravelEntryRepo) Update(ctx context.Context, entry *model.TravelEntry) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE travel_entries SET
		 entry_date = $2, exit_date = $3, country_code = $4, country_name = $5,
		 city = NULLIF($6, ''), entry_type = $7, flight_number = NULLIF($8, ''),
		 confirmation_number = NULLIF($9, ''), source_type = $10,
		 content_hash = NULLIF($11, ''), updated_at = $12
		 WHERE id = $1`,
		entry.ID, entry.EntryDate, entry.ExitDate,
		entry.CountryCode, entry.CountryName, entry.City,
		string(entry.EntryType), entry.FlightNumber, entry.ConfirmationNumber,
		string(entry.SourceType), entry.ContentHash, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update travel entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("travel entry not found: %s", entry.ID)
	}
	return nil
}

// DeleteByID は指定IDの渡航記録を削除する。
func (r *PostgresTravelEntryRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM travel_entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete travel entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("travel entry not found: %s", id)
	}
	return nil
}

// DeleteByUserID はユーザーの全渡航記録を削除する。
func (r *PostgresTravelEntryRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM travel_entries WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user travel entries: %w", err)
	}
	return nil
}

// ListDestinationCountryCodes は全ユーザーの渡航先国コード（重複なし、空を除く）を返す。
func (r *PostgresTravelEntryRepo) ListDestinationCountryCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT country_code FROM travel_entries
		 WHERE country_code <> ''
		 ORDER BY country_code`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list destination country codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan country code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate country codes: %w", err)
	}
	return codes, nil
}

// compile-time interface check
var _ TravelEntryRepository = (*PostgresTravelEntryRepo)(nil)
