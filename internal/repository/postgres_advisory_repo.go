package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
)

// PostgresAdvisoryRepo はPostgreSQLを使用した渡航情報リポジトリ。
type PostgresAdvisoryRepo struct {
	db *sql.DB
}

// NewPostgresAdvisoryRepo はPostgresAdvisoryRepoを生成する。
func NewPostgresAdvisoryRepo(db *sql.DB) *PostgresAdvisoryRepo {
	return &PostgresAdvisoryRepo{db: db}
}

// ListCountriesNeedingRefresh は渡航情報の取得が必要な国コードを返す。
// 渡航記録に登場する国のうち、未取得の国を優先し、
// 次にfetched_atがttlより古い国を返す。
func (r *PostgresAdvisoryRepo) ListCountriesNeedingRefresh(ctx context.Context, ttl time.Duration, limit int) ([]string, error) {
	interval := fmt.Sprintf("%d seconds", int(ttl.Seconds()))

	rows, err := r.db.QueryContext(ctx,
		`SELECT dest.country_code
		 FROM (SELECT DISTINCT country_code FROM travel_entries WHERE country_code <> '') AS dest
		 LEFT JOIN (
		     SELECT country_code, MAX(fetched_at) AS last_fetched_at
		     FROM advisories GROUP BY country_code
		 ) AS adv ON adv.country_code = dest.country_code
		 WHERE adv.last_fetched_at IS NULL
		    OR adv.last_fetched_at < now() - $1::interval
		 ORDER BY adv.last_fetched_at ASC NULLS FIRST, dest.country_code ASC
		 LIMIT $2`,
		interval, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list countries needing refresh: %w", err)
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

// Upsert は渡航情報を(country_code, link)をキーに冪等にUPSERTする。
func (r *PostgresAdvisoryRepo) Upsert(ctx context.Context, advisory *model.Advisory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO advisories
		 (id, country_code, title, summary, link, published_at, fetched_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		 ON CONFLICT (country_code, link) DO UPDATE SET
		   title = EXCLUDED.title,
		   summary = EXCLUDED.summary,
		   published_at = EXCLUDED.published_at,
		   fetched_at = EXCLUDED.fetched_at,
		   updated_at = now()`,
		advisory.ID, advisory.CountryCode, advisory.Title, advisory.Summary,
		advisory.Link, advisory.PublishedAt, advisory.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert advisory: %w", err)
	}
	return nil
}

// ListByCountryCode は指定国の渡航情報をpublished_at降順で返す。
func (r *PostgresAdvisoryRepo) ListByCountryCode(ctx context.Context, countryCode string, limit int) ([]*model.Advisory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, country_code, title, summary, link, published_at, fetched_at, created_at, updated_at
		 FROM advisories
		 WHERE country_code = $1
		 ORDER BY published_at DESC NULLS LAST, fetched_at DESC
		 LIMIT $2`,
		countryCode, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisories: %w", err)
	}
	defer rows.Close()

	var advisories []*model.Advisory
	for rows.Next() {
		a := &model.Advisory{}
		var publishedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.CountryCode, &a.Title, &a.Summary, &a.Link,
			&publishedAt, &a.FetchedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan advisory: %w", err)
		}
		if publishedAt.Valid {
			a.PublishedAt = &publishedAt.Time
		}
		advisories = append(advisories, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate advisories: %w", err)
	}
	return advisories, nil
}

// compile-time interface check
var _ AdvisoryRepository = (*PostgresAdvisoryRepo)(nil)
