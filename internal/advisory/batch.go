package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eshbtc/travelcheck/internal/repository"
)

// FetchRecorder は渡航情報取得のメトリクス記録インターフェース。
type FetchRecorder interface {
	RecordAdvisoryFetch(success bool)
}

// BatchConfig はバッチジョブの設定パラメータ。
// 環境変数から設定可能。
type BatchConfig struct {
	// BatchInterval はバッチジョブの実行間隔（デフォルト: 30分）。
	BatchInterval time.Duration
	// APIInterval はフィード取得の最低間隔（デフォルト: 5秒）。
	APIInterval time.Duration
	// MaxCallsPerCycle は1サイクルあたりの最大取得国数（デフォルト: 50）。
	MaxCallsPerCycle int
	// AdvisoryTTL は渡航情報の再取得間隔（デフォルト: 24時間）。
	AdvisoryTTL time.Duration
}

// DefaultBatchConfig はデフォルトのバッチジョブ設定を返す。
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchInterval:    30 * time.Minute,
		APIInterval:      5 * time.Second,
		MaxCallsPerCycle: 50,
		AdvisoryTTL:      24 * time.Hour,
	}
}

// BatchJob は渡航情報のバッチ取得ジョブ。
// 定期的に未取得またはTTLを経過した渡航先国を対象にフィードを取得し、
// 渡航情報を(country_code, link)キーで冪等にUPSERTする。
// 取得対象国はユーザーの渡航記録に現れる渡航先から決まる。
type BatchJob struct {
	advisoryRepo      repository.AdvisoryRepository
	fetcher           FeedFetcher
	logger            *slog.Logger
	config            BatchConfig
	recorder          FetchRecorder
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewBatchJob はBatchJobの新しいインスタンスを生成する。
// recorderはnil可（メトリクス記録なし）。
func NewBatchJob(
	advisoryRepo repository.AdvisoryRepository,
	fetcher FeedFetcher,
	logger *slog.Logger,
	config BatchConfig,
	recorder FetchRecorder,
) *BatchJob {
	return &BatchJob{
		advisoryRepo: advisoryRepo,
		fetcher:      fetcher,
		logger:       logger,
		config:       config,
		recorder:     recorder,
	}
}

// Start はバッチジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (b *BatchJob) Start(ctx context.Context) {
	ticker := time.NewTicker(b.config.BatchInterval)
	defer ticker.Stop()

	b.logger.Info("渡航情報バッチジョブを開始しました",
		slog.Duration("batch_interval", b.config.BatchInterval),
		slog.Duration("api_interval", b.config.APIInterval),
		slog.Int("max_calls_per_cycle", b.config.MaxCallsPerCycle),
	)

	// 起動直後に1回実行
	if err := b.RunOnce(ctx); err != nil {
		b.logger.Error("渡航情報バッチサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("渡航情報バッチジョブを停止しました")
			return
		case <-ticker.C:
			if err := b.RunOnce(ctx); err != nil {
				b.logger.Error("渡航情報バッチサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回のバッチサイクルを実行する。
// 取得対象国を決定し、国単位でフィードを取得して渡航情報を更新する。
func (b *BatchJob) RunOnce(ctx context.Context) error {
	start := time.Now()

	// バックオフ中の場合はスキップ
	if !b.backoffUntil.IsZero() && time.Now().Before(b.backoffUntil) {
		b.logger.Info("渡航情報バッチジョブはバックオフ中のためスキップします",
			slog.Time("backoff_until", b.backoffUntil),
		)
		return nil
	}

	countries, err := b.advisoryRepo.ListCountriesNeedingRefresh(ctx, b.config.AdvisoryTTL, b.config.MaxCallsPerCycle)
	if err != nil {
		return fmt.Errorf("渡航情報の取得対象国の決定に失敗しました: %w", err)
	}

	if len(countries) == 0 {
		b.logger.Info("渡航情報の取得対象国はありません")
		return nil
	}

	b.logger.Info("渡航情報バッチサイクルを開始します",
		slog.Int("target_countries", len(countries)),
	)

	var fetchCount int
	var upsertedCount int
	var hadError bool

	for _, countryCode := range countries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// 取得インターバル（初回は待たない）
		if fetchCount > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.config.APIInterval):
			}
		}

		fetchCount++

		advisories, err := b.fetcher.FetchCountry(ctx, countryCode)
		if err != nil {
			b.logger.Error("渡航情報フィードの取得に失敗しました",
				slog.String("country_code", countryCode),
				slog.String("error", err.Error()),
				slog.Int("fetch_count", fetchCount),
			)
			if b.recorder != nil {
				b.recorder.RecordAdvisoryFetch(false)
			}
			hadError = true
			b.consecutiveErrors++
			// バックオフ判定
			backoff := b.calculateErrorBackoff(b.consecutiveErrors)
			if backoff > 0 {
				b.backoffUntil = time.Now().Add(backoff)
				b.logger.Warn("連続エラーによりバックオフを適用します",
					slog.Int("consecutive_errors", b.consecutiveErrors),
					slog.Duration("backoff_duration", backoff),
				)
				break
			}
			continue // この国はスキップし次の国へ（前回値維持）
		}

		if b.recorder != nil {
			b.recorder.RecordAdvisoryFetch(true)
		}

		// 取得成功: 渡航情報をUPSERT
		now := time.Now()
		for _, adv := range advisories {
			adv.ID = uuid.New().String()
			adv.FetchedAt = now
			if err := b.advisoryRepo.Upsert(ctx, adv); err != nil {
				b.logger.Error("渡航情報の保存に失敗しました",
					slog.String("country_code", countryCode),
					slog.String("link", adv.Link),
					slog.String("error", err.Error()),
				)
			} else {
				upsertedCount++
			}
		}
	}

	// エラーがなければ連続エラーカウントをリセット
	if !hadError {
		b.consecutiveErrors = 0
		b.backoffUntil = time.Time{}
	}

	duration := time.Since(start)
	b.logger.Info("渡航情報バッチサイクルが完了しました",
		slog.Int("fetch_count", fetchCount),
		slog.Int("upserted_advisories", upsertedCount),
		slog.Int("target_countries", len(countries)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 30分、5回連続: 1時間、10回連続: 6時間。
func (b *BatchJob) calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 6 * time.Hour
	case consecutiveErrors >= 5:
		return 1 * time.Hour
	case consecutiveErrors >= 3:
		return 30 * time.Minute
	default:
		return 0
	}
}
