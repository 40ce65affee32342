// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/eshbtc/travelcheck/internal/advisory"
	"github.com/eshbtc/travelcheck/internal/auth"
	"github.com/eshbtc/travelcheck/internal/config"
	"github.com/eshbtc/travelcheck/internal/database"
	"github.com/eshbtc/travelcheck/internal/dedup"
	"github.com/eshbtc/travelcheck/internal/entry"
	"github.com/eshbtc/travelcheck/internal/handler"
	"github.com/eshbtc/travelcheck/internal/ingest"
	"github.com/eshbtc/travelcheck/internal/logger"
	"github.com/eshbtc/travelcheck/internal/metrics"
	"github.com/eshbtc/travelcheck/internal/middleware"
	"github.com/eshbtc/travelcheck/internal/report"
	"github.com/eshbtc/travelcheck/internal/repository"
	"github.com/eshbtc/travelcheck/internal/security"
	"github.com/eshbtc/travelcheck/internal/user"
	"github.com/eshbtc/travelcheck/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	entryRepo := repository.NewPostgresTravelEntryRepo(db)
	groupRepo := repository.NewPostgresDuplicateGroupRepo(db)
	advisoryRepo := repository.NewPostgresAdvisoryRepo(db)

	// 3. メトリクスコレクターの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{
			SessionMaxAge:   cfg.SessionMaxAge,
			HomeCountryCode: cfg.HomeCountryCode,
			HomeCountryName: cfg.HomeCountryName,
		},
	)

	entryService := entry.NewService(entryRepo, cfg.MaxEntries)

	sanitizer := security.NewContentSanitizer()
	ingestService := ingest.NewEntryUpsertService(
		entryRepo, ingest.NewEmailExtractor(sanitizer), nil, collector, cfg.MaxEntries,
	)

	clusterer := dedup.NewClusterer(nil, cfg.ClusterThreshold)
	dedupService := dedup.NewService(entryRepo, groupRepo, clusterer, collector)

	reportService := report.NewService(entryRepo, userRepo, nil, collector, nil)

	userService := user.NewService(userRepo, sessionRepo, entryRepo, groupRepo)

	// 5. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.HeavyRate = rate.Limit(float64(cfg.RateLimitHeavy) / 60.0)
	rateLimiterCfg.HeavyBurst = cfg.RateLimitHeavy

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		EntryService:  entryService,
		IngestService: ingestService,

		DuplicateService: dedupService,
		ReportService:    reportService,
		AdvisoryLister:   advisoryRepo,
		UserService:      userService,
	}

	router := handler.NewRouter(deps)

	// 6. 運用エンドポイント（/health、/metrics）はAPIルーターの外に配置する
	mux := http.NewServeMux()
	mux.Handle("/health", newHealthHandler(db))
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", router)

	// 全ルート共通の外側ミドルウェア: Recovery → SecurityHeaders → Logging
	rootHandler := middleware.NewRecoveryMiddleware()(
		middleware.NewSecurityHeadersMiddleware()(
			middleware.NewLoggingMiddleware(slog.Default(), collector)(mux),
		),
	)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 渡航情報バッチジョブとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリとメトリクスの初期化
	advisoryRepo := repository.NewPostgresAdvisoryRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 渡航情報バッチジョブの初期化
	// フィードURLテンプレートは起動前に静的検証する
	ssrfGuard := security.NewSSRFGuard()
	if err := ssrfGuard.ValidateFeedTemplate(cfg.AdvisoryFeedURLTemplate); err != nil {
		return fmt.Errorf("invalid advisory feed URL template: %w", err)
	}

	feedClient := advisory.NewClient(
		ssrfGuard.NewSafeClient(cfg.AdvisoryFetchTimeout, cfg.AdvisoryMaxSize),
		ssrfGuard,
		slog.Default(),
		cfg.AdvisoryFeedURLTemplate,
	)
	advisoryBatch := advisory.NewBatchJob(advisoryRepo, feedClient, slog.Default(), advisory.BatchConfig{
		BatchInterval:    cfg.AdvisoryBatchInterval,
		APIInterval:      cfg.AdvisoryAPIInterval,
		MaxCallsPerCycle: cfg.AdvisoryMaxPerCycle,
		AdvisoryTTL:      cfg.AdvisoryTTL,
	}, collector)

	// 4. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.GroupRetentionDays = cfg.GroupRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("advisory_batch_interval", cfg.AdvisoryBatchInterval),
		slog.Duration("advisory_ttl", cfg.AdvisoryTTL),
		slog.Int("group_retention_days", cfg.GroupRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 渡航情報バッチジョブをメインgoroutineで実行（ブロッキング）
	advisoryBatch.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// newHealthHandler はDB疎通確認付きのヘルスチェックハンドラーを返す。
func newHealthHandler(db *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			slog.Error("health check database ping failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
