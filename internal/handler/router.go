package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshbtc/travelcheck/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 渡航記録
	EntryService  EntryServiceInterface
	IngestService IngestServiceInterface

	// 重複検出
	DuplicateService DuplicateServiceInterface

	// レポート
	ReportService ReportServiceInterface

	// 渡航情報
	AdvisoryLister AdvisoryLister

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SessionMiddleware → CSRFMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）とCSRFトークン取得はミドルウェアチェーンの外に配置する。
// 重量操作（クラスタリング実行、レポート生成、メール取り込み）には
// 専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	entryHandler := NewEntryHandler(deps.EntryService, deps.IngestService)
	duplicateHandler := NewDuplicateHandler(deps.DuplicateService)
	reportHandler := NewReportHandler(deps.ReportService)
	advisoryHandler := NewAdvisoryHandler(deps.AdvisoryLister)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン取得（認証不要）
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 渡航記録管理
		r.Route("/api/entries", func(r chi.Router) {
			r.Post("/", entryHandler.Create)
			r.Get("/", entryHandler.List)

			// POST /api/entries/import/email - メール取り込み（重量操作レート制限を追加）
			r.With(deps.RateLimiter.HeavyMiddleware()).Post("/import/email", entryHandler.ImportEmail)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", entryHandler.Get)
				r.Put("/", entryHandler.Update)
				r.Delete("/", entryHandler.Delete)
			})
		})

		// 重複検出・解決
		r.Route("/api/duplicates", func(r chi.Router) {
			r.Get("/", duplicateHandler.List)

			// POST /api/duplicates/scan - クラスタリング実行（重量操作レート制限を追加）
			r.With(deps.RateLimiter.HeavyMiddleware()).Post("/scan", duplicateHandler.Scan)

			r.Post("/{id}/resolve", duplicateHandler.Resolve)
		})

		// レポート（重量操作レート制限を追加）
		r.Route("/api/reports", func(r chi.Router) {
			r.With(deps.RateLimiter.HeavyMiddleware()).Get("/presence", reportHandler.Presence)
			r.With(deps.RateLimiter.HeavyMiddleware()).Post("/timeline", reportHandler.Timeline)
		})

		// 渡航情報
		r.Get("/api/advisories/{countryCode}", advisoryHandler.ListByCountry)

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Put("/home-country", userHandler.UpdateHomeCountry)
			r.Delete("/", userHandler.Withdraw)
		})
	})

	return r
}
