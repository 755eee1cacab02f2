package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/presenceman/internal/middleware"
	"github.com/hitoshi/presenceman/internal/repository"
)

// HealthPinger はヘルスチェックでの依存先疎通確認のインターフェース。
// *sql.DB がこれを満たす。
type HealthPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// プレゼンス解決
	PresenceService PresenceServiceInterface

	// 永続化
	Accounts   repository.AccountRepository
	History    repository.StatusHistoryRepository
	Strategies repository.StrategyRepository
	Kits       repository.KitRepository
	Settings   repository.SettingsRepository

	// 投稿本文のサニタイズ
	Sanitizer HTMLSanitizer

	// 環境変数でCookieが設定されているか
	EnvCookieSet bool

	// オプション
	MetricsHandler http.Handler
	DB             HealthPinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → CORSMiddleware → LoggingMiddleware
//
// ステータス照会（/roblox-status）は専用レート制限、/api以下は全般レート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	statusHandler := NewStatusHandler(deps.PresenceService, deps.Logger)
	accountHandler := NewAccountHandler(deps.Accounts, deps.History, deps.Logger)
	strategyHandler := NewStrategyHandler(deps.Strategies, deps.Sanitizer, deps.Logger)
	kitHandler := NewKitHandler(deps.Kits, deps.Sanitizer, deps.Logger)
	settingsHandler := NewSettingsHandler(deps.Settings, deps.EnvCookieSet, deps.Logger)

	// ヘルスチェック（レート制限の対象外）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// ステータス照会（専用レート制限）
	r.With(deps.RateLimiter.StatusMiddleware()).Post("/roblox-status", statusHandler.GetStatus)

	// 管理API（全般レート制限）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 追跡アカウント管理
		r.Route("/api/accounts", func(r chi.Router) {
			r.Get("/", accountHandler.List)
			r.Post("/", accountHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", accountHandler.Get)
				r.Put("/", accountHandler.Update)
				r.Delete("/", accountHandler.Delete)

				// GET /api/accounts/{id}/stats - 履歴からの派生統計
				r.Get("/stats", accountHandler.Stats)
			})
		})

		// 戦略投稿管理
		r.Route("/api/strategies", func(r chi.Router) {
			r.Get("/", strategyHandler.List)
			r.Post("/", strategyHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", strategyHandler.Get)
				r.Put("/", strategyHandler.Update)
				r.Delete("/", strategyHandler.Delete)
			})
		})

		// キット管理
		r.Route("/api/kits", func(r chi.Router) {
			r.Get("/", kitHandler.List)
			r.Post("/", kitHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", kitHandler.Get)
				r.Put("/", kitHandler.Update)
				r.Delete("/", kitHandler.Delete)
			})
		})

		// アプリケーション設定
		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/cookie", settingsHandler.GetCookieStatus)
			r.Put("/cookie", settingsHandler.UpdateCookie)
		})
	})

	return r
}
