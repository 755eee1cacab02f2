package app

import (
	"context"
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

	"github.com/hitoshi/presenceman/internal/cache"
	"github.com/hitoshi/presenceman/internal/config"
	"github.com/hitoshi/presenceman/internal/database"
	"github.com/hitoshi/presenceman/internal/handler"
	"github.com/hitoshi/presenceman/internal/logger"
	"github.com/hitoshi/presenceman/internal/metrics"
	"github.com/hitoshi/presenceman/internal/middleware"
	"github.com/hitoshi/presenceman/internal/model"
	"github.com/hitoshi/presenceman/internal/presence"
	"github.com/hitoshi/presenceman/internal/repository"
	"github.com/hitoshi/presenceman/internal/roblox"
	"github.com/hitoshi/presenceman/internal/security"
	settingspkg "github.com/hitoshi/presenceman/internal/settings"
	"github.com/hitoshi/presenceman/internal/worker/refresh"
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

// buildPresenceService はプレゼンス解決スタック一式を組み立てる。
// APIサーバーとリフレッシュワーカーの両方が同じ構成を使う。
func buildPresenceService(
	cfg *config.Config,
	settingsRepo repository.SettingsRepository,
	collector *metrics.Collector,
	log *slog.Logger,
) (*presence.Service, error) {
	// 1. プロキシエンドポイントの事前検証（SSRF対策）
	guard := security.NewEndpointGuard()
	if err := guard.ValidateEndpoint(cfg.PrimaryEndpoint); err != nil {
		return nil, fmt.Errorf("invalid primary endpoint: %w", err)
	}
	if err := guard.ValidateEndpoint(cfg.FallbackEndpoint); err != nil {
		return nil, fmt.Errorf("invalid fallback endpoint: %w", err)
	}

	// 2. SSRF防止付きHTTPクライアントとフェッチャー
	client := guard.NewSafeClient(cfg.PresenceTimeout)
	fetcher := roblox.NewFetcher(client, log, roblox.FetcherConfig{
		Timeout:      cfg.PresenceTimeout,
		Retries:      cfg.PresenceRetries,
		InitialDelay: cfg.PresenceRetryDelay,
	})

	// 3. プレゼンスソース（primary -> fallback -> direct の順に試行される）
	primary := roblox.NewPresenceSource(model.MethodPrimary, cfg.PrimaryEndpoint, fetcher)
	fallback := roblox.NewPresenceSource(model.MethodFallback, cfg.FallbackEndpoint, fetcher)
	direct := roblox.NewPresenceSource(model.MethodDirect, config.DirectPresenceEndpoint, fetcher)

	// 4. 資格情報リゾルバ（DB保存値が環境変数より優先される）
	credentials := settingspkg.NewCredentialResolver(settingsRepo, cfg.RobloxCookie, log)

	chain := roblox.NewChain(primary, fallback, direct, credentials, log)
	classifier := roblox.NewClassifier(model.TargetGame{
		UniverseID: cfg.TargetUniverseID,
		PlaceID:    cfg.TargetPlaceID,
		Name:       cfg.TargetGameName,
	}, log)
	usernames := roblox.NewUsernameClient(fetcher, config.UsersEndpoint)
	statusCache := cache.NewTTLCache(cfg.StatusCacheTTL, nil)

	return presence.NewService(chain, usernames, classifier, statusCache, collector, log, nil), nil
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
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	accountRepo := repository.NewPostgresAccountRepo(db)
	strategyRepo := repository.NewPostgresStrategyRepo(db)
	kitRepo := repository.NewPostgresKitRepo(db)
	historyRepo := repository.NewPostgresStatusHistoryRepo(db)

	// 3. メトリクスレジストリ
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. プレゼンス解決スタックの構築
	presenceService, err := buildPresenceService(cfg, settingsRepo, collector, slog.Default())
	if err != nil {
		return err
	}

	// 5. レートリミッタ（configはreq/min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitStatus > 0 {
		rateLimiterCfg.StatusRate = rate.Limit(float64(cfg.RateLimitStatus) / 60.0)
		rateLimiterCfg.StatusBurst = cfg.RateLimitStatus
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg, slog.Default())
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger: slog.Default(),

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		PresenceService: presenceService,

		Accounts:   accountRepo,
		History:    historyRepo,
		Strategies: strategyRepo,
		Kits:       kitRepo,
		Settings:   settingsRepo,

		Sanitizer:    security.NewDescriptionSanitizer(),
		EnvCookieSet: cfg.RobloxCookie != "",

		MetricsHandler: metrics.Handler(registry),
		DB:             db,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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
// DB接続を開き、ステータスリフレッシュワーカーを起動する。
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

	// 2. リポジトリの初期化
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	accountRepo := repository.NewPostgresAccountRepo(db)
	historyRepo := repository.NewPostgresStatusHistoryRepo(db)

	// 3. メトリクスレジストリ
	// ワーカーはHTTPサーバーを持たないため、メトリクスはログ出力の補助としてのみ集計する
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. プレゼンス解決スタックの構築
	presenceService, err := buildPresenceService(cfg, settingsRepo, collector, slog.Default())
	if err != nil {
		return err
	}

	// 5. リフレッシュワーカーの初期化
	worker := refresh.NewWorker(
		accountRepo, historyRepo, presenceService, collector,
		slog.Default(), cfg.RefreshMaxConcurrent, cfg.HistoryRetentionDays,
	)

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
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Int("max_concurrent", cfg.RefreshMaxConcurrent),
		slog.Int("retention_days", cfg.HistoryRetentionDays),
	)

	// リフレッシュワーカーをメインgoroutineで実行（ブロッキング）
	worker.Start(ctx, cfg.RefreshInterval)

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
