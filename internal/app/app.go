// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/estatehub/internal/auth"
	"github.com/hitoshi/estatehub/internal/config"
	"github.com/hitoshi/estatehub/internal/database"
	"github.com/hitoshi/estatehub/internal/handler"
	"github.com/hitoshi/estatehub/internal/listing"
	"github.com/hitoshi/estatehub/internal/logger"
	"github.com/hitoshi/estatehub/internal/metrics"
	"github.com/hitoshi/estatehub/internal/middleware"
	"github.com/hitoshi/estatehub/internal/repository"
	"github.com/hitoshi/estatehub/internal/security"
	"github.com/hitoshi/estatehub/internal/telemetry"
	"github.com/hitoshi/estatehub/internal/user"
	"github.com/hitoshi/estatehub/internal/validate"
)

// ServiceName はログとトレースに付与するサービス名。
const ServiceName = "estatehub"

// Version はビルド時に-ldflagsで上書きする。
var Version = "dev"

// oauthHTTPTimeout はOAuthプロバイダとの通信のタイムアウト。
const oauthHTTPTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, cfg.LogLevel)

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
		slog.String("version", Version),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
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
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. トレーシング
	shutdownTracing, err := telemetry.Setup(ctx, ServiceName, Version, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Error("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	// 2. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 3. 依存関係の構築
	registry := prometheus.NewRegistry()
	router, cleanup := buildRouter(cfg, db, registry)
	defer cleanup()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter はリポジトリからハンドラーまでを組み立ててルーターを返す。
// 返り値のcleanupはレート制限のバックグラウンド処理を停止する。
func buildRouter(cfg *config.Config, db *sqlx.DB, registry *prometheus.Registry) (http.Handler, func()) {
	// リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)

	// セキュリティ・検証
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	sanitizer := security.NewTextSanitizer()
	urlGuard := security.NewURLGuard()
	validator := validate.New()

	// メトリクス
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// ドメインサービス
	authService := auth.NewService(userRepo, hasher, sanitizer, validator, collector)
	listingService := listing.NewService(listingRepo, sanitizer, urlGuard, validator, collector)
	userService := user.NewService(userRepo, sanitizer, urlGuard)

	// セッション
	codec := auth.NewTokenCodec(cfg.SessionSecret, cfg.SessionLifetime())
	sessions := middleware.NewSessionManager(codec, userRepo, middleware.SessionConfig{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}, collector)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	router := handler.NewRouter(&handler.RouterDeps{
		Sessions:          sessions,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		CookieSecure:      cfg.CookieSecure,
		CookieDomain:      cfg.CookieDomain,
		Logger:            slog.Default(),
		Metrics:           collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService:    authService,
		OAuthProviders: buildOAuthProviders(cfg, urlGuard),
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:      cfg.BaseURL,
			CookieSecure: cfg.CookieSecure,
		},

		ListingService: listingService,
		UserService:    userService,
	})

	return router, rateLimiter.Stop
}

// buildOAuthProviders はクライアントIDとシークレットが設定されたプロバイダのみを返す。
// プロバイダとの通信はSSRF対策済みのクライアントで行う。
func buildOAuthProviders(cfg *config.Config, urlGuard security.URLGuard) []auth.OAuthProvider {
	var providers []auth.OAuthProvider

	if cfg.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleProvider(auth.ProviderConfig{
			ClientID:        cfg.GoogleClientID,
			ClientSecret:    cfg.GoogleClientSecret,
			RedirectBaseURL: cfg.OAuthRedirectBaseURL,
			HTTPClient:      urlGuard.NewSafeClient(oauthHTTPTimeout),
		}))
	}
	if cfg.FacebookEnabled() {
		providers = append(providers, auth.NewFacebookProvider(auth.ProviderConfig{
			ClientID:        cfg.FacebookClientID,
			ClientSecret:    cfg.FacebookClientSecret,
			RedirectBaseURL: cfg.OAuthRedirectBaseURL,
			HTTPClient:      urlGuard.NewSafeClient(oauthHTTPTimeout),
		}))
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	slog.Info("oauth providers configured", slog.Any("providers", names))

	return providers
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
