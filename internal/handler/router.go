package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/estatehub/internal/auth"
	"github.com/hitoshi/estatehub/internal/metrics"
	"github.com/hitoshi/estatehub/internal/middleware"
	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          *middleware.SessionManager
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	TrustProxyHeaders bool // trueならX-Forwarded-ForなどでRemoteAddrを書き換える
	CookieSecure      bool
	CookieDomain      string
	Logger            *slog.Logger
	Metrics           metrics.Recorder
	TracerProvider    trace.TracerProvider // nilならグローバルのプロバイダ

	// 運用エンドポイント
	HealthChecker  repository.Pinger
	MetricsHandler http.Handler // nilなら/metricsを公開しない

	// 認証
	AuthService    AuthServiceInterface
	OAuthProviders []auth.OAuthProvider
	AuthConfig     AuthHandlerConfig

	// 物件
	ListingService ListingServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP(TrustProxyHeaders時のみ) → Tracing → Metrics → CORS → SecurityHeaders → Session → Logging → Recovery
//	→ CSRF → RateLimit(General)
//
// /healthと/metricsはCSRFとレート制限の外に配置する。
// 資格情報を受け取るエンドポイントには認証用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.CookieSecure,
		CookieDomain: deps.CookieDomain,
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewTracingMiddleware(deps.TracerProvider))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CookieSecure))
	r.Use(deps.Sessions.Middleware)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, model.NewNotFoundError())
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.OAuthProviders, deps.AuthConfig)
	listingHandler := NewListingHandler(deps.ListingService)
	userHandler := NewUserHandler(deps.UserService, deps.Sessions)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		authLimited := deps.RateLimiter.AuthMiddleware()
		requireSession := deps.Sessions.RequireSession

		r.Route("/auth", func(r chi.Router) {
			r.Method(http.MethodGet, "/csrf", middleware.NewCSRFTokenHandler(csrfConfig))
			r.Get("/providers", authHandler.Providers)
			r.Get("/session", authHandler.GetSession)
			r.Post("/session", authHandler.UpdateSession)
			r.With(authLimited).Post("/register", authHandler.Register)
			r.With(authLimited).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			// OAuthフロー
			r.Get("/{provider}/login", authHandler.OAuthLogin)
			r.Get("/{provider}/callback", authHandler.OAuthCallback)
		})

		r.Route("/user", func(r chi.Router) {
			r.With(authLimited).Post("/check-email", userHandler.CheckEmail)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)
				r.Get("/profile", userHandler.GetProfile)
				r.Patch("/profile", userHandler.UpdateProfile)
			})
		})

		r.Route("/properties", func(r chi.Router) {
			r.Get("/", listingHandler.List)
			r.With(requireSession).Post("/", listingHandler.Create)
			r.With(requireSession).Get("/mine", listingHandler.Mine)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingHandler.Get)
				r.With(requireSession).Put("/", listingHandler.Update)
				r.With(requireSession).Delete("/", listingHandler.Delete)
			})
		})
	})

	return r
}
