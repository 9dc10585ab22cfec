// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/estatehub/internal/auth"
	"github.com/hitoshi/estatehub/internal/middleware"
	"github.com/hitoshi/estatehub/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分

	// providerCredentials はメールアドレスとパスワードによるサインイン。
	providerCredentials = "credentials"

	// oauthErrorPath はOAuthサインイン失敗時のリダイレクト先。
	oauthErrorPath = "/login?error=OAuthSignin"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, input auth.RegisterInput) (*model.AccountSummary, error)
	Login(ctx context.Context, email, password string) (*model.Identity, error)
	LinkOAuthAccount(ctx context.Context, info *auth.OAuthUserInfo) (*model.Identity, error)
}

// SessionIssuer はセッションCookieの発行・再発行・削除を行う。
// middleware.SessionManagerが実装する。
type SessionIssuer interface {
	Start(ctx context.Context, w http.ResponseWriter, identity model.Identity) (auth.Claims, error)
	Refresh(ctx context.Context, w http.ResponseWriter, claims auth.Claims) (auth.Claims, error)
	Clear(w http.ResponseWriter)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieSecure bool
}

// AuthHandler は登録・ログイン・セッション・OAuthのHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	sessions  SessionIssuer
	providers map[string]auth.OAuthProvider
	order     []string
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。providersは有効なOAuthプロバイダのみを渡す。
func NewAuthHandler(service AuthServiceInterface, sessions SessionIssuer, providers []auth.OAuthProvider, config AuthHandlerConfig) *AuthHandler {
	h := &AuthHandler{
		service:   service,
		sessions:  sessions,
		providers: make(map[string]auth.OAuthProvider, len(providers)),
		config:    config,
	}
	for _, p := range providers {
		h.providers[p.Name()] = p
		h.order = append(h.order, p.Name())
	}
	return h
}

type registerResponse struct {
	Message string                `json:"message"`
	User    *model.AccountSummary `json:"user"`
}

// Register はアカウントを登録する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input auth.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	summary, err := h.service.Register(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, registerResponse{
		Message: "User created successfully",
		User:    summary,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User model.Identity `json:"user"`
}

// Login はメールアドレスとパスワードで認証し、セッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	identity, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	claims, err := h.sessions.Start(r.Context(), w, *identity)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, loginResponse{User: claims.Identity()})
}

// Logout はセッションCookieを削除する。サーバー側に破棄すべき状態は無い。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Signed out"})
}

// GetSession は現在のセッションを返す。未ログインの場合は{"session": null}。
// GET /auth/session
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toSessionResponse(claims))
}

// UpdateSession はセッションをアカウントの最新値で再発行する。
// リクエストボディは読まず、クライアントの値をトークンに反映しない。
// POST /auth/session
func (h *AuthHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	refreshed, err := h.sessions.Refresh(r.Context(), w, claims)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toSessionResponse(refreshed))
}

func toSessionResponse(claims auth.Claims) sessionResponse {
	return sessionResponse{Session: &sessionBody{
		User:    claims.Identity(),
		Expires: claims.Expiry(),
	}}
}

// Providers は利用可能なサインイン方法を返す。
// GET /auth/providers
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	names := append([]string{providerCredentials}, h.order...)
	middleware.WriteJSON(w, http.StatusOK, map[string][]string{"providers": names})
}

// OAuthLogin はOAuthフローを開始する。
// GET /auth/{provider}/login
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		middleware.WriteErrorResponse(w, model.NewProviderUnavailableError())
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// OAuthCallback はOAuthコールバックを処理する。
// 失敗時はCookieを発行せず、フロントエンドのログイン画面にリダイレクトする。
// GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers[name]
	if !ok {
		middleware.WriteErrorResponse(w, model.NewProviderUnavailableError())
		return
	}

	// 1. stateの検証
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	h.clearStateCookie(w)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch", slog.String("provider", name))
		h.redirectOAuthError(w, r)
		return
	}

	// 2. 認可コードの取得（ユーザーが同意を拒否した場合はerrorが付く）
	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without code",
			slog.String("provider", name),
			slog.String("error", r.URL.Query().Get("error")),
		)
		h.redirectOAuthError(w, r)
		return
	}

	// 3. トークン交換とユーザー情報の取得
	info, err := provider.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("oauth exchange failed", slog.String("provider", name), slog.String("error", err.Error()))
		h.redirectOAuthError(w, r)
		return
	}

	// 4. アカウントの連携または作成
	identity, err := h.service.LinkOAuthAccount(r.Context(), info)
	if err != nil {
		slog.Error("oauth account linking failed", slog.String("provider", name), slog.String("error", err.Error()))
		h.redirectOAuthError(w, r)
		return
	}

	// 5. セッションCookieの発行
	if _, err := h.sessions.Start(r.Context(), w, *identity); err != nil {
		slog.Error("failed to start session", slog.String("provider", name), slog.String("error", err.Error()))
		h.redirectOAuthError(w, r)
		return
	}

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) redirectOAuthError(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, strings.TrimRight(h.config.BaseURL, "/")+oauthErrorPath, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
