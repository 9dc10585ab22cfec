// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/estatehub/internal/auth"
	"github.com/hitoshi/estatehub/internal/metrics"
	"github.com/hitoshi/estatehub/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "estatehub_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにセッションのClaimsを格納するためのキー。
var claimsContextKey = contextKey("session_claims")

// SessionConfig はセッションCookieの設定。
type SessionConfig struct {
	CookieSecure bool
	CookieDomain string
}

// SessionManager はセッショントークンCookieの発行・検証・同期を行う。
type SessionManager struct {
	codec   *auth.TokenCodec
	lookup  auth.AccountLookup
	config  SessionConfig
	metrics metrics.Recorder
}

// NewSessionManager はSessionManagerを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewSessionManager(codec *auth.TokenCodec, lookup auth.AccountLookup, config SessionConfig, recorder metrics.Recorder) *SessionManager {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &SessionManager{
		codec:   codec,
		lookup:  lookup,
		config:  config,
		metrics: recorder,
	}
}

// Middleware はCookieのセッショントークンを検証し、Claimsをコンテキストに注入する。
// 未同期のトークンはアカウントと同期し、変化があれば有効期限を変えずに再発行する。
// トークンが無い場合は匿名のまま通し、不正・期限切れの場合はCookieを削除して通す。
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.codec.Parse(cookie.Value)
		if err != nil {
			slog.Debug("discarding invalid session token", slog.String("error", err.Error()))
			m.Clear(w)
			next.ServeHTTP(w, r)
			return
		}

		synced, err := m.sync(r.Context(), w, claims)
		if err != nil {
			slog.Error("failed to reissue session token", slog.String("error", err.Error()))
			synced = claims
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), synced)))
	})
}

// RequireSession はセッションの無いリクエストに401を返すミドルウェア。
// Middlewareの後に配置する。
func (m *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := UserIDFromContext(r.Context()); err != nil {
			WriteErrorResponse(w, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start はサインイン直後のセッションを発行する。
// 発行前にアカウントと同期するため、OAuthで得た情報もDBの値で上書きされる。
func (m *SessionManager) Start(ctx context.Context, w http.ResponseWriter, identity model.Identity) (auth.Claims, error) {
	claims := m.codec.NewClaims(identity)
	synced, syncErr := auth.Synchronize(ctx, claims, m.lookup)
	if syncErr != nil {
		m.metrics.RecordAuthEvent(metrics.EventSync, metrics.OutcomeError)
		slog.Warn("session sync failed", slog.String("error", syncErr.Error()))
	}
	if err := m.setCookie(w, synced); err != nil {
		return auth.Claims{}, err
	}
	return synced, nil
}

// Refresh はClaimsを未同期に戻してアカウントの最新値で再発行する。
// クライアントから送られた値はトークンに反映しない。有効期限は延長しない。
func (m *SessionManager) Refresh(ctx context.Context, w http.ResponseWriter, claims auth.Claims) (auth.Claims, error) {
	claims.Synced = false
	return m.sync(ctx, w, claims)
}

// Clear はセッションCookieを削除する。
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sync はClaimsを同期し、変化があればCookieを再発行する。
func (m *SessionManager) sync(ctx context.Context, w http.ResponseWriter, claims auth.Claims) (auth.Claims, error) {
	synced, syncErr := auth.Synchronize(ctx, claims, m.lookup)
	if syncErr != nil {
		m.metrics.RecordAuthEvent(metrics.EventSync, metrics.OutcomeError)
		slog.Warn("session sync failed",
			slog.String("user_id", claims.UserID()),
			slog.String("error", syncErr.Error()),
		)
	}

	if !synced.Changed(claims) {
		return synced, nil
	}
	if err := m.setCookie(w, synced); err != nil {
		return claims, err
	}
	if syncErr == nil {
		m.metrics.RecordAuthEvent(metrics.EventSync, metrics.OutcomeSuccess)
	}
	return synced, nil
}

func (m *SessionManager) setCookie(w http.ResponseWriter, claims auth.Claims) error {
	token, err := m.codec.Sign(claims)
	if err != nil {
		return err
	}

	expires := claims.Expiry()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.config.CookieDomain,
		Expires:  expires,
		MaxAge:   max(int(time.Until(expires).Seconds()), 1),
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClaimsFromContext はリクエストコンテキストからセッションのClaimsを取得する。
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(auth.Claims)
	return claims, ok
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID() == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return claims.UserID(), nil
}

// ContextWithClaims はコンテキストにClaimsを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
