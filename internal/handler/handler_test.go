package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/estatehub/internal/auth"
	"github.com/hitoshi/estatehub/internal/listing"
	"github.com/hitoshi/estatehub/internal/middleware"
	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, input auth.RegisterInput) (*model.AccountSummary, error)
	loginFn    func(ctx context.Context, email, password string) (*model.Identity, error)
	linkFn     func(ctx context.Context, info *auth.OAuthUserInfo) (*model.Identity, error)
}

func (m *mockAuthService) Register(ctx context.Context, input auth.RegisterInput) (*model.AccountSummary, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, input)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) LinkOAuthAccount(ctx context.Context, info *auth.OAuthUserInfo) (*model.Identity, error) {
	if m.linkFn != nil {
		return m.linkFn(ctx, info)
	}
	return nil, nil
}

// mockSessionIssuer はSessionIssuerのモック。発行したIdentityを記録する。
type mockSessionIssuer struct {
	startFn   func(ctx context.Context, w http.ResponseWriter, identity model.Identity) (auth.Claims, error)
	refreshFn func(ctx context.Context, w http.ResponseWriter, claims auth.Claims) (auth.Claims, error)
	started   []model.Identity
	refreshed int
	cleared   int
}

func (m *mockSessionIssuer) Start(ctx context.Context, w http.ResponseWriter, identity model.Identity) (auth.Claims, error) {
	m.started = append(m.started, identity)
	if m.startFn != nil {
		return m.startFn(ctx, w, identity)
	}
	return claimsFor(identity), nil
}

func (m *mockSessionIssuer) Refresh(ctx context.Context, w http.ResponseWriter, claims auth.Claims) (auth.Claims, error) {
	m.refreshed++
	if m.refreshFn != nil {
		return m.refreshFn(ctx, w, claims)
	}
	return claims, nil
}

func (m *mockSessionIssuer) Clear(w http.ResponseWriter) {
	m.cleared++
}

type mockListingService struct {
	createFn   func(ctx context.Context, ownerID string, input listing.Input) (*model.Listing, error)
	getFn      func(ctx context.Context, rawID string) (*model.Listing, error)
	listFn     func(ctx context.Context, q listing.ListQuery) ([]*model.Listing, error)
	listMineFn func(ctx context.Context, ownerID string) ([]*model.Listing, error)
	updateFn   func(ctx context.Context, callerID, rawID string, decode func(*listing.Input) error) error
	deleteFn   func(ctx context.Context, callerID, rawID string) error
}

func (m *mockListingService) Create(ctx context.Context, ownerID string, input listing.Input) (*model.Listing, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, input)
	}
	return nil, nil
}

func (m *mockListingService) Get(ctx context.Context, rawID string) (*model.Listing, error) {
	if m.getFn != nil {
		return m.getFn(ctx, rawID)
	}
	return nil, nil
}

func (m *mockListingService) List(ctx context.Context, q listing.ListQuery) ([]*model.Listing, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return []*model.Listing{}, nil
}

func (m *mockListingService) ListMine(ctx context.Context, ownerID string) ([]*model.Listing, error) {
	if m.listMineFn != nil {
		return m.listMineFn(ctx, ownerID)
	}
	return []*model.Listing{}, nil
}

func (m *mockListingService) Update(ctx context.Context, callerID, rawID string, decode func(*listing.Input) error) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, callerID, rawID, decode)
	}
	return nil
}

func (m *mockListingService) Delete(ctx context.Context, callerID, rawID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, callerID, rawID)
	}
	return nil
}

type mockUserService struct {
	getProfileFn    func(ctx context.Context, userID string) (*model.Account, error)
	updateProfileFn func(ctx context.Context, userID string, input user.ProfileInput) (*model.Account, error)
	emailExistsFn   func(ctx context.Context, email string) (bool, error)
}

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*model.Account, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, input user.ProfileInput) (*model.Account, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, input)
	}
	return nil, nil
}

func (m *mockUserService) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

// --- テストヘルパー ---

func claimsFor(identity model.Identity) auth.Claims {
	claims := auth.Claims{Email: identity.Email, Name: identity.Name, Picture: identity.Image, Synced: true}
	claims.Subject = identity.ID
	claims.ExpiresAt = jwt.NewNumericDate(testTime.Add(30 * 24 * time.Hour))
	return claims
}

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, userID string) *http.Request {
	claims := claimsFor(model.Identity{ID: userID, Email: userID + "@example.com", Name: "Test User"})
	return r.WithContext(middleware.ContextWithClaims(r.Context(), claims))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeBody はレスポンスボディをvにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}

// assertError はステータスコードと{"error": ...}のメッセージを検証する。
func assertError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantMessage string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d", w.Code, wantStatus)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, w, &body)
	if body.Error != wantMessage {
		t.Errorf("error = %q, want %q", body.Error, wantMessage)
	}
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
