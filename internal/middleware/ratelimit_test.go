package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/estatehub/internal/auth"
)

// newRequestAs はuserIDのセッションを持つリクエストを生成する。userIDが空なら匿名。
func newRequestAs(method, target, userID, remoteAddr string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if userID != "" {
		claims := auth.Claims{Email: userID + "@example.com"}
		claims.Subject = userID
		req = req.WithContext(ContextWithClaims(req.Context(), claims))
	}
	return req
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		AuthRate:        0.1,
		AuthBurst:       1,
		CleanupInterval: time.Minute,
	}
}

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.GeneralBurst = 5
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	calls := 0
	handler := rl.GeneralMiddleware()(okHandler(&calls))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestAs(http.MethodGet, "/properties", "user-1", ""))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
	if calls != 5 {
		t.Errorf("handler call count = %d, want 5", calls)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	calls := 0
	handler := rl.GeneralMiddleware()(okHandler(&calls))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, newRequestAs(http.MethodGet, "/properties", "user-1", ""))
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", last.Code, http.StatusTooManyRequests)
	}
	if calls != 2 {
		t.Errorf("handler call count = %d, want 2", calls)
	}
	if got := last.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if ct := last.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if msg := decodeErrorBody(t, last); msg != "Too many requests" {
		t.Errorf("error = %q, want Too many requests", msg)
	}
}

func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	calls := 0
	handler := rl.GeneralMiddleware()(okHandler(&calls))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), newRequestAs(http.MethodGet, "/properties", "user-1", ""))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestAs(http.MethodGet, "/properties", "user-2", ""))
	if w.Code != http.StatusOK {
		t.Errorf("user-2 status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_AnonymousKeyedByIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	calls := 0
	handler := rl.GeneralMiddleware()(okHandler(&calls))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), newRequestAs(http.MethodGet, "/properties", "", "203.0.113.5:5000"))
	}
	if calls != 2 {
		t.Errorf("calls from one IP = %d, want 2", calls)
	}

	// 同じIPでも別ポートは同一クライアント
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestAs(http.MethodGet, "/properties", "", "203.0.113.5:6000"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestAs(http.MethodGet, "/properties", "", "203.0.113.6:5000"))
	if w.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	calls := 0
	general := rl.GeneralMiddleware()(okHandler(&calls))
	authLimited := rl.AuthMiddleware()(okHandler(&calls))

	w := httptest.NewRecorder()
	authLimited.ServeHTTP(w, newRequestAs(http.MethodPost, "/auth/login", "", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("first login status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	authLimited.ServeHTTP(w, newRequestAs(http.MethodPost, "/auth/login", "", ""))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second login status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want 10", got)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, newRequestAs(http.MethodGet, "/properties", "", ""))
	if w.Code != http.StatusOK {
		t.Errorf("general status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.AuthLimiterCount() != 1 {
		t.Errorf("AuthLimiterCount() = %d, want 1", rl.AuthLimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return base }

	calls := 0
	rl.GeneralMiddleware()(okHandler(&calls)).
		ServeHTTP(httptest.NewRecorder(), newRequestAs(http.MethodGet, "/properties", "user-1", ""))
	rl.AuthMiddleware()(okHandler(&calls)).
		ServeHTTP(httptest.NewRecorder(), newRequestAs(http.MethodPost, "/auth/login", "", ""))

	rl.now = func() time.Time { return base.Add(time.Minute) }
	rl.cleanup()
	if rl.GeneralLimiterCount() != 1 || rl.AuthLimiterCount() != 1 {
		t.Fatal("entries within ttl should be kept")
	}

	rl.now = func() time.Time { return base.Add(3 * time.Minute) }
	rl.cleanup()
	if rl.GeneralLimiterCount() != 0 || rl.AuthLimiterCount() != 0 {
		t.Errorf("counts after cleanup = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.AuthLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestRateLimiterPerMinute(t *testing.T) {
	cfg := RateLimiterPerMinute(60, 0)
	if cfg.GeneralRate != 1 || cfg.GeneralBurst != 60 {
		t.Errorf("general = %v/%d, want 1/60", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AuthBurst != 10 {
		t.Errorf("AuthBurst = %d, want default 10", cfg.AuthBurst)
	}

	def := DefaultRateLimiterConfig()
	if def.GeneralBurst != 120 || def.AuthBurst != 10 || def.CleanupInterval != 5*time.Minute {
		t.Errorf("DefaultRateLimiterConfig() = %+v", def)
	}
}
