package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

// mockRecorder はmetrics.Recorderのモック。
type mockRecorder struct {
	requests []recordedRequest
}

func (m *mockRecorder) RecordHTTPRequest(method, route string, statusCode int, _ time.Duration) {
	m.requests = append(m.requests, recordedRequest{method: method, route: route, status: statusCode})
}
func (m *mockRecorder) RecordAuthEvent(string, string)        {}
func (m *mockRecorder) RecordListingOperation(string, string) {}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	rec := &mockRecorder{}
	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(rec))
	r.Delete("/properties/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/properties/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if len(rec.requests) != 2 {
		t.Fatalf("recorded %d requests, want 2", len(rec.requests))
	}
	want := recordedRequest{method: http.MethodDelete, route: "/properties/{id}", status: http.StatusForbidden}
	if rec.requests[0] != want {
		t.Errorf("first = %+v, want %+v", rec.requests[0], want)
	}
	if rec.requests[1].status != http.StatusNotFound {
		t.Errorf("unmatched status = %d, want 404", rec.requests[1].status)
	}
}

func TestMetricsMiddleware_NilRecorder(t *testing.T) {
	handler := NewMetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
