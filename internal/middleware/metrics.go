package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/estatehub/internal/metrics"
)

// NewMetricsMiddleware はHTTPリクエスト数と処理時間を記録するミドルウェアを返す。
// ラベルにはパスではなくchiのルートパターンを使い、カーディナリティを抑える。
func NewMetricsMiddleware(recorder metrics.Recorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			recorder.RecordHTTPRequest(r.Method, routePattern(r), rec.statusCode, time.Since(start))
		})
	}
}
