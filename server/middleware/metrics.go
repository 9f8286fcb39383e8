package middleware

import (
	"net/http"

	"github.com/kbukum/runkit/observability"
)

// RequestMetrics counts requests by route and status. route maps a request
// to a low-cardinality label; nil uses the method alone.
func RequestMetrics(metrics *observability.Metrics, route func(*http.Request) string) Middleware {
	if route == nil {
		route = func(r *http.Request) string { return r.Method }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := record(w)
			next.ServeHTTP(rec, r)
			metrics.RecordRequest(r.Context(), route(r), rec.status)
		})
	}
}
