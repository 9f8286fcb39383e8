package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/kbukum/runkit/logger"
)

var quietPaths = []string{"/health", "/version"}

// RequestLogger logs every request with method, path, status, duration and
// response size. Streamed responses are marked. Health and version checks
// are skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(quietPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			fields := logger.Fields(
				"method", r.Method,
				"path", r.URL.Path,
				logger.FieldStatus, rec.status,
				logger.FieldDuration, time.Since(start).Milliseconds(),
				"bytes", rec.bytes,
			)
			if rec.streamed() {
				fields["stream"] = true
			}
			logByStatus(log.WithContext(r.Context()), fields, rec.status)
		})
	}
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("request completed", fields)
	case status >= 400:
		log.Warn("request completed", fields)
	default:
		log.Debug("request completed", fields)
	}
}
