package middleware

import (
	"net/http"

	"github.com/docker/go-units"
)

// DefaultMaxBodySize is used when a size string cannot be parsed.
const DefaultMaxBodySize = 10 * units.MiB

// BodySizeLimit restricts request bodies to maxSize, e.g. "10MB" or "512KB".
// Sizes are binary.
func BodySizeLimit(maxSize string) Middleware {
	size, err := units.RAMInBytes(maxSize)
	if err != nil || size <= 0 {
		size = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}
