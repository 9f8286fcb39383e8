package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/runkit/errors"
)

// reject answers with the error envelope the recipe API uses.
func reject(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	_ = json.NewEncoder(w).Encode(err.ToResponse())
}

// skipped reports whether path starts with one of the prefixes.
func skipped(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
