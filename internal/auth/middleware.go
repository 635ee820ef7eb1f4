package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"cryptflow/internal/response"
)

type Config struct {
	APIKey string
}

// APIKeyMiddleware validates API key authentication
func APIKeyMiddleware(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no API key configured (for development)
			if config.APIKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && keyMatches(token, config.APIKey) {
				next.ServeHTTP(w, r)
				return
			}

			if keyMatches(r.Header.Get("X-API-Key"), config.APIKey) {
				next.ServeHTTP(w, r)
				return
			}

			writeUnauthorized(w)
		})
	}
}

func keyMatches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writeUnauthorized(w http.ResponseWriter) {
	response.Error(
		"unauthorized",
		"Invalid or missing API key",
		"Provide API key via Authorization: Bearer <key> or X-API-Key: <key>",
	).Write(w, http.StatusUnauthorized)
}
