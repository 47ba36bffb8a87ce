package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// HeaderAPIKey carries the shared key. "Authorization: Bearer <key>" works too.
const HeaderAPIKey = "X-API-Key"

// RequireKey rejects requests that do not present key. An empty key
// disables the check.
func RequireKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAPIKey)
			if got == "" {
				got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
