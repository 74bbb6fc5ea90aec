package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/stampcard/internal/auth"
)

const (
	authFailureLimit  = 10
	authFailureWindow = 5 * time.Minute
)

// RequireRole authenticates the request with HTTP Basic credentials: the
// username is the operator's display name and the password is a role PIN.
// Failed attempts are counted per client IP. The operator must hold one of
// the wanted roles.
func RequireRole(keyring *auth.Keyring, limiter *RateLimiter, want ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "auth:" + RealIP(r)
			if limiter.Exceeded(key, authFailureLimit) {
				writeError(w, http.StatusTooManyRequests, "too many failed attempts")
				return
			}

			name, pin, ok := r.BasicAuth()
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				unauthorized(w)
				return
			}

			role, err := keyring.Authenticate(pin)
			if err != nil {
				limiter.Allow(key, authFailureLimit, authFailureWindow)
				unauthorized(w)
				return
			}
			if !allowsAny(role, want) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := auth.WithOperator(r.Context(), auth.Operator{Name: name, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func allowsAny(role auth.Role, want []auth.Role) bool {
	for _, w := range want {
		if role.Allows(w) {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="stampcard", charset="UTF-8"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
