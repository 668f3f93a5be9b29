package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
)

// RequireRoles allows only callers whose role is in roles. It must run after
// Guard; requests without claims get 401, others outside the set get 403.
func RequireRoles(roles ...jwt.Role) func(http.Handler) http.Handler {
	allowed := slices.Clone(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !slices.Contains(allowed, claims.Role) {
				WriteError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireFreshToken rejects tokens with less than minRemaining left before
// expiry, for operations that must not straddle an expiry. now may be nil.
func RequireFreshToken(minRemaining time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || claims.ExpiresAt == nil || claims.ExpiresAt.Sub(now()) < minRemaining {
				WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
