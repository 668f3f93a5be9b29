package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessionguard/jwt"
)

// Verifier authenticates an access token. *sessionguard.Engine and
// *remote.Client both satisfy it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*jwt.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	return c, ok && c != nil
}

// WithClaims stores c in ctx the way Guard does.
func WithClaims(ctx context.Context, c *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// Guard rejects requests without a valid bearer token with 401. The reason is
// never disclosed to the client.
func Guard(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := v.Verify(r.Context(), token)
			if err != nil {
				WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	value := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
