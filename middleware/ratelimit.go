package middleware

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/sessionguard"
	"github.com/rs/zerolog"
)

// Limiter counts one request for a client. *sessionguard.Engine satisfies it.
type Limiter interface {
	Allow(ctx context.Context, clientID string) (sessionguard.RateDecision, error)
}

// ClientID returns the first X-Forwarded-For entry when trustForwarded is set
// and the header is present, else the host part of the peer address.
func ClientID(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects clients over their window with 429 and a Retry-After
// header. A limiter outage yields 503; fail-open behaviour is decided by the
// limiter itself.
func RateLimit(l Limiter, trustForwarded bool, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientID(r, trustForwarded)
			ctx := sessionguard.WithClientIP(r.Context(), client)

			decision, err := l.Allow(ctx, client)
			switch {
			case err == nil:
			case errors.Is(err, sessionguard.ErrTooManyRequests):
				if decision.RetryAfter > 0 {
					secs := int(math.Ceil(decision.RetryAfter.Seconds()))
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				WriteError(w, r, http.StatusTooManyRequests, "too many requests")
				return
			default:
				log.Error().Err(err).Msg("rate limiter unavailable")
				WriteError(w, r, http.StatusServiceUnavailable, "service unavailable")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
