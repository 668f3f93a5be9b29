package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/rs/zerolog"
)

// writeEngineError maps engine errors onto a status and a fixed detail. The
// most specific sentinel is checked first; the error text itself is logged
// but never returned.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := http.StatusInternalServerError, "internal server error"

	switch {
	case errors.Is(err, sessionguard.ErrTooManyRequests):
		status, detail = http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, sessionguard.ErrInvalidCredentials):
		status, detail = http.StatusUnauthorized, "incorrect username or password"
	case errors.Is(err, sessionguard.ErrRefreshMismatch):
		status, detail = http.StatusUnauthorized, "incorrect refresh token"
	case errors.Is(err, sessionguard.ErrAlreadyRevoked):
		status, detail = http.StatusUnauthorized, "already revoked"
	case errors.Is(err, sessionguard.ErrRefreshRevoked):
		status, detail = http.StatusUnauthorized, "token has been revoked"
	case errors.Is(err, sessionguard.ErrUnauthorized):
		status, detail = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, sessionguard.ErrPermissionDenied):
		status, detail = http.StatusForbidden, "forbidden"
	case errors.Is(err, sessionguard.ErrUserProviderUnavailable),
		errors.Is(err, sessionguard.ErrRateLimiterUnavailable),
		errors.Is(err, sessionguard.ErrEngineNotReady):
		status, detail = http.StatusServiceUnavailable, "service unavailable"
	}

	log := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	middleware.WriteError(w, r, status, detail)
}
