package sessionguard

import (
	"errors"

	"github.com/MrEthical07/sessionguard/revocation"
	"github.com/MrEthical07/sessionguard/users"
)

var (
	// ErrUnauthorized is joined into every authentication failure, so callers
	// can map all of them to 401 with a single errors.Is.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenMalformed covers bad signatures, bad structure and missing claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for an access token marked revoked by logout.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrStoreUnavailable is returned when the revocation ledger cannot be
	// reached. Authentication paths fail closed on it.
	ErrStoreUnavailable = revocation.ErrStoreUnavailable
	// ErrTooManyRequests is returned when a client exceeds its rate limit.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrRateLimiterUnavailable is returned when the limiter backend cannot be
	// reached and FailOpen is off.
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrInvalidCredentials is returned for an unknown login or a wrong password.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrAccountDisabled is returned when the credentials match an inactive user.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrRefreshRevoked is returned when a refresh token is unknown or already rotated.
	ErrRefreshRevoked = errors.New("refresh token revoked or unknown")
	// ErrRefreshMismatch is returned by Logout when the tokens are not one pair.
	ErrRefreshMismatch = errors.New("incorrect refresh token")
	// ErrAlreadyRevoked is returned by Logout when the session is already closed.
	ErrAlreadyRevoked = errors.New("already revoked")
	// ErrPermissionDenied is returned by role checks.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrUserNotFound is returned by user providers for an unknown login.
	ErrUserNotFound = users.ErrNotFound
	// ErrUserProviderUnavailable is returned when the credential backend fails.
	ErrUserProviderUnavailable = errors.New("user provider unavailable")
)

func unauthorized(err error) error {
	return errors.Join(ErrUnauthorized, err)
}
