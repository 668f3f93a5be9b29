package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/MrEthical07/sessionguard/remote"
)

// Guards the public API surface consumers compile against.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = sessionguard.New

	var _ *sessionguard.Engine
	var _ sessionguard.Config
	var _ sessionguard.TokenPair
	var _ sessionguard.LoginResult
	var _ sessionguard.Payload
	var _ sessionguard.RateDecision
	var _ sessionguard.UserProvider
	var _ sessionguard.AuditSink

	var _ error = sessionguard.ErrUnauthorized
	var _ error = sessionguard.ErrInvalidCredentials
	var _ error = sessionguard.ErrTokenExpired
	var _ error = sessionguard.ErrTokenMalformed
	var _ error = sessionguard.ErrTokenRevoked
	var _ error = sessionguard.ErrRefreshRevoked
	var _ error = sessionguard.ErrRefreshMismatch
	var _ error = sessionguard.ErrAlreadyRevoked
	var _ error = sessionguard.ErrStoreUnavailable
	var _ error = sessionguard.ErrTooManyRequests

	var _ middleware.Verifier = (*sessionguard.Engine)(nil)
	var _ middleware.Verifier = (*remote.Client)(nil)
	var _ func(middleware.Verifier) func(http.Handler) http.Handler = middleware.Guard

	var _ func(*sessionguard.Engine, context.Context, string, string) (sessionguard.LoginResult, error) = (*sessionguard.Engine).Login
	var _ func(*sessionguard.Engine, context.Context, string) (sessionguard.TokenPair, error) = (*sessionguard.Engine).Refresh
	var _ func(*sessionguard.Engine, context.Context, string, string) error = (*sessionguard.Engine).Logout
	var _ func(*sessionguard.Engine, context.Context, string) (*sessionguard.Claims, error) = (*sessionguard.Engine).Verify
	var _ func(*sessionguard.Engine, context.Context, string) (sessionguard.Payload, error) = (*sessionguard.Engine).Validate
	var _ func(*sessionguard.Engine, context.Context) (time.Duration, error) = (*sessionguard.Engine).Ping
}
