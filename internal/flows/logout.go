package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/revocation"
)

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecodeAccess
	LogoutFailureDecodeRefresh
	LogoutFailureMismatch
	LogoutFailureAlreadyRevoked
	LogoutFailureStore
)

// LogoutResult reports the outcome of a logout.
type LogoutResult struct {
	Failure   LogoutFailureKind
	Err       error
	UserID    string
	SessionID string
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	DecodeAccess  func(string) (*jwt.Claims, error)
	DecodeRefresh func(string) (*jwt.Claims, error)
	Remaining     func(*jwt.Claims) time.Duration
	Ledger        Ledger
	Invalidate    func(ctx context.Context, token string)
}

// RunLogout revokes access for its remaining lifetime and removes the refresh
// entry. Both tokens must belong to the same pair.
func RunLogout(ctx context.Context, access, refresh string, deps LogoutDeps) LogoutResult {
	accessClaims, err := deps.DecodeAccess(access)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecodeAccess, Err: err}
	}
	base := LogoutResult{UserID: accessClaims.UserID, SessionID: accessClaims.SessionID}

	refreshClaims, err := deps.DecodeRefresh(refresh)
	if err != nil {
		base.Failure, base.Err = LogoutFailureDecodeRefresh, err
		return base
	}
	if !jwt.SamePair(accessClaims, refreshClaims) {
		base.Failure = LogoutFailureMismatch
		return base
	}

	active, err := deps.Ledger.Check(ctx, refresh, revocation.StateActive)
	if err != nil {
		base.Failure, base.Err = LogoutFailureStore, err
		return base
	}
	if !active {
		base.Failure = LogoutFailureAlreadyRevoked
		return base
	}

	if err := deps.Ledger.Mark(ctx, access, revocation.StateRevoked, deps.Remaining(accessClaims)); err != nil {
		base.Failure, base.Err = LogoutFailureStore, err
		return base
	}
	if deps.Invalidate != nil {
		deps.Invalidate(ctx, access)
	}

	consumed, err := deps.Ledger.Consume(ctx, refresh, revocation.StateActive)
	if err != nil {
		base.Failure, base.Err = LogoutFailureStore, err
		return base
	}
	if !consumed {
		base.Failure = LogoutFailureAlreadyRevoked
		return base
	}

	return base
}
