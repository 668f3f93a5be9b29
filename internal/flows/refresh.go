package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/revocation"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRevoked
	RefreshFailureIssue
	RefreshFailureStore
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	UserID    string
	SessionID string
	Pair      jwt.Pair
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	// Decode must only accept refresh tokens.
	Decode    func(string) (*jwt.Claims, error)
	IssuePair func(subject string, role jwt.Role, capabilities []string) (jwt.Pair, error)
	Until     func(time.Time) time.Duration
	Ledger    Ledger
	// Atomic selects compare-and-delete rotation. When false the old entry is
	// checked, then deleted after the new pair is issued, which lets two
	// concurrent refreshes of one token both succeed.
	Atomic     bool
	Invalidate func(ctx context.Context, token string)
}

// RunRefresh rotates oldRefresh into a new pair. Identity comes only from the
// old refresh token.
func RunRefresh(ctx context.Context, oldRefresh string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Decode(oldRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	base := RefreshResult{UserID: claims.UserID, SessionID: claims.SessionID}

	var active bool
	if deps.Atomic {
		active, err = deps.Ledger.Consume(ctx, oldRefresh, revocation.StateActive)
	} else {
		active, err = deps.Ledger.Check(ctx, oldRefresh, revocation.StateActive)
	}
	if err != nil {
		base.Failure, base.Err = RefreshFailureStore, err
		return base
	}
	if !active {
		base.Failure = RefreshFailureRevoked
		return base
	}

	pair, err := deps.IssuePair(claims.UserID, claims.Role, claims.Subscriptions)
	if err != nil {
		base.Failure, base.Err = RefreshFailureIssue, err
		return base
	}

	if !deps.Atomic {
		if err := deps.Ledger.Delete(ctx, oldRefresh); err != nil {
			base.Failure, base.Err = RefreshFailureStore, err
			return base
		}
	}

	if err := deps.Ledger.Mark(ctx, pair.Refresh, revocation.StateActive, deps.Until(pair.RefreshExpiresAt)); err != nil {
		base.Failure, base.Err = RefreshFailureStore, err
		return base
	}

	if deps.Invalidate != nil {
		deps.Invalidate(ctx, oldRefresh)
	}

	base.SessionID = pair.SessionID
	base.Pair = pair
	return base
}
