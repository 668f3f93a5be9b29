package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/revocation"
	"github.com/MrEthical07/sessionguard/users"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureUserLookup
	LoginFailureInvalidCredentials
	LoginFailureInactive
	LoginFailureHash
	LoginFailureIssue
	LoginFailureStore
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	UserID  string
	Role    jwt.Role
	Pair    jwt.Pair
	Rehash  bool
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Users          users.Provider
	VerifyPassword func(password, encoded string) (bool, error)
	BurnPassword   func(password string)
	NeedsRehash    func(encoded string) (bool, error)
	IssuePair      func(subject string, role jwt.Role, capabilities []string) (jwt.Pair, error)
	Until          func(time.Time) time.Duration
	Ledger         Ledger
}

// RunLogin checks credentials and opens a session for the matching user.
// Unknown users and wrong passwords are indistinguishable to the caller.
func RunLogin(ctx context.Context, login, password string, deps LoginDeps) LoginResult {
	user, err := deps.Users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			if deps.BurnPassword != nil {
				deps.BurnPassword(password)
			}
			return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err}
		}
		return LoginResult{Failure: LoginFailureUserLookup, Err: err}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureHash, Err: err, UserID: user.UserID}
	}
	if !ok {
		return LoginResult{Failure: LoginFailureInvalidCredentials, UserID: user.UserID}
	}
	if !user.Active {
		return LoginResult{Failure: LoginFailureInactive, UserID: user.UserID}
	}

	result := RunIssueSession(ctx, user.UserID, user.Role, user.Subscriptions, deps)
	if result.Failure == LoginFailureNone && deps.NeedsRehash != nil {
		result.Rehash, _ = deps.NeedsRehash(user.PasswordHash)
	}
	return result
}

// RunIssueSession mints a pair for an already authenticated subject and
// records the refresh token as active.
func RunIssueSession(ctx context.Context, subject string, role jwt.Role, capabilities []string, deps LoginDeps) LoginResult {
	pair, err := deps.IssuePair(subject, role, capabilities)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, UserID: subject, Role: role}
	}

	if err := deps.Ledger.Mark(ctx, pair.Refresh, revocation.StateActive, deps.Until(pair.RefreshExpiresAt)); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, UserID: subject, Role: role}
	}

	return LoginResult{UserID: subject, Role: role, Pair: pair}
}
