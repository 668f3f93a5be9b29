package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/revocation"
)

// Ledger is the subset of the revocation store used by the session flows.
type Ledger interface {
	Mark(ctx context.Context, token string, state revocation.State, ttl time.Duration) error
	Check(ctx context.Context, token string, expected revocation.State) (bool, error)
	Delete(ctx context.Context, token string) error
	Consume(ctx context.Context, token string, expected revocation.State) (bool, error)
}

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Login   LoginDeps
	Verify  VerifyDeps
	Refresh RefreshDeps
	Logout  LogoutDeps
}
