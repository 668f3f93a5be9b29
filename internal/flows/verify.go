package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/cache"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/revocation"
	"golang.org/x/sync/singleflight"
)

// VerifyFailureKind classifies verification failures for root-level mapping.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureExpired
	VerifyFailureMalformed
	VerifyFailureRevoked
	VerifyFailureStore
)

// VerifyResult carries the verified claims or failure metadata.
type VerifyResult struct {
	Failure  VerifyFailureKind
	Err      error
	Claims   *jwt.Claims
	CacheHit bool
}

// VerifyLedger is the read side of the revocation store.
type VerifyLedger interface {
	Check(ctx context.Context, token string, expected revocation.State) (bool, error)
}

// VerifyDeps captures verification flow dependencies. Cache and Group are
// optional.
type VerifyDeps struct {
	Decode    func(string) (*jwt.Claims, error)
	IsExpired func(error) bool
	Cache     cache.Cache
	CacheKey  func(token string) string
	CacheTTL  func(*jwt.Claims) time.Duration
	Ledger    VerifyLedger
	Group     *singleflight.Group
	Warn      func(string, ...any)
}

// RunVerify decodes token, consults the cache and then the ledger. Any ledger
// failure rejects the token.
func RunVerify(ctx context.Context, token string, deps VerifyDeps) VerifyResult {
	claims, err := deps.Decode(token)
	if err != nil {
		if deps.IsExpired(err) {
			return VerifyResult{Failure: VerifyFailureExpired, Err: err}
		}
		return VerifyResult{Failure: VerifyFailureMalformed, Err: err}
	}

	var key string
	if deps.Cache != nil {
		key = deps.CacheKey(token)
		cached, ok, err := deps.Cache.Get(ctx, key)
		if err != nil && deps.Warn != nil {
			deps.Warn("sessionguard: verification cache read failed", "error", err)
		}
		if ok {
			return VerifyResult{Claims: cached, CacheHit: true}
		}
	}

	revoked, err := checkRevoked(ctx, token, deps)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureStore, Err: err, Claims: claims}
	}
	if revoked {
		return VerifyResult{Failure: VerifyFailureRevoked, Claims: claims}
	}

	if deps.Cache != nil {
		if ttl := deps.CacheTTL(claims); ttl > 0 {
			if err := deps.Cache.Set(ctx, key, claims, ttl); err != nil && deps.Warn != nil {
				deps.Warn("sessionguard: verification cache write failed", "error", err)
			}
		}
	}

	return VerifyResult{Claims: claims}
}

// checkRevoked collapses concurrent lookups of the same token into one ledger
// call. The shared call is detached from any single caller's cancellation and
// bounded by the ledger's own per-attempt timeout; each caller still stops
// waiting when its own context ends.
func checkRevoked(ctx context.Context, token string, deps VerifyDeps) (bool, error) {
	if deps.Group == nil {
		return deps.Ledger.Check(ctx, token, revocation.StateRevoked)
	}

	shared := context.WithoutCancel(ctx)
	ch := deps.Group.DoChan(token, func() (interface{}, error) {
		return deps.Ledger.Check(shared, token, revocation.StateRevoked)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
