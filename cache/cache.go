// Package cache holds short-lived positive verification results so that hot
// tokens skip the revocation ledger. Entries are never the source of truth:
// they live at most MaxTTL and are dropped when the token is revoked.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
)

// MaxTTL bounds how long any backend keeps a verification result.
const MaxTTL = 10 * time.Second

// ErrUnavailable is returned by backends that could not reach their storage.
var ErrUnavailable = errors.New("verification cache unavailable")

// Cache stores decoded claims keyed by Key.
type Cache interface {
	Get(ctx context.Context, key string) (*jwt.Claims, bool, error)
	Set(ctx context.Context, key string, claims *jwt.Claims, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Key derives the cache key for token within scope. The token itself never
// appears in the key.
func Key(token, scope string) string {
	h := sha256.New()
	h.Write([]byte(token))
	h.Write([]byte{0})
	h.Write([]byte(scope))
	return hex.EncodeToString(h.Sum(nil))
}

// Keys returns Key(token, scope) for every scope.
func Keys(token string, scopes ...string) []string {
	keys := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		keys = append(keys, Key(token, scope))
	}
	return keys
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}
