package revocation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// State is the marker stored against a token.
type State string

const (
	// StateActive marks a refresh token that may still be rotated.
	StateActive State = "active"
	// StateRevoked marks an access token that must be rejected before its expiry.
	StateRevoked State = "revoked"
)

func (s State) valid() bool {
	return s == StateActive || s == StateRevoked
}

var (
	// ErrStoreUnavailable is returned once the retry budget of an operation is spent.
	ErrStoreUnavailable = errors.New("revocation store unavailable")
	// ErrInvalidState is returned for markers other than StateActive and StateRevoked.
	ErrInvalidState = errors.New("invalid revocation state")
)

// consumeScript deletes KEYS[1] only when it still holds ARGV[1].
const consumeScript = `
local current = redis.call("GET", KEYS[1])
if current == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`

var consumeLua = redis.NewScript(consumeScript)

// Retry bounds how hard each ledger operation tries before giving up.
type Retry struct {
	// Attempts is the total number of tries, including the first.
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OpTimeout caps a single attempt. Zero leaves the caller's deadline alone.
	OpTimeout time.Duration
}

// DefaultRetry matches the ledger's historical policy: three attempts with
// exponential backoff between one and five seconds.
func DefaultRetry() Retry {
	return Retry{
		Attempts:        3,
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
		OpTimeout:       time.Second,
	}
}

// Config configures a Store.
type Config struct {
	Prefix string
	Retry  Retry
	// OnRetry, when set, is called before every backoff sleep.
	OnRetry func(op string, err error, wait time.Duration)
}

// Store is the Redis-backed revocation ledger. Keys are Prefix + ":" + the
// full token string; values are State markers that expire with the token.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	retry   Retry
	onRetry func(op string, err error, wait time.Duration)
}

// NewStore creates a ledger backed by client.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "rv"
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 1
	}
	return &Store{
		redis:   client,
		prefix:  cfg.Prefix,
		retry:   cfg.Retry,
		onRetry: cfg.OnRetry,
	}
}

func (s *Store) key(token string) string {
	return s.prefix + ":" + token
}

// Mark upserts the marker for token with the given TTL. A non-positive TTL is
// a no-op because the token can no longer be presented.
//
//	Performance: 1 Redis SET.
func (s *Store) Mark(ctx context.Context, token string, state State, ttl time.Duration) error {
	if !state.valid() {
		return ErrInvalidState
	}
	if ttl <= 0 {
		return nil
	}

	key := s.key(token)
	return s.do(ctx, "mark", func(ctx context.Context) error {
		return s.redis.Set(ctx, key, string(state), ttl).Err()
	})
}

// Check reports whether token currently holds the expected marker. A missing
// key is (false, nil).
//
//	Performance: 1 Redis GET.
func (s *Store) Check(ctx context.Context, token string, expected State) (bool, error) {
	if !expected.valid() {
		return false, ErrInvalidState
	}

	key := s.key(token)
	var matched bool
	err := s.do(ctx, "check", func(ctx context.Context) error {
		value, err := s.redis.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				matched = false
				return nil
			}
			return err
		}
		matched = value == string(expected)
		return nil
	})
	return matched, err
}

// Delete removes any marker held by token. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, token string) error {
	key := s.key(token)
	return s.do(ctx, "delete", func(ctx context.Context) error {
		return s.redis.Del(ctx, key).Err()
	})
}

// Consume atomically removes the marker for token if and only if it holds
// expected, and reports whether it did. Of any number of concurrent callers
// at most one observes true.
//
// A retried attempt whose first reply was lost reports false; callers treat
// that as already consumed, which errs on the side of rejecting.
//
//	Performance: 1 EVALSHA.
func (s *Store) Consume(ctx context.Context, token string, expected State) (bool, error) {
	if !expected.valid() {
		return false, ErrInvalidState
	}

	key := s.key(token)
	var consumed bool
	err := s.do(ctx, "consume", func(ctx context.Context) error {
		res, err := consumeLua.Run(ctx, s.redis, []string{key}, string(expected)).Int64()
		if err != nil {
			return err
		}
		consumed = res == 1
		return nil
	})
	return consumed, err
}

// Ping measures one round trip to the ledger without retrying.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) do(ctx context.Context, op string, fn func(context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retry.InitialInterval
	policy.MaxInterval = s.retry.MaxInterval
	policy.MaxElapsedTime = 0
	policy.Reset()

	var b backoff.BackOff = backoff.WithMaxRetries(policy, uint64(s.retry.Attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := func() error {
		attemptCtx, cancel := s.attemptContext(ctx)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if s.onRetry != nil {
		notify = func(err error, wait time.Duration) { s.onRetry(op, err, wait) }
	}

	if err := backoff.RetryNotify(attempt, b, notify); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	return nil
}

func (s *Store) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.retry.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.retry.OpTimeout)
}

// transient reports whether err is worth another attempt. Server replies are
// final except for the few that signal a failover or a loading replica.
func transient(err error) bool {
	if errors.Is(err, redis.ErrClosed) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		msg := redisErr.Error()
		for _, prefix := range []string{"LOADING", "READONLY", "MASTERDOWN", "TRYAGAIN", "CLUSTERDOWN"} {
			if strings.HasPrefix(msg, prefix) {
				return true
			}
		}
		return false
	}

	return true
}
