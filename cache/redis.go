package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared by the replicas of one service. It is used by
// services that delegate validation over HTTP and would otherwise call the
// validating service on every request.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis returns a Redis-backed cache that namespaces keys under prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "vc"
	}
	return &Redis{redis: client, prefix: prefix}
}

func (r *Redis) key(key string) string {
	return r.prefix + ":" + key
}

// Get returns the cached claims. A missing key is a miss, not an error.
//
//	Performance: 1 Redis GET.
func (r *Redis) Get(ctx context.Context, key string) (*jwt.Claims, bool, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var claims jwt.Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		// A corrupt entry is treated as a miss and removed.
		_ = r.redis.Del(ctx, r.key(key)).Err()
		return nil, false, nil
	}
	return &claims, true, nil
}

// Set stores claims as JSON for at most MaxTTL.
func (r *Redis) Set(ctx context.Context, key string, claims *jwt.Claims, ttl time.Duration) error {
	ttl = clampTTL(ttl)
	if ttl <= 0 || claims == nil {
		return nil
	}

	data, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes keys. Each key gets its own DEL so that a cluster client can
// route them to different slots.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, r.key(key))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
