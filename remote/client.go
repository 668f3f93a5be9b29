// Package remote verifies access tokens by asking the auth service's
// /validate endpoint, for services that do not hold the signing secret.
//
// Results are cached for at most cache.MaxTTL under the caller's scope. Every
// failure, including an unreachable auth service, rejects the token.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/cache"
	"github.com/MrEthical07/sessionguard/jwt"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout = 500 * time.Millisecond
	MaxTimeout     = 10 * time.Second

	headerRequestID = "X-Request-Id"
	maxBodyBytes    = 64 << 10
)

var (
	// ErrRejected is returned when the auth service refuses the token.
	ErrRejected = errors.New("token rejected by auth service")
	// ErrUnavailable is returned when no verdict could be obtained.
	ErrUnavailable = errors.New("auth service unavailable")
)

type Config struct {
	// BaseURL is the auth service root; /validate is appended.
	BaseURL string
	// Timeout bounds each call, default DefaultTimeout, at most MaxTimeout.
	Timeout time.Duration

	// Cache is optional. Scope names this service's entries so the auth
	// service can invalidate them on logout.
	Cache    cache.Cache
	Scope    string
	CacheTTL time.Duration

	HTTPClient *http.Client
	Logger     zerolog.Logger
	Now        func() time.Time
}

type Client struct {
	endpoint string
	timeout  time.Duration
	cache    cache.Cache
	scope    string
	cacheTTL time.Duration
	http     *http.Client
	log      zerolog.Logger
	now      func() time.Time
	flights  singleflight.Group
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("remote: BaseURL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Timeout > MaxTimeout {
		return nil, fmt.Errorf("remote: Timeout must be <= %s", MaxTimeout)
	}
	if cfg.Cache != nil {
		if strings.TrimSpace(cfg.Scope) == "" {
			return nil, errors.New("remote: Scope is required when caching")
		}
		if cfg.CacheTTL <= 0 || cfg.CacheTTL > cache.MaxTTL {
			return nil, fmt.Errorf("remote: CacheTTL must be in (0, %s]", cache.MaxTTL)
		}
	}
	if cfg.HTTPClient == nil {
		// Per-call deadlines come from the request context.
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Client{
		endpoint: base + "/validate",
		timeout:  cfg.Timeout,
		cache:    cfg.Cache,
		scope:    cfg.Scope,
		cacheTTL: cfg.CacheTTL,
		http:     cfg.HTTPClient,
		log:      cfg.Logger.With().Str("component", "remote_verifier").Logger(),
		now:      cfg.Now,
	}, nil
}

// Verify returns the claims the auth service reports for token. It satisfies
// middleware.Verifier.
func (c *Client) Verify(ctx context.Context, token string) (*jwt.Claims, error) {
	if token == "" {
		return nil, ErrRejected
	}

	var key string
	if c.cache != nil {
		key = cache.Key(token, c.scope)
		claims, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Warn().Err(err).Msg("verification cache read failed")
		} else if ok && c.fresh(claims) {
			return claims, nil
		}
	}

	// Identical concurrent lookups share one call; the token is only used as
	// an in-process map key. The call runs under the client timeout rather
	// than the first caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(token, func() (any, error) {
		return c.validate(shared, token)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
	if res.Err != nil {
		return nil, res.Err
	}
	claims := res.Val.(*jwt.Claims)

	if c.cache != nil {
		ttl := min(c.cacheTTL, claims.ExpiresAt.Sub(c.now()))
		if ttl > 0 {
			if err := c.cache.Set(ctx, key, claims, ttl); err != nil {
				c.log.Warn().Err(err).Msg("verification cache write failed")
			}
		}
	}
	return cloneClaims(claims), nil
}

func (c *Client) validate(ctx context.Context, token string) (*jwt.Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := sessionguard.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(headerRequestID, id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("validate request failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, ErrRejected
	default:
		c.log.Warn().Int("status", resp.StatusCode).Msg("validate returned unexpected status")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload sessionguard.Payload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrUnavailable, err)
	}
	if payload.UserID == "" || !payload.Role.Valid() || payload.Exp == 0 {
		return nil, fmt.Errorf("%w: incomplete payload", ErrUnavailable)
	}

	claims := &jwt.Claims{
		UserID:        payload.UserID,
		Role:          payload.Role,
		Subscriptions: payload.Subscriptions,
		TokenType:     jwt.TokenAccess,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Unix(payload.Exp, 0)),
		},
	}
	if !c.fresh(claims) {
		return nil, ErrRejected
	}
	return claims, nil
}

func (c *Client) fresh(claims *jwt.Claims) bool {
	return claims != nil && claims.ExpiresAt != nil && claims.ExpiresAt.After(c.now())
}

func cloneClaims(c *jwt.Claims) *jwt.Claims {
	out := *c
	out.Subscriptions = append([]string(nil), c.Subscriptions...)
	return &out
}
