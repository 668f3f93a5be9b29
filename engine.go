package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/cache"
	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/MrEthical07/sessionguard/internal/flows"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/revocation"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Engine issues, verifies, rotates and revokes session tokens. It is built
// once by Builder and is safe for concurrent use.
type Engine struct {
	config      Config
	redis       redis.UniversalClient
	jwt         *jwt.Manager
	ledger      *revocation.Store
	cache       cache.Cache
	cacheScopes []string
	limiter     *rate.Limiter
	hasher      *password.Hasher
	users       UserProvider
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	log         zerolog.Logger
	tracer      trace.Tracer
	flights     singleflight.Group
	deps        flows.Deps
}

func (e *Engine) buildFlowDeps() flows.Deps {
	decodeAccess := func(tok string) (*jwt.Claims, error) { return e.jwt.DecodeAs(tok, jwt.TokenAccess) }
	decodeRefresh := func(tok string) (*jwt.Claims, error) { return e.jwt.DecodeAs(tok, jwt.TokenRefresh) }

	deps := flows.Deps{
		Login: flows.LoginDeps{
			Users:          e.users,
			VerifyPassword: e.hasher.Verify,
			BurnPassword:   e.hasher.Burn,
			NeedsRehash:    e.hasher.NeedsRehash,
			IssuePair:      e.jwt.IssuePair,
			Until:          e.jwt.Until,
			Ledger:         e.ledger,
		},
		Verify: flows.VerifyDeps{
			Decode:    decodeAccess,
			IsExpired: func(err error) bool { return errors.Is(err, jwt.ErrExpired) },
			Ledger:    e.ledger,
			Group:     &e.flights,
			Warn:      e.warn,
		},
		Refresh: flows.RefreshDeps{
			Decode:     decodeRefresh,
			IssuePair:  e.jwt.IssuePair,
			Until:      e.jwt.Until,
			Ledger:     e.ledger,
			Atomic:     e.config.Revocation.AtomicRotation,
			Invalidate: e.invalidate,
		},
		Logout: flows.LogoutDeps{
			DecodeAccess:  decodeAccess,
			DecodeRefresh: decodeRefresh,
			Remaining:     e.jwt.Remaining,
			Ledger:        e.ledger,
			Invalidate:    e.invalidate,
		},
	}

	if e.cache != nil {
		deps.Verify.Cache = e.cache
		deps.Verify.CacheKey = func(tok string) string { return cache.Key(tok, e.config.Cache.Scope) }
		deps.Verify.CacheTTL = func(c *jwt.Claims) time.Duration {
			return min(e.config.Cache.TTL, e.jwt.Remaining(c))
		}
	}
	return deps
}

// Close flushes the audit dispatcher. The Redis clients belong to the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) onStoreRetry(op string, err error, wait time.Duration) {
	e.metricInc(MetricStoreRetry)
	e.log.Warn().Err(err).Str("op", op).Dur("wait", wait).Msg("revocation store retry")
}

func (e *Engine) warn(msg string, kv ...any) {
	e.log.Warn().Fields(kv).Msg(msg)
}

func (e *Engine) storeUnavailable(ctx context.Context, op string, err error) error {
	e.metricInc(MetricStoreUnavailable)
	e.log.Error().Err(err).Str("op", op).Msg("revocation store unavailable")
	e.emitAudit(ctx, auditEventStoreUnavailable, false, "", "", ErrStoreUnavailable, reason(op))
	return unauthorized(ErrStoreUnavailable)
}

// invalidate drops cached verification results for token in every scope.
func (e *Engine) invalidate(ctx context.Context, token string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Delete(ctx, cache.Keys(token, e.cacheScopes...)...); err != nil {
		e.log.Warn().Err(err).Msg("verification cache invalidation failed")
	}
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return e.tracer.Start(ctx, "sessionguard."+name, trace.WithSpanKind(trace.SpanKindInternal))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, string(auditErrorCode(err)))
	}
	span.End()
}

// tokenError maps a codec failure onto the public sentinels.
func tokenError(err error) error {
	if errors.Is(err, jwt.ErrExpired) {
		return unauthorized(ErrTokenExpired)
	}
	return unauthorized(ErrTokenMalformed)
}

// Login checks username and password against the user provider and opens a
// session. Unknown users and wrong passwords both yield ErrInvalidCredentials.
//
//	Performance: one provider lookup, one password hash, 1 Redis SET.
func (e *Engine) Login(ctx context.Context, username, password string) (result LoginResult, err error) {
	if e == nil || e.users == nil {
		return LoginResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()

	res := flows.RunLogin(ctx, username, password, e.deps.Login)
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", ErrInvalidCredentials, nil)
		return LoginResult{}, unauthorized(ErrInvalidCredentials)
	case flows.LoginFailureInactive:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", ErrAccountDisabled, nil)
		return LoginResult{}, errors.Join(ErrUnauthorized, ErrInvalidCredentials, ErrAccountDisabled)
	case flows.LoginFailureHash:
		e.metricInc(MetricLoginFailure)
		e.log.Error().Err(res.Err).Str("user_id", res.UserID).Msg("stored password hash rejected")
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", ErrInvalidCredentials, reason("stored_hash"))
		return LoginResult{}, unauthorized(ErrInvalidCredentials)
	case flows.LoginFailureUserLookup:
		e.metricInc(MetricLoginFailure)
		e.log.Error().Err(res.Err).Msg("user lookup failed")
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrUserProviderUnavailable, nil)
		return LoginResult{}, fmt.Errorf("%w: %v", ErrUserProviderUnavailable, res.Err)
	case flows.LoginFailureStore:
		e.metricInc(MetricLoginFailure)
		return LoginResult{}, e.storeUnavailable(ctx, "login", res.Err)
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", res.Err, reason("issue"))
		return LoginResult{}, fmt.Errorf("issue session: %w", res.Err)
	}

	if res.Rehash {
		e.log.Info().Str("user_id", res.UserID).Msg("password hash uses outdated parameters")
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.UserID, res.Pair.SessionID, nil, nil)
	span.SetAttributes(attribute.String("session.id", res.Pair.SessionID))

	return LoginResult{
		TokenPair:   newTokenPair(res.Pair),
		UserID:      res.UserID,
		Role:        res.Role,
		NeedsRehash: res.Rehash,
	}, nil
}

// LoginSubject opens a session for a subject the caller has already
// authenticated by other means.
func (e *Engine) LoginSubject(ctx context.Context, subject string, role Role, subscriptions []string) (pair TokenPair, err error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "LoginSubject")
	defer func() { endSpan(span, err) }()

	res := flows.RunIssueSession(ctx, subject, role, subscriptions, e.deps.Login)
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureStore:
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, e.storeUnavailable(ctx, "login", res.Err)
	default:
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, fmt.Errorf("issue session: %w", res.Err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, subject, res.Pair.SessionID, nil, reason("subject"))
	return newTokenPair(res.Pair), nil
}

// Refresh rotates refreshToken into a new pair. The old token is consumed;
// presenting it again yields ErrRefreshRevoked.
//
//	Performance: 1 EVALSHA + 1 Redis SET (atomic rotation).
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	if e == nil || e.jwt == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	defer func() { endSpan(span, err) }()

	res := flows.RunRefresh(ctx, refreshToken, e.deps.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureDecode:
		e.metricInc(MetricRefreshFailure)
		err := tokenError(res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, reason("decode"))
		return TokenPair{}, err
	case flows.RefreshFailureRevoked:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshRaceLost)
		e.emitAudit(ctx, auditEventRefreshReused, false, res.UserID, res.SessionID, ErrRefreshRevoked, nil)
		return TokenPair{}, unauthorized(ErrRefreshRevoked)
	case flows.RefreshFailureStore:
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, e.storeUnavailable(ctx, "refresh", res.Err)
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.SessionID, res.Err, reason("issue"))
		return TokenPair{}, fmt.Errorf("issue session: %w", res.Err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.SessionID, nil, nil)
	return newTokenPair(res.Pair), nil
}

// Logout revokes accessToken for the rest of its lifetime and consumes
// refreshToken. Both must come from the same pair.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) (err error) {
	if e == nil || e.jwt == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	res := flows.RunLogout(ctx, accessToken, refreshToken, e.deps.Logout)
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogoutSuccess)
		e.emitAudit(ctx, auditEventLogoutSuccess, true, res.UserID, res.SessionID, nil, nil)
		return nil
	case flows.LogoutFailureDecodeAccess, flows.LogoutFailureDecodeRefresh:
		err = tokenError(res.Err)
	case flows.LogoutFailureMismatch:
		err = unauthorized(ErrRefreshMismatch)
	case flows.LogoutFailureAlreadyRevoked:
		err = unauthorized(ErrAlreadyRevoked)
	default:
		e.metricInc(MetricLogoutFailure)
		return e.storeUnavailable(ctx, "logout", res.Err)
	}

	e.metricInc(MetricLogoutFailure)
	e.emitAudit(ctx, auditEventLogoutFailure, false, res.UserID, res.SessionID, err, nil)
	return err
}

// Verify authenticates an access token: signature and expiry, then the
// verification cache, then the revocation ledger. Every failure matches
// ErrUnauthorized; ledger outages reject the token.
//
//	Performance: 0 Redis calls on a cache hit, 1 GET otherwise.
func (e *Engine) Verify(ctx context.Context, token string) (claims *Claims, err error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	ctx, span := e.startSpan(ctx, "Verify")
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
		endSpan(span, err)
	}()

	res := flows.RunVerify(ctx, token, e.deps.Verify)
	if e.cache != nil && res.Failure != flows.VerifyFailureExpired && res.Failure != flows.VerifyFailureMalformed {
		if res.CacheHit {
			e.metricInc(MetricCacheHit)
		} else {
			e.metricInc(MetricCacheMiss)
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", res.CacheHit))

	switch res.Failure {
	case flows.VerifyFailureNone:
		e.metricInc(MetricVerifySuccess)
		return res.Claims, nil
	case flows.VerifyFailureExpired:
		e.metricInc(MetricVerifyExpired)
		return nil, unauthorized(ErrTokenExpired)
	case flows.VerifyFailureMalformed:
		e.metricInc(MetricVerifyMalformed)
		return nil, unauthorized(ErrTokenMalformed)
	case flows.VerifyFailureRevoked:
		e.metricInc(MetricVerifyRevoked)
		e.emitAudit(ctx, auditEventRevokedTokenUsed, false, res.Claims.UserID, res.Claims.SessionID, ErrTokenRevoked, nil)
		return nil, unauthorized(ErrTokenRevoked)
	default:
		e.metricInc(MetricVerifyStoreUnavailable)
		return nil, e.storeUnavailable(ctx, "verify", res.Err)
	}
}

// Validate verifies token and returns its identity payload.
func (e *Engine) Validate(ctx context.Context, token string) (Payload, error) {
	claims, err := e.Verify(ctx, token)
	if err != nil {
		return Payload{}, err
	}
	return PayloadFromClaims(claims), nil
}

// Allow counts one request for clientID against the rate limit. A rejected
// request returns ErrTooManyRequests with RetryAfter set. Backend failures
// return ErrRateLimiterUnavailable unless RateLimit.FailOpen is set.
//
//	Performance: 1 EVALSHA.
func (e *Engine) Allow(ctx context.Context, clientID string) (RateDecision, error) {
	if e == nil {
		return RateDecision{}, ErrEngineNotReady
	}
	if e.limiter == nil {
		return RateDecision{Allowed: true}, nil
	}

	d, err := e.limiter.Allow(ctx, clientID)
	decision := RateDecision{Allowed: d.Allowed, Count: d.Count, Limit: d.Limit, RetryAfter: d.RetryAfter}
	switch {
	case err == nil:
		e.metricInc(MetricRateLimitAllowed)
		return decision, nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricRateLimitRejected)
		e.emitAudit(ctx, auditEventRateLimited, false, "", "", ErrTooManyRequests, nil)
		return decision, ErrTooManyRequests
	case e.config.RateLimit.FailOpen:
		e.log.Warn().Err(err).Msg("rate limiter unavailable, admitting request")
		decision.Allowed = true
		return decision, nil
	default:
		e.log.Error().Err(err).Msg("rate limiter unavailable")
		return decision, fmt.Errorf("%w: %v", ErrRateLimiterUnavailable, err)
	}
}

// Ping measures one round trip to the revocation ledger. Failures match
// ErrStoreUnavailable.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.ledger == nil {
		return 0, ErrEngineNotReady
	}
	return e.ledger.Ping(ctx)
}

// HashPassword hashes plaintext with the engine's Argon2id parameters, for
// seeding user records.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(plaintext)
}
