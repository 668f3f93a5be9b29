package sessionguard

import (
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/cache"
	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/revocation"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/sessionguard"

// Builder assembles an Engine. Each Builder produces at most one Engine.
//
//	engine, err := sessionguard.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserProvider(provider).
//		Build()
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	rateRedis redis.UniversalClient

	userProvider   UserProvider
	auditSink      AuditSink
	cache          cache.Cache
	logger         zerolog.Logger
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client for the revocation ledger. It also serves the
// rate limiter unless WithRateLimitRedis is used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRateLimitRedis gives the limiter its own client, typically a separate
// logical database.
func (b *Builder) WithRateLimitRedis(client redis.UniversalClient) *Builder {
	b.rateRedis = client
	return b
}

// WithUserProvider enables Login. Engines without a provider can still
// verify, refresh and log out.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithCache replaces the in-process verification cache, e.g. with a
// cache.Redis shared by several services.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// WithTracerProvider sets the provider used for engine spans. The global
// provider is used otherwise.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source for issuing and validating tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		redis:   b.redis,
		users:   b.userProvider,
		log:     b.logger,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		Secret:     cloneBytes(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Now:        b.now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwt = jm

	// -------- REVOCATION LEDGER --------
	engine.ledger = revocation.NewStore(b.redis, revocation.Config{
		Prefix: cfg.Revocation.RedisPrefix,
		Retry: revocation.Retry{
			Attempts:        cfg.Revocation.RetryAttempts,
			InitialInterval: cfg.Revocation.RetryInitialInterval,
			MaxInterval:     cfg.Revocation.RetryMaxInterval,
			OpTimeout:       cfg.Revocation.OpTimeout,
		},
		OnRetry: engine.onStoreRetry,
	})

	// -------- VERIFICATION CACHE --------
	if cfg.Cache.Enabled {
		engine.cache = b.cache
		if engine.cache == nil {
			engine.cache = cache.NewMemory(cfg.Cache.MaxEntries)
		}
		engine.cacheScopes = append([]string{cfg.Cache.Scope}, cfg.Cache.PeerScopes...)
	}

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		rateClient := b.rateRedis
		if rateClient == nil {
			rateClient = b.redis
		}
		engine.limiter = rate.New(rateClient, rate.Config{
			Prefix:         cfg.RateLimit.RedisPrefix,
			Limit:          cfg.RateLimit.Limit,
			Window:         cfg.RateLimit.Window,
			LimitInclusive: cfg.RateLimit.LimitInclusive,
			StrictWindow:   cfg.RateLimit.StrictWindow,
		})
	}

	// -------- PASSWORDS --------
	hasher, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// -------- AUDIT / TRACING --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	engine.tracer = tp.Tracer(tracerName)

	engine.deps = engine.buildFlowDeps()

	b.built = true
	return engine, nil
}
