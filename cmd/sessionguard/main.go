// Command sessionguard serves login, refresh, logout and token validation
// over HTTP, backed by Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/cache"
	"github.com/MrEthical07/sessionguard/internal/config"
	"github.com/MrEthical07/sessionguard/internal/httpapi"
	"github.com/MrEthical07/sessionguard/internal/logger"
	promexport "github.com/MrEthical07/sessionguard/metrics/export/prometheus"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/MrEthical07/sessionguard/users"
	"github.com/MrEthical07/sessionguard/users/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("service", serviceName).
		Str("env", cfg.Env).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("sessionguard stopped")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// ---- Tracing ----
	tp, shutdownTracing, err := initTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("tracer flush failed")
		}
	}()

	// ---- Redis ----
	rdb, err := dialRedis(ctx, cfg, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("redis connected")

	rateRdb := rdb
	if cfg.RateLimitRedisDB != cfg.RedisDB {
		if rateRdb, err = dialRedis(ctx, cfg, cfg.RateLimitRedisDB); err != nil {
			return err
		}
		defer rateRdb.Close()
	}

	// ---- Credentials ----
	provider, closeUsers, err := openUsers(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUsers()
	if provider == nil {
		log.Warn().Msg("no USERS_DSN or USERS_FILE configured, /login is disabled")
	}

	// ---- Audit ----
	var sinks sessionguard.MultiSink
	if cfg.AMQPURL != "" {
		amqpSink, err := sessionguard.DialAMQPSink(cfg.AMQPURL, sessionguard.AMQPSinkConfig{Exchange: cfg.AMQPExchange}, log)
		if err != nil {
			return fmt.Errorf("audit broker: %w", err)
		}
		// Runs after engine.Close has drained the dispatcher.
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
	}
	if cfg.AuditLog {
		sinks = append(sinks, sessionguard.NewJSONWriterSink(os.Stdout))
	}

	// ---- Engine ----
	builder := sessionguard.New().
		WithConfig(cfg.Engine).
		WithRedis(rdb).
		WithRateLimitRedis(rateRdb).
		WithLogger(log).
		WithTracerProvider(tp)
	if provider != nil {
		builder = builder.WithUserProvider(provider)
	}
	if len(sinks) > 0 {
		builder = builder.WithAuditSink(sinks)
	}
	if len(cfg.Engine.Cache.PeerScopes) > 0 {
		// Peers read the same entries, so the cache must live in Redis.
		builder = builder.WithCache(cache.NewRedis(rdb, "vc"))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	posture := engine.SecurityReport()
	log.Info().
		Bool("production", posture.ProductionMode).
		Dur("access_ttl", posture.AccessTTL).
		Dur("refresh_ttl", posture.RefreshTTL).
		Bool("atomic_rotation", posture.AtomicRotation).
		Bool("cache", posture.CacheEnabled).
		Int("cache_peer_scopes", posture.CachePeerScopes).
		Bool("rate_limit", posture.RateLimitActive).
		Bool("rate_limit_fail_open", posture.RateLimitFailOpen).
		Bool("audit", posture.AuditEnabled).
		Msg("engine ready")

	// ---- Metrics ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(engine),
	)

	deps := httpapi.RouterDeps{
		Engine:            engine,
		Logger:            log,
		HTTPMetrics:       middleware.NewHTTPMetrics(reg, serviceName),
		RequireRequestID:  cfg.RequireRequestID,
		TrustForwardedFor: cfg.TrustForwardedFor,
		RateLimit:         cfg.Engine.RateLimit.Enabled,
	}
	if cfg.MetricsAddr == "" {
		deps.Gatherer = reg
	}

	// ---- HTTP servers ----
	servers := []*http.Server{newServer(cfg, cfg.HTTPAddr, httpapi.NewRouter(deps))}
	if cfg.MetricsAddr != "" {
		servers = append(servers, newServer(cfg, cfg.MetricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("http server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newServer(cfg *config.Config, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
}

func dialRedis(ctx context.Context, cfg *config.Config, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           db,
		ReadTimeout:  cfg.Engine.Revocation.OpTimeout,
		WriteTimeout: cfg.Engine.Revocation.OpTimeout,
		// The ledger runs its own backoff.
		MaxRetries: -1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping (db %d): %w", db, err)
	}
	return client, nil
}

// openUsers picks the credential source. A nil provider with a nil error
// means the service runs verify-only.
func openUsers(ctx context.Context, cfg *config.Config) (sessionguard.UserProvider, func(), error) {
	switch {
	case cfg.UsersDSN != "":
		db, err := postgres.Open(ctx, cfg.UsersDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("users database: %w", err)
		}
		return postgres.New(db, ""), func() { _ = db.Close() }, nil
	case cfg.UsersFile != "":
		static, err := users.LoadFile(cfg.UsersFile)
		if err != nil {
			return nil, nil, err
		}
		return static, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}
