// Package config loads the sessionguard service settings from the
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrEthical07/sessionguard"
)

const envProduction = "production"

type Config struct {
	// App
	Env         string
	HTTPAddr    string
	MetricsAddr string

	// Engine settings, built on top of sessionguard.DefaultConfig.
	Engine sessionguard.Config

	// Redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RateLimitRedisDB int

	// Request boundary
	TrustForwardedFor bool
	RequireRequestID  bool

	// Credential sources; USERS_DSN wins when both are set.
	UsersDSN  string
	UsersFile string

	// Audit
	AMQPURL      string
	AMQPExchange string
	AuditLog     bool

	// Observability
	OTLPEndpoint string
	LogLevel     string
	LogFormat    string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration
}

// Production reports whether ENV selects production hardening.
func (c *Config) Production() bool {
	return c.Env == envProduction
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("ENV", "dev"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		UsersDSN:      os.Getenv("USERS_DSN"),
		UsersFile:     os.Getenv("USERS_FILE"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "sessionguard.audit"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
	}

	engine := sessionguard.DefaultConfig()
	engine.Security.ProductionMode = cfg.Production()

	// required values
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}
	engine.JWT.Secret = []byte(secret)
	engine.JWT.Issuer = os.Getenv("JWT_ISSUER")

	var err error
	if engine.JWT.AccessTTL, err = getDuration("ACCESS_TOKEN_TTL", engine.JWT.AccessTTL); err != nil {
		return nil, err
	}
	if engine.JWT.RefreshTTL, err = getDuration("REFRESH_TOKEN_TTL", engine.JWT.RefreshTTL); err != nil {
		return nil, err
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	// The limiter shares the ledger's database unless told otherwise.
	if cfg.RateLimitRedisDB, err = getInt("RATE_LIMIT_REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}
	if engine.Revocation.OpTimeout, err = getDuration("REDIS_OP_TIMEOUT", engine.Revocation.OpTimeout); err != nil {
		return nil, err
	}
	if engine.Revocation.RetryAttempts, err = getInt("RETRY_ATTEMPTS", engine.Revocation.RetryAttempts); err != nil {
		return nil, err
	}
	if engine.Revocation.RetryInitialInterval, err = getDuration("RETRY_INITIAL", engine.Revocation.RetryInitialInterval); err != nil {
		return nil, err
	}
	if engine.Revocation.RetryMaxInterval, err = getDuration("RETRY_MAX", engine.Revocation.RetryMaxInterval); err != nil {
		return nil, err
	}

	if engine.RateLimit.Limit, err = getInt("RATE_LIMIT", engine.RateLimit.Limit); err != nil {
		return nil, err
	}
	if engine.RateLimit.Window, err = getDuration("RATE_LIMIT_WINDOW", engine.RateLimit.Window); err != nil {
		return nil, err
	}
	if engine.RateLimit.StrictWindow, err = getBool("RATE_LIMIT_STRICT_WINDOW", false); err != nil {
		return nil, err
	}
	if engine.RateLimit.LimitInclusive, err = getBool("RATE_LIMIT_INCLUSIVE", false); err != nil {
		return nil, err
	}
	if engine.RateLimit.FailOpen, err = getBool("RATE_LIMIT_FAIL_OPEN", false); err != nil {
		return nil, err
	}
	if cfg.TrustForwardedFor, err = getBool("TRUST_FORWARDED_FOR", false); err != nil {
		return nil, err
	}

	if engine.Cache.TTL, err = getDuration("VERIFY_CACHE_TTL", engine.Cache.TTL); err != nil {
		return nil, err
	}
	engine.Cache.Enabled = engine.Cache.TTL > 0
	engine.Cache.Scope = getEnv("VERIFY_CACHE_SCOPE", engine.Cache.Scope)
	engine.Cache.PeerScopes = getList("VERIFY_CACHE_PEER_SCOPES")

	if cfg.RequireRequestID, err = getBool("REQUIRE_REQUEST_ID", cfg.Production()); err != nil {
		return nil, err
	}

	if cfg.UsersDSN != "" {
		if err := validatePostgresDSN(cfg.UsersDSN); err != nil {
			return nil, err
		}
	}

	if cfg.AuditLog, err = getBool("AUDIT_LOG", false); err != nil {
		return nil, err
	}
	engine.Audit.Enabled = cfg.AMQPURL != "" || cfg.AuditLog

	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	if err := engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	cfg.Engine = engine

	return cfg, nil
}

func validatePostgresDSN(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid USERS_DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("USERS_DSN must use the postgres scheme, got %q", u.Scheme)
	}
	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("USERS_DSN must name a database")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %q: %w", key, v, err)
	}
	return b, nil
}

// getList splits a comma separated value, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
