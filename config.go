package sessionguard

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard/cache"
)

// Config holds every engine setting. Start from DefaultConfig and override
// fields; Build validates and copies it.
type Config struct {
	JWT        JWTConfig
	Revocation RevocationConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Password   PasswordConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Security   SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the HS256 token codec. Secret is shared by every
// service that verifies tokens locally.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig configures the Redis ledger and its retry policy.
type RevocationConfig struct {
	RedisPrefix string
	// AtomicRotation consumes the old refresh entry with a compare-and-delete.
	// Disabling it restores the check-then-delete sequence, under which two
	// concurrent refreshes of one token can both succeed.
	AtomicRotation       bool
	RetryAttempts        int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	OpTimeout            time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig configures the positive verification cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	// Scope is this service's cache namespace. PeerScopes are invalidated too
	// on logout and rotation when a shared backend is used.
	Scope      string
	PeerScopes []string
	MaxEntries int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the per-client fixed-window limiter.
type RateLimitConfig struct {
	Enabled     bool
	RedisPrefix string
	Limit       int
	Window      time.Duration
	// StrictWindow sets the counter TTL on the first hit only.
	StrictWindow bool
	// LimitInclusive admits exactly Limit requests per window instead of Limit+1.
	LimitInclusive bool
	// FailOpen admits requests when the limiter backend is unreachable.
	FailOpen bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id cost parameters for new hashes.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig tightens validation for deployed environments.
type SecurityConfig struct {
	ProductionMode bool
	// MinSecretLength applies in production mode only.
	MinSecretLength int
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns a configuration with every section populated. The
// JWT secret is left empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Revocation: RevocationConfig{
			RedisPrefix:          "rv",
			AtomicRotation:       true,
			RetryAttempts:        3,
			RetryInitialInterval: time.Second,
			RetryMaxInterval:     5 * time.Second,
			OpTimeout:            500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        5 * time.Second,
			Scope:      "local",
			MaxEntries: 10000,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			RedisPrefix: "ratelimit",
			Limit:       5,
			Window:      time.Minute,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			MinSecretLength: 32,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.Cache.PeerScopes != nil {
		out.Cache.PeerScopes = append([]string(nil), cfg.Cache.PeerScopes...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < 16 {
		return errors.New("JWT Secret must be at least 16 bytes")
	}
	if c.Security.ProductionMode && len(c.JWT.Secret) < c.Security.MinSecretLength {
		return errors.New("JWT Secret is too short for production mode")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Revocation
	if strings.TrimSpace(c.Revocation.RedisPrefix) == "" {
		return errors.New("Revocation RedisPrefix must not be empty")
	}
	if c.Revocation.RetryAttempts < 1 || c.Revocation.RetryAttempts > 10 {
		return errors.New("Revocation RetryAttempts must be between 1 and 10")
	}
	if c.Revocation.RetryInitialInterval <= 0 {
		return errors.New("Revocation RetryInitialInterval must be > 0")
	}
	if c.Revocation.RetryMaxInterval < c.Revocation.RetryInitialInterval {
		return errors.New("Revocation RetryMaxInterval must be >= RetryInitialInterval")
	}
	if c.Revocation.OpTimeout <= 0 {
		return errors.New("Revocation OpTimeout must be > 0")
	}

	// Cache
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 || c.Cache.TTL > cache.MaxTTL {
			return errors.New("Cache TTL must be in (0, 10s]")
		}
		if strings.TrimSpace(c.Cache.Scope) == "" {
			return errors.New("Cache Scope must not be empty")
		}
		if c.Cache.MaxEntries < 0 {
			return errors.New("Cache MaxEntries must be >= 0")
		}
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			return errors.New("RateLimit Limit must be > 0")
		}
		if c.RateLimit.Window < time.Second {
			return errors.New("RateLimit Window must be >= 1s")
		}
		if strings.TrimSpace(c.RateLimit.RedisPrefix) == "" {
			return errors.New("RateLimit RedisPrefix must not be empty")
		}
		if c.RateLimit.RedisPrefix == c.Revocation.RedisPrefix {
			return errors.New("RateLimit RedisPrefix must differ from Revocation RedisPrefix")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("Password SaltLength and KeyLength must be >= 16")
	}
	if c.Security.ProductionMode && c.Password.Memory < 64*1024 {
		return errors.New("Password Memory must be >= 65536 KB in production mode")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
