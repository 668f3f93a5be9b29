package sessionguard

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("config-test-secret-0123456789abcdef")
	return cfg
}

func TestConfigValidateDefaultsWithSecret(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	empty := DefaultConfig()
	if err := empty.Validate(); err == nil {
		t.Fatal("expected a missing secret to be rejected")
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short secret", func(c *Config) { c.JWT.Secret = []byte("short") }, "Secret"},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, "AccessTTL"},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = time.Minute }, "RefreshTTL"},
		{"leeway too large", func(c *Config) { c.JWT.Leeway = 5 * time.Minute }, "Leeway"},
		{"empty ledger prefix", func(c *Config) { c.Revocation.RedisPrefix = " " }, "RedisPrefix"},
		{"no attempts", func(c *Config) { c.Revocation.RetryAttempts = 0 }, "RetryAttempts"},
		{"retry bounds inverted", func(c *Config) { c.Revocation.RetryMaxInterval = time.Millisecond }, "RetryMaxInterval"},
		{"unbounded ledger calls", func(c *Config) { c.Revocation.OpTimeout = 0 }, "OpTimeout"},
		{"cache ttl above ceiling", func(c *Config) { c.Cache.TTL = 11 * time.Second }, "Cache TTL"},
		{"empty cache scope", func(c *Config) { c.Cache.Scope = "" }, "Scope"},
		{"zero limit", func(c *Config) { c.RateLimit.Limit = 0 }, "Limit"},
		{"sub-second window", func(c *Config) { c.RateLimit.Window = 500 * time.Millisecond }, "Window"},
		{"shared prefixes", func(c *Config) { c.RateLimit.RedisPrefix = c.Revocation.RedisPrefix }, "differ"},
		{"weak argon2 memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }, "SaltLength"},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestConfigValidateDisabledSectionsSkipChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = false
	cfg.Cache.TTL = time.Hour
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Limit = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled sections should not be validated, got %v", err)
	}
}

func TestConfigValidateProductionRejectsWeakSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Security.ProductionMode = true
	cfg.JWT.Secret = []byte("sixteen-byte-key")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected production mode to reject a 16-byte secret")
	}

	cfg.Security.ProductionMode = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected development mode to accept a 16-byte secret, got %v", err)
	}
}

func TestConfigValidateProductionRejectsWeakArgon2(t *testing.T) {
	cfg := validConfig()
	cfg.Security.ProductionMode = true
	cfg.Password.Memory = 16 * 1024
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected production mode to reject weak argon2 memory")
	}
}

func TestBuildConfigImmutabilityAgainstExternalMutation(t *testing.T) {
	et := newEngineTest(t, nil)
	cfg := engineTestConfig()
	cfg.Cache.PeerScopes = []string{"billing"}

	engine, err := New().WithConfig(cfg).WithRedis(et.rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	cfg.JWT.Secret[0] ^= 0xFF
	cfg.Cache.PeerScopes[0] = "mutated"

	if engine.config.JWT.Secret[0] == cfg.JWT.Secret[0] {
		t.Fatal("engine secret changed after external mutation")
	}
	if engine.config.Cache.PeerScopes[0] != "billing" {
		t.Fatal("engine peer scopes changed after external mutation")
	}
}

func TestBuilderRequiresRedisAndIsSingleUse(t *testing.T) {
	if _, err := New().WithConfig(validConfig()).Build(); err == nil {
		t.Fatal("expected Build without redis to fail")
	}

	et := newEngineTest(t, nil)
	b := New().WithConfig(engineTestConfig()).WithRedis(et.rdb)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	et := newEngineTest(t, func(c *Config) {
		c.Cache.PeerScopes = []string{"billing", "orders"}
		c.RateLimit.FailOpen = true
	})

	report := et.engine.SecurityReport()
	if report.SigningAlgorithm != "HS256" {
		t.Fatalf("unexpected algorithm %q", report.SigningAlgorithm)
	}
	if report.SecretLength != len(engineTestConfig().JWT.Secret) {
		t.Fatalf("unexpected secret length %d", report.SecretLength)
	}
	if !report.AtomicRotation || report.StoreRetries != 0 {
		t.Fatalf("unexpected revocation posture: %+v", report)
	}
	if !report.CacheEnabled || report.CachePeerScopes != 2 {
		t.Fatalf("unexpected cache posture: %+v", report)
	}
	if !report.RateLimitActive || !report.RateLimitFailOpen {
		t.Fatalf("unexpected rate limit posture: %+v", report)
	}
	if report.Argon2.Memory != 8*1024 {
		t.Fatalf("unexpected argon2 memory %d", report.Argon2.Memory)
	}
}
