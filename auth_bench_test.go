package sessionguard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newBenchmarkEngine(b *testing.B, mutate func(*Config)) *Engine {
	b.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis.Run failed: %v", err)
	}
	b.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = rdb.Close() })

	cfg := engineTestConfig()
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine
}

func benchmarkVerify(b *testing.B, cached bool) {
	engine := newBenchmarkEngine(b, func(c *Config) { c.Cache.Enabled = cached })
	pair, err := engine.LoginSubject(context.Background(), "bench-user", RoleUser, nil)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Verify(context.Background(), pair.AccessToken); err != nil {
			b.Fatalf("verify failed: %v", err)
		}
	}
}

func BenchmarkVerifyCached(b *testing.B)   { benchmarkVerify(b, true) }
func BenchmarkVerifyUncached(b *testing.B) { benchmarkVerify(b, false) }

func BenchmarkVerifyCachedParallel(b *testing.B) {
	engine := newBenchmarkEngine(b, nil)
	pair, err := engine.LoginSubject(context.Background(), "bench-user", RoleUser, nil)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := engine.Verify(context.Background(), pair.AccessToken); err != nil {
				b.Errorf("verify failed: %v", err)
				return
			}
		}
	})
}

func BenchmarkRefresh(b *testing.B) {
	engine := newBenchmarkEngine(b, nil)
	pair, err := engine.LoginSubject(context.Background(), "bench-user", RoleUser, nil)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err = engine.Refresh(context.Background(), pair.RefreshToken)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
	}
}
