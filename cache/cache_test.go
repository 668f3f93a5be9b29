package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func sampleClaims() *jwt.Claims {
	return &jwt.Claims{UserID: "u-1", Role: jwt.RoleUser, Subscriptions: []string{"feed"}, SessionID: "s-1"}
}

func TestKeyDependsOnScope(t *testing.T) {
	a := Key("token", "event-service")
	b := Key("token", "join-service")
	if a == b {
		t.Fatal("keys for different scopes must differ")
	}
	if a != Key("token", "event-service") {
		t.Fatal("key must be deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
	if got := Keys("token", "event-service", "join-service"); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("unexpected keys %v", got)
	}
}

func TestMemoryExpiresEntries(t *testing.T) {
	m := NewMemory(0)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", sampleClaims(), 5*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || got.UserID != "u-1" {
		t.Fatalf("expected hit, got %+v ok=%v err=%v", got, ok, err)
	}

	now = now.Add(5 * time.Second)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestMemoryClampsTTL(t *testing.T) {
	m := NewMemory(0)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Set(ctx, "k", sampleClaims(), time.Hour)
	now = now.Add(MaxTTL)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("entry must not outlive MaxTTL")
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()

	_ = m.Set(ctx, "k", sampleClaims(), time.Second)
	first, _, _ := m.Get(ctx, "k")
	first.UserID = "mutated"
	second, _, _ := m.Get(ctx, "k")
	if second.UserID != "u-1" {
		t.Fatal("cached claims must not be shared with callers")
	}
}

func TestMemoryDeleteAndBound(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_ = m.Set(ctx, Key("tok", string(rune('a'+i))), sampleClaims(), time.Second)
	}
	if m.Len() > 10 {
		t.Fatalf("expected at most 10 entries, got %d", m.Len())
	}

	_ = m.Set(ctx, "target", sampleClaims(), time.Second)
	_ = m.Delete(ctx, "target", "missing")
	if _, ok, _ := m.Get(ctx, "target"); ok {
		t.Fatal("expected deleted entry to miss")
	}
}

func newRedisCacheTest(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedis(rdb, ""), mr
}

func TestRedisRoundTripAndTTL(t *testing.T) {
	c, mr := newRedisCacheTest(t)
	ctx := context.Background()
	key := Key("tok", "svc")

	if err := c.Set(ctx, key, sampleClaims(), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("vc:" + key); ttl <= 0 || ttl > MaxTTL {
		t.Fatalf("expected ttl clamped to %v, got %v", MaxTTL, ttl)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.UserID != "u-1" || got.Role != jwt.RoleUser || got.SessionID != "s-1" {
		t.Fatalf("unexpected claims %+v", got)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisCorruptEntryIsMiss(t *testing.T) {
	c, mr := newRedisCacheTest(t)

	_ = mr.Set("vc:bad", "{not json")
	if _, ok, err := c.Get(context.Background(), "bad"); ok || err != nil {
		t.Fatalf("expected silent miss, ok=%v err=%v", ok, err)
	}
	if mr.Exists("vc:bad") {
		t.Fatal("expected corrupt entry to be removed")
	}
}

func TestRedisUnavailable(t *testing.T) {
	c, mr := newRedisCacheTest(t)
	mr.Close()

	if _, _, err := c.Get(context.Background(), "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
