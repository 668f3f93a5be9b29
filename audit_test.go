package sessionguard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func nextEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %q event received", eventType)
		}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	et := newEngineTest(t, func(c *Config) { c.Audit.Enabled = false }, func(b *Builder) { b.WithAuditSink(sink) })

	pair := et.login(t)
	_, _ = et.engine.Refresh(context.Background(), pair.RefreshToken)
	_, _ = et.engine.Refresh(context.Background(), pair.RefreshToken)
	et.engine.Close()

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no sink calls when audit is disabled, got %d", got)
	}
}

func TestAuditRefreshReuseIsClassified(t *testing.T) {
	sink := NewChannelSink(32)
	et := newEngineTest(t, func(c *Config) { c.Audit.Enabled = true }, func(b *Builder) { b.WithAuditSink(sink) })
	ctx := context.Background()

	pair := et.login(t)
	if _, err := et.engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if _, err := et.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("expected ErrRefreshRevoked, got %v", err)
	}

	ev := nextEvent(t, sink, auditEventRefreshReused)
	if ev.Success {
		t.Fatal("reuse event must not be marked successful")
	}
	if ev.Error != string(auditErrRefreshRevoked) {
		t.Fatalf("expected error code %q, got %q", auditErrRefreshRevoked, ev.Error)
	}
	if ev.UserID != "id-alice" || ev.SessionID == "" {
		t.Fatalf("expected identity on reuse event, got %+v", ev)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", ev)
	}
}

func TestAuditRevokedTokenUse(t *testing.T) {
	sink := NewChannelSink(32)
	et := newEngineTest(t, func(c *Config) { c.Audit.Enabled = true }, func(b *Builder) { b.WithAuditSink(sink) })
	ctx := context.Background()

	pair := et.login(t)
	if err := et.engine.Logout(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := et.engine.Verify(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	ev := nextEvent(t, sink, auditEventRevokedTokenUsed)
	if ev.Error != string(auditErrTokenRevoked) {
		t.Fatalf("expected error code %q, got %q", auditErrTokenRevoked, ev.Error)
	}
}

func TestAuditRateLimitEvent(t *testing.T) {
	sink := NewChannelSink(32)
	et := newEngineTest(t, func(c *Config) {
		c.Audit.Enabled = true
		c.RateLimit.Limit = 1
		c.RateLimit.LimitInclusive = true
	}, func(b *Builder) { b.WithAuditSink(sink) })

	ctx := WithClientIP(context.Background(), "192.0.2.7")
	if _, err := et.engine.Allow(ctx, "192.0.2.7"); err != nil {
		t.Fatalf("first request rejected: %v", err)
	}
	if _, err := et.engine.Allow(ctx, "192.0.2.7"); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}

	ev := nextEvent(t, sink, auditEventRateLimited)
	if ev.IP != "192.0.2.7" || ev.Error != string(auditErrRateLimited) {
		t.Fatalf("unexpected rate limit event: %+v", ev)
	}
}

func TestAuditFullBufferDropsWithoutBlocking(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	et := newEngineTest(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 1
		c.Audit.DropIfFull = true
	}, func(b *Builder) { b.WithAuditSink(sink) })
	t.Cleanup(func() { close(sink.gate) })

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		_, _ = et.engine.Verify(ctx, "not-a-token")
		_, _ = et.engine.Refresh(ctx, "not-a-token")
	}
	if time.Since(start) > time.Second {
		t.Fatal("engine calls blocked on a full audit buffer")
	}
	if et.engine.AuditDropped() == 0 {
		t.Fatal("expected dropped events to be counted")
	}
}

func TestAuditErrorCodeOrdering(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{errors.Join(ErrUnauthorized, ErrInvalidCredentials, ErrAccountDisabled), auditErrAccountDisabled},
		{unauthorized(ErrInvalidCredentials), auditErrInvalidCredentials},
		{unauthorized(ErrTokenExpired), auditErrTokenExpired},
		{unauthorized(ErrRefreshMismatch), auditErrRefreshMismatch},
		{unauthorized(ErrStoreUnavailable), auditErrUnavailable},
		{ErrUnauthorized, auditErrUnauthorized},
		{errors.New("boom"), auditErrInternal},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
