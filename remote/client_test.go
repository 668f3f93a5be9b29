package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/cache"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	calls     atomic.Int64
	status    atomic.Int64
	delay     time.Duration
	requestID atomic.Value
	exp       int64
}

func newFakeAuth(t *testing.T) (*fakeAuth, *httptest.Server) {
	t.Helper()
	f := &fakeAuth{exp: time.Now().Add(time.Hour).Unix()}
	f.status.Store(http.StatusOK)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if id := r.Header.Get("X-Request-Id"); id != "" {
			f.requestID.Store(id)
		}
		if f.delay > 0 {
			time.Sleep(f.delay)
		}

		var body struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		status := int(f.status.Load())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"detail":"unauthorized"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(sessionguard.Payload{
			UserID:        "user-" + body.Token,
			Role:          jwt.RoleAdmin,
			Exp:           f.exp,
			Subscriptions: []string{"premium"},
		})
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestVerifyReturnsClaims(t *testing.T) {
	_, srv := newFakeAuth(t)
	c := newClient(t, Config{BaseURL: srv.URL + "/"})

	claims, err := c.Verify(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "user-abc", claims.UserID)
	assert.Equal(t, jwt.RoleAdmin, claims.Role)
	assert.Equal(t, []string{"premium"}, claims.Subscriptions)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestVerifyRejected(t *testing.T) {
	f, srv := newFakeAuth(t)
	f.status.Store(http.StatusUnauthorized)
	c := newClient(t, Config{BaseURL: srv.URL})

	_, err := c.Verify(context.Background(), "abc")
	require.ErrorIs(t, err, ErrRejected)

	_, err = c.Verify(context.Background(), "")
	require.ErrorIs(t, err, ErrRejected)
}

func TestVerifyFailsClosed(t *testing.T) {
	f, srv := newFakeAuth(t)
	f.status.Store(http.StatusInternalServerError)
	c := newClient(t, Config{BaseURL: srv.URL})

	_, err := c.Verify(context.Background(), "abc")
	require.ErrorIs(t, err, ErrUnavailable)

	srv.Close()
	_, err = c.Verify(context.Background(), "abc")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifyTimeout(t *testing.T) {
	f, srv := newFakeAuth(t)
	f.delay = 200 * time.Millisecond
	c := newClient(t, Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := c.Verify(context.Background(), "abc")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestVerifyExpiredPayloadRejected(t *testing.T) {
	f, srv := newFakeAuth(t)
	f.exp = time.Now().Add(-time.Minute).Unix()
	c := newClient(t, Config{BaseURL: srv.URL})

	_, err := c.Verify(context.Background(), "abc")
	require.ErrorIs(t, err, ErrRejected)
}

func TestVerifyPropagatesRequestID(t *testing.T) {
	f, srv := newFakeAuth(t)
	c := newClient(t, Config{BaseURL: srv.URL})

	ctx := sessionguard.WithRequestID(context.Background(), "req-42")
	_, err := c.Verify(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "req-42", f.requestID.Load())
}

func TestVerifyCachesWithinScope(t *testing.T) {
	f, srv := newFakeAuth(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	shared := cache.NewRedis(rdb, "vc")

	c := newClient(t, Config{BaseURL: srv.URL, Cache: shared, Scope: "events", CacheTTL: 5 * time.Second})

	for i := 0; i < 3; i++ {
		_, err := c.Verify(context.Background(), "abc")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), f.calls.Load())

	// The auth service drops this scope's entry on logout.
	require.NoError(t, shared.Delete(context.Background(), cache.Key("abc", "events")))
	_, err := c.Verify(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.calls.Load())

	mr.FastForward(6 * time.Second)
	_, err = c.Verify(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.calls.Load())
}

func TestVerifyDoesNotCacheFailures(t *testing.T) {
	f, srv := newFakeAuth(t)
	f.status.Store(http.StatusUnauthorized)
	c := newClient(t, Config{BaseURL: srv.URL, Cache: cache.NewMemory(16), Scope: "events", CacheTTL: time.Second})

	for i := 0; i < 2; i++ {
		_, err := c.Verify(context.Background(), "abc")
		require.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, int64(2), f.calls.Load())
}

func TestVerifyCollapsesConcurrentLookups(t *testing.T) {
	f, srv := newFakeAuth(t)
	f.delay = 50 * time.Millisecond
	c := newClient(t, Config{BaseURL: srv.URL})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Verify(context.Background(), "abc")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Less(t, f.calls.Load(), int64(8))
}

func TestVerifySharedLookupSurvivesCancelledCaller(t *testing.T) {
	f, srv := newFakeAuth(t)
	f.delay = 200 * time.Millisecond
	c := newClient(t, Config{BaseURL: srv.URL, Timeout: 2 * time.Second})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Verify(leaderCtx, "abc")
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	followerErr := make(chan error, 1)
	go func() {
		_, err := c.Verify(context.Background(), "abc")
		followerErr <- err
	}()
	cancel()

	err := <-leaderErr
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, <-followerErr)
	assert.Equal(t, int64(1), f.calls.Load())
}

func TestNewValidatesConfig(t *testing.T) {
	cases := map[string]Config{
		"missing url":     {},
		"timeout too big": {BaseURL: "http://auth", Timeout: 11 * time.Second},
		"cache no scope":  {BaseURL: "http://auth", Cache: cache.NewMemory(1), CacheTTL: time.Second},
		"cache ttl":       {BaseURL: "http://auth", Cache: cache.NewMemory(1), Scope: "s", CacheTTL: time.Minute},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg)
			require.Error(t, err)
		})
	}

	c, err := New(Config{BaseURL: "http://auth"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.timeout)
}
