// Command sessionguard-loadtest drives an engine against Redis (or an
// in-process miniredis) and reports verify and refresh latency, plus how
// often a contested refresh token was rotated more than once.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/sessionguard"
)

type sessionState struct {
	mu   sync.Mutex
	pair sessionguard.TokenPair
}

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (verify + refresh)")
		contested   = flag.Int("contested", 1000, "refresh tokens presented concurrently in the race phase")
		contenders  = flag.Int("contenders", 8, "concurrent presenters per contested token")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		nonAtomic   = flag.Bool("non-atomic", false, "use check-then-delete rotation instead of compare-and-delete")
		noCache     = flag.Bool("no-cache", false, "disable the verification cache")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *contenders <= 1 || *contested < 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency and ops must be > 0, contenders > 1")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := sessionguard.DefaultConfig()
	cfg.JWT.Secret = []byte("loadtest-secret-loadtest-secret-")
	cfg.RateLimit.Enabled = false
	cfg.Revocation.AtomicRotation = !*nonAtomic
	cfg.Revocation.RetryInitialInterval = 10 * time.Millisecond
	cfg.Revocation.RetryMaxInterval = 50 * time.Millisecond
	cfg.Cache.Enabled = !*noCache

	engine, err := sessionguard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(zerolog.Nop()).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]sessionState, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range states {
		pair, err := engine.LoginSubject(ctx, fmt.Sprintf("user-%d", i), sessionguard.RoleUser, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i].pair = pair
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		token := s.pair.AccessToken
		s.mu.Unlock()
		_, err := engine.Verify(ctx, token)
		return err
	})

	refreshStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		next, err := engine.Refresh(ctx, s.pair.RefreshToken)
		if err != nil {
			return err
		}
		s.pair = next
		return nil
	})

	doubles := runRacePhase(ctx, engine, *contested, *contenders)

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("refresh", refreshStats)
	fmt.Printf("race: contested=%d contenders=%d double_issuance=%d atomic=%t\n",
		*contested, *contenders, doubles, !*nonAtomic)
}

// runPhase spreads ops calls of fn across concurrency workers.
func runPhase(ops, concurrency int, seed int64, fn func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runRacePhase issues fresh sessions and presents each refresh token from
// contenders goroutines at once. It returns how many tokens were rotated more
// than once.
func runRacePhase(ctx context.Context, engine *sessionguard.Engine, contested, contenders int) int64 {
	var doubles int64
	for i := 0; i < contested; i++ {
		pair, err := engine.LoginSubject(ctx, fmt.Sprintf("race-%d", i), sessionguard.RoleUser, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "race login failed: %v\n", err)
			os.Exit(1)
		}

		var (
			wg    sync.WaitGroup
			wins  int64
			ready = make(chan struct{})
		)
		for c := 0; c < contenders; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-ready
				if _, err := engine.Refresh(ctx, pair.RefreshToken); err == nil {
					atomic.AddInt64(&wins, 1)
				}
			}()
		}
		close(ready)
		wg.Wait()

		if wins > 1 {
			doubles++
		}
	}
	return doubles
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
