package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	dashAuth "github.com/MrEthical07/dashAuth"
	"github.com/MrEthical07/dashAuth/refresh"
	"github.com/MrEthical07/dashAuth/store"
)

// api is a fake dashboard backend. Each round it revokes every access token,
// so every client's burst hits 401 together.
type api struct {
	mu     sync.Mutex
	epoch  int
	issued int
	valid  map[string]int
	delay  time.Duration

	refreshCalls atomic.Int64
}

func newAPI(delay time.Duration) *api {
	return &api{valid: map[string]int{}, delay: delay}
}

func (a *api) revokeAll() {
	a.mu.Lock()
	a.epoch++
	a.mu.Unlock()
}

func (a *api) issue() refresh.Pair {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.issued++
	tok := "at-" + strconv.Itoa(a.issued)
	a.valid[tok] = a.epoch
	return refresh.Pair{AccessToken: tok, RefreshToken: "rt-" + strconv.Itoa(a.issued)}
}

func (a *api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == refresh.DefaultPath {
		a.refreshCalls.Add(1)
		time.Sleep(a.delay)
		_ = json.NewEncoder(w).Encode(a.issue())
		return
	}
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	a.mu.Lock()
	epoch, ok := a.valid[tok]
	ok = ok && epoch == a.epoch
	a.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func main() {
	var (
		clients   = flag.Int("clients", 20, "number of dashboard clients, each with its own coordinator")
		burst     = flag.Int("burst", 25, "concurrent requests per client per round")
		rounds    = flag.Int("rounds", 5, "rounds; every round revokes all access tokens")
		delay     = flag.Duration("refresh-delay", 20*time.Millisecond, "server-side latency of the refresh endpoint")
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *clients <= 0 || *burst <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "clients, burst, and rounds must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend := newAPI(*delay)
	srv := httptest.NewServer(backend)
	defer srv.Close()

	cfg := dashAuth.DefaultConfig()
	cfg.Token.Secret = []byte("refresh-loadtest")
	cfg.Refresh.APIBaseURL = srv.URL
	cfg.Store.RedisPrefix = "dashauth:loadtest"
	engine, err := dashAuth.New().
		WithConfig(cfg).
		WithLogger(zap.NewNop()).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	coordinators := make([]*refresh.Coordinator, *clients)
	httpClients := make([]*http.Client, *clients)
	for i := range coordinators {
		creds := engine.NewRedisStore(client, "client-"+strconv.Itoa(i))
		c, err := engine.NewCoordinator(creds, refresh.NopNavigator{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
			os.Exit(1)
		}
		pair := backend.issue()
		if err := c.Establish(ctx, store.Record{Token: pair.AccessToken, RefreshToken: pair.RefreshToken}); err != nil {
			fmt.Fprintf(os.Stderr, "establish: %v\n", err)
			os.Exit(1)
		}
		coordinators[i] = c
		httpClients[i] = c.HTTPClient(nil)
	}

	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, (*clients)*(*burst)*(*rounds))
		failures  atomic.Int64
	)

	start := time.Now()
	for round := 0; round < *rounds; round++ {
		backend.revokeAll()

		g, gctx := errgroup.WithContext(ctx)
		for i := range httpClients {
			hc := httpClients[i]
			for j := 0; j < *burst; j++ {
				g.Go(func() error {
					req, err := http.NewRequestWithContext(gctx, http.MethodGet, srv.URL+"/api/employees", nil)
					if err != nil {
						return err
					}
					t0 := time.Now()
					resp, err := hc.Do(req)
					d := time.Since(t0)
					if err != nil {
						failures.Add(1)
					} else {
						if resp.StatusCode != http.StatusOK {
							failures.Add(1)
						}
						resp.Body.Close()
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
					return nil
				})
			}
		}
		if err := g.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "round %d: %v\n", round, err)
			os.Exit(1)
		}
	}
	total := time.Since(start)

	expected := int64(*clients * *rounds)
	got := backend.refreshCalls.Load()

	fmt.Println("---- results ----")
	printStats(computeStats(total, latencies, failures.Load()))
	fmt.Printf("refresh calls: %d (expected %d)\n", got, expected)

	snap := engine.MetricsSnapshot()
	for _, id := range []dashAuth.MetricID{
		dashAuth.MetricRefreshStarted,
		dashAuth.MetricRefreshSuccess,
		dashAuth.MetricRefreshFailure,
		dashAuth.MetricRefreshWaiterQueued,
		dashAuth.MetricRefreshStaleRetry,
		dashAuth.MetricRefreshRetried,
		dashAuth.MetricRefreshRetryExhausted,
	} {
		fmt.Printf("  %-24s %d\n", id, snap.Counters[id])
	}

	if got != expected || failures.Load() > 0 {
		os.Exit(1)
	}
}

type stats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) stats {
	if len(samples) == 0 {
		return stats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return stats{
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
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(s stats) {
	fmt.Printf("requests=%d failures=%d total=%s req/sec=%.0f p50=%s p95=%s p99=%s\n",
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
