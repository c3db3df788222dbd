package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		sessions       = flag.Int("sessions", 2000, "number of sessions to seed")
		burst          = flag.Int("burst", 32, "concurrent Authorize calls per session while its access credential is expired")
		concurrency    = flag.Int("concurrency", 256, "workers for the steady phase")
		ops            = flag.Int("ops", 100000, "Authorize calls in the steady phase")
		refreshLatency = flag.Duration("refresh-latency", 20*time.Millisecond, "simulated backend refresh latency")
		redisAddr      = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix         = flag.String("prefix", "gglt", "redis key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *burst <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, burst, concurrency, and ops must be > 0")
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

	backend := newFakeBackend(*refreshLatency)
	srv := httptest.NewServer(backend)
	defer srv.Close()

	cfg := goGuard.DefaultConfig()
	cfg.Probe.BaseURL = srv.URL
	cfg.Store.Backend = goGuard.StoreRedis
	cfg.Store.RedisPrefix = *prefix
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	engine, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithHTTPClient(&http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency}}).
		WithLogger(logger).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range ids {
		ids[i] = fmt.Sprintf("lt-%d", i)
		if err := engine.Establish(ctx, ids[i], "refresh-"+ids[i], "expired-"+ids[i]); err != nil {
			fmt.Fprintf(os.Stderr, "establish failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	burstStats := runBurstPhase(ctx, engine, ids, *burst)
	steadyStats := runSteadyPhase(ctx, engine, ids, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("burst", burstStats)
	printStats("steady", steadyStats)

	calls := backend.refreshCounts(ids)
	var violations int
	for _, n := range calls {
		if n != 1 {
			violations++
		}
	}
	lo, hi := calls[0], calls[0]
	for _, n := range calls {
		lo = min(lo, n)
		hi = max(hi, n)
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("refresh calls per session: min=%d max=%d sessions!=1: %d\n", lo, hi, violations)
	fmt.Printf("shared waiters=%d validate calls=%d\n",
		snap.Counters[goGuard.MetricRefreshShared], backend.validates.Load())

	if violations > 0 {
		os.Exit(1)
	}
}

// runBurstPhase fires burst concurrent Authorize calls at each session whose
// access credential is expired, one session at a time.
func runBurstPhase(ctx context.Context, engine *goGuard.Engine, ids []string, burst int) phaseStats {
	var (
		failures  int64
		latencies = make([]time.Duration, 0, len(ids)*burst)
		mu        sync.Mutex
	)

	start := time.Now()
	for _, sid := range ids {
		var wg sync.WaitGroup
		release := make(chan struct{})
		for w := 0; w < burst; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-release
				t0 := time.Now()
				d := engine.Authorize(ctx, sid)
				dur := time.Since(t0)
				if d.Kind != goGuard.Allow {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, dur)
				mu.Unlock()
			}()
		}
		close(release)
		wg.Wait()
	}
	return computeStats(time.Since(start), latencies, failures)
}

func runSteadyPhase(ctx context.Context, engine *goGuard.Engine, ids []string, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				sid := ids[r.Intn(len(ids))]
				t0 := time.Now()
				d := engine.Authorize(ctx, sid)
				dur := time.Since(t0)
				if d.Kind != goGuard.Allow {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, dur)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// fakeBackend serves the validate and refresh endpoints with the default
// paths. Refresh mints a fresh access credential on every call.
type fakeBackend struct {
	latency   time.Duration
	valid     sync.Map // access -> struct{}
	refreshes sync.Map // refresh -> *atomic.Int64
	validates atomic.Int64
}

func newFakeBackend(latency time.Duration) *fakeBackend {
	return &fakeBackend{latency: latency}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cred := strings.TrimSpace(r.Header.Get("Authorization"))
	switch r.URL.Path {
	case "/whoami":
		b.validates.Add(1)
		if _, ok := b.valid.Load(cred); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"isApproved":true}`))
	case "/auth/refresh":
		if !strings.HasPrefix(cred, "refresh-") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		n, _ := b.refreshes.LoadOrStore(cred, new(atomic.Int64))
		n.(*atomic.Int64).Add(1)
		time.Sleep(b.latency)

		access := "acc-" + uuid.NewString()
		b.valid.Store(access, struct{}{})
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"accessToken":%q}`, access)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBackend) refreshCounts(ids []string) []int64 {
	out := make([]int64, len(ids))
	for i, sid := range ids {
		if n, ok := b.refreshes.Load("refresh-" + sid); ok {
			out[i] = n.(*atomic.Int64).Load()
		}
	}
	return out
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
