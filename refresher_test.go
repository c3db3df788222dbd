package goGuard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/credential"
	"github.com/MrEthical07/goGuard/probe"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestConcurrentAuthorizeSharesOneRefresh(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOK, NewAccess: "a2"})
	engine, store, _ := newTestEngine(t, backend)
	seed(t, store, "s1", "r1", "a1")

	const n = 32
	var wg sync.WaitGroup
	decisions := make(chan Decision, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decisions <- engine.Authorize(context.Background(), "s1")
		}()
	}

	<-backend.started
	// let every caller reach the round before it closes
	time.Sleep(50 * time.Millisecond)
	close(backend.gate)
	wg.Wait()
	close(decisions)

	for d := range decisions {
		if d.Kind != Allow || d.Access != "a2" {
			t.Fatalf("expected Allow(a2) for every caller, got %v / %q", d, d.Access)
		}
	}
	if got := backend.refresh.Load(); got != 1 {
		t.Fatalf("expected exactly one backend refresh, got %d", got)
	}
	if got, _ := currentAccess(t, store, "s1"); got != "a2" {
		t.Fatalf("expected store to hold a2, got %q", got)
	}
}

func TestRefresherSingleLeader(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOK, NewAccess: "a2"})

	var published []probe.RefreshOutcome
	var mu sync.Mutex
	r := NewRefresher(backend, time.Second, func(_ context.Context, _ string, out probe.RefreshOutcome) {
		mu.Lock()
		published = append(published, out)
		mu.Unlock()
	})

	const n = 16
	type result struct {
		out    probe.RefreshOutcome
		shared bool
	}
	results := make(chan result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, shared := r.Do(context.Background(), "s1", "r1")
			results <- result{out, shared}
		}()
	}

	waitFor(t, "round start", func() bool { return r.InFlight() == 1 })
	time.Sleep(50 * time.Millisecond)
	close(backend.gate)
	wg.Wait()
	close(results)

	leaders := 0
	for res := range results {
		if res.out.Status != probe.StatusOK || res.out.NewAccess != "a2" {
			t.Fatalf("unexpected outcome: %+v", res.out)
		}
		if !res.shared {
			leaders++
		}
	}
	if leaders != 1 {
		t.Fatalf("expected one leader, got %d", leaders)
	}
	if len(published) != 1 {
		t.Fatalf("expected one publish, got %d", len(published))
	}
	if r.InFlight() != 0 {
		t.Fatalf("expected no round in flight, got %d", r.InFlight())
	}
}

func TestCallerCancellationDoesNotCancelRound(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOK, NewAccess: "a2"})
	engine, store, _ := newTestEngine(t, backend)
	seed(t, store, "s1", "r1", "")

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Decision, 1)
	go func() { first <- engine.Authorize(ctx, "s1") }()
	<-backend.started

	second := make(chan Decision, 1)
	go func() { second <- engine.Authorize(context.Background(), "s1") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	d := <-first
	if d.Kind != DenyMaintenance || d.Code != CodeCanceled {
		t.Fatalf("expected DenyMaintenance(canceled) for the canceled caller, got %v", d)
	}

	close(backend.gate)
	d = <-second
	if d.Kind != Allow || d.Access != "a2" {
		t.Fatalf("expected the round to complete for the other caller, got %v", d)
	}
	if got, _ := currentAccess(t, store, "s1"); got != "a2" {
		t.Fatalf("expected the round to publish a2, got %q", got)
	}
	if got := backend.refresh.Load(); got != 1 {
		t.Fatalf("expected one backend refresh, got %d", got)
	}
}

func TestAlreadyCanceledCallerStartsNoRound(t *testing.T) {
	backend := newFakeBackend()
	r := NewRefresher(backend, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _ := r.Do(ctx, "s1", "r1")
	if out.Status != probe.StatusOther || !errors.Is(out.Err, ErrRefreshWaitCanceled) {
		t.Fatalf("expected canceled outcome, got %+v", out)
	}
	if backend.refresh.Load() != 0 {
		t.Fatal("expected no backend call")
	}
}

func TestLeaderFailureBroadcast(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOther, Err: probe.ErrTransport})
	engine, store, _ := newTestEngine(t, backend)
	seed(t, store, "s1", "r1", "")

	const n = 8
	decisions := make(chan Decision, n)
	for i := 0; i < n; i++ {
		go func() { decisions <- engine.Authorize(context.Background(), "s1") }()
	}
	<-backend.started
	time.Sleep(30 * time.Millisecond)
	close(backend.gate)

	for i := 0; i < n; i++ {
		d := <-decisions
		if d.Kind != DenyMaintenance || d.Code != CodeRefreshError {
			t.Fatalf("expected DenyMaintenance(refresh-error), got %v", d)
		}
	}
	if got := backend.refresh.Load(); got != 1 {
		t.Fatalf("expected one backend refresh, got %d", got)
	}
}

func TestLeaderPanicIsContained(t *testing.T) {
	backend := newFakeBackend()
	backend.panicOn = true
	engine, store, _ := newTestEngine(t, backend)
	seed(t, store, "s1", "r1", "")

	d := engine.Authorize(context.Background(), "s1")
	if d.Kind != DenyMaintenance || d.Code != CodeRefreshError {
		t.Fatalf("expected DenyMaintenance(refresh-error) after panic, got %v", d)
	}
	if _, ok, _ := store.Get(context.Background(), "s1", credential.KindRefresh); !ok {
		t.Fatal("panic must not clear the session")
	}
}

func TestLeaderTimeoutIsOther(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	defer close(backend.gate)

	r := NewRefresher(backend, 30*time.Millisecond, nil)
	out, shared := r.Do(context.Background(), "s1", "r1")
	if out.Status != probe.StatusOther || shared {
		t.Fatalf("expected leader timeout as Other, got %+v shared=%v", out, shared)
	}
}

func TestNewRoundAfterClosedRound(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOther, Err: probe.ErrTransport})
	engine, store, _ := newTestEngine(t, backend)
	seed(t, store, "s1", "r1", "")

	for i := 0; i < 2; i++ {
		if d := engine.Authorize(context.Background(), "s1"); d.Code != CodeRefreshError {
			t.Fatalf("call %d: expected refresh-error, got %v", i, d)
		}
	}
	if got := backend.refresh.Load(); got != 2 {
		t.Fatalf("expected a new leader per closed round (2 calls), got %d", got)
	}
}

func TestRefreshThrottleLocal(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOther, Err: probe.ErrTransport})
	engine, store, _ := newTestEngine(t, backend, func(b *Builder) {
		b.WithRefreshThrottle(1, time.Minute)
	})
	seed(t, store, "s1", "r1", "")

	if d := engine.Authorize(context.Background(), "s1"); d.Code != CodeRefreshError {
		t.Fatalf("expected refresh-error first, got %v", d)
	}
	if d := engine.Authorize(context.Background(), "s1"); d.Code != CodeRefreshThrottled {
		t.Fatalf("expected refresh-throttled second, got %v", d)
	}
	if got := backend.refresh.Load(); got != 1 {
		t.Fatalf("throttled round must not reach the backend, got %d calls", got)
	}
	if got := engine.MetricsSnapshot().Counters[MetricRefreshThrottled]; got != 1 {
		t.Fatalf("expected one throttled round, got %d", got)
	}
}

func TestRefreshThrottleRedis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	backend := newFakeBackend()
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOther, Err: probe.ErrTransport})
	engine, store, _ := newTestEngine(t, backend, func(b *Builder) {
		b.WithRedis(rdb).WithRefreshThrottle(1, time.Minute)
	})
	seed(t, store, "s1", "r1", "")

	_ = engine.Authorize(context.Background(), "s1")
	if d := engine.Authorize(context.Background(), "s1"); d.Code != CodeRefreshThrottled {
		t.Fatalf("expected refresh-throttled, got %v", d)
	}
	if !mr.Exists("gg:rr:s1") {
		t.Fatal("expected redis throttle counter")
	}

	if err := engine.Logout(context.Background(), "s1"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if mr.Exists("gg:rr:s1") {
		t.Fatal("expected logout to reset the throttle counter")
	}
}

func TestRotatedRefreshStartsSeparateRound(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOK, NewAccess: "a2"})
	r := NewRefresher(backend, time.Second, nil)

	done := make(chan struct{}, 2)
	go func() { r.Do(context.Background(), "s1", "r1"); done <- struct{}{} }()
	go func() { r.Do(context.Background(), "s1", "r2"); done <- struct{}{} }()

	waitFor(t, "two rounds", func() bool { return r.InFlight() == 2 })
	close(backend.gate)
	<-done
	<-done
	if got := backend.refresh.Load(); got != 2 {
		t.Fatalf("expected two rounds for two refresh credentials, got %d", got)
	}
}

// lateBackend answers just after the leader's refresh deadline has passed.
func lateBackend(out probe.RefreshOutcome, calls *atomic.Int64) probe.Funcs {
	return probe.Funcs{
		ValidateFunc: func(_ context.Context, access string) probe.ValidationResult {
			if access == "X" {
				return probe.ValidationResult{Status: probe.StatusOK, Approved: true}
			}
			return probe.ValidationResult{Status: probe.StatusUnauthorized}
		},
		RefreshFunc: func(ctx context.Context, _ string) probe.RefreshOutcome {
			calls.Add(1)
			if deadline, ok := ctx.Deadline(); ok {
				time.Sleep(time.Until(deadline) + time.Millisecond)
			}
			return out
		},
	}
}

func newLateEngine(t *testing.T, p probe.Probe, store credential.Store) *Engine {
	t.Helper()
	logger, _ := logtest.NewNullLogger()

	cfg := DefaultConfig()
	cfg.Probe.RefreshTimeout = 200 * time.Millisecond
	cfg.Refresh.Timeout = 200 * time.Millisecond
	engine, err := New().WithConfig(cfg).WithProbe(p).WithStore(store).WithLogger(logger).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestRefreshAnsweredAtDeadlineIsStillStored(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := credential.NewRedisStore(rdb, "gg", time.Hour, nil)
	seed(t, store, "s1", "r1", "a1")

	var calls atomic.Int64
	engine := newLateEngine(t, lateBackend(probe.RefreshOutcome{Status: probe.StatusOK, NewAccess: "X"}, &calls), store)

	d := engine.Authorize(context.Background(), "s1")
	if d.Kind != Allow || d.Access != "X" {
		t.Fatalf("expected Allow(X), got %v", d)
	}
	if got, _ := currentAccess(t, store, "s1"); got != "X" {
		t.Fatalf("expected store to hold X after the round, got %q", got)
	}

	if d := engine.Authorize(context.Background(), "s1"); d.Kind != Allow {
		t.Fatalf("expected stored credential to validate, got %v", d)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single backend refresh, got %d", got)
	}
}

func TestDeadRefreshAnsweredAtDeadlineStillClears(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := credential.NewRedisStore(rdb, "gg", time.Hour, nil)
	seed(t, store, "s1", "r1", "a1")

	var calls atomic.Int64
	engine := newLateEngine(t, lateBackend(probe.RefreshOutcome{Status: probe.StatusNotFound}, &calls), store)

	if d := engine.Authorize(context.Background(), "s1"); d.Kind != DenyRedirectLogin {
		t.Fatalf("expected DenyRedirectLogin, got %v", d)
	}
	if _, ok, err := store.Get(context.Background(), "s1", credential.KindRefresh); ok || err != nil {
		t.Fatalf("expected the dead session to be cleared, ok=%v err=%v", ok, err)
	}
}

func TestPublishRunsOnFreshDeadline(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOK, NewAccess: "a2"})

	var remaining time.Duration
	r := NewRefresher(backend, 50*time.Millisecond, func(ctx context.Context, _ string, _ probe.RefreshOutcome) {
		if deadline, ok := ctx.Deadline(); ok {
			remaining = time.Until(deadline)
		}
	})
	r.publishTimeout = time.Second

	r.Do(context.Background(), "s1", "r1")
	if remaining <= 500*time.Millisecond {
		t.Fatalf("expected publish deadline from publishTimeout, %v left", remaining)
	}
}

func TestLogoutResetsLocalThrottle(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshTo(probe.RefreshOutcome{Status: probe.StatusOther, Err: probe.ErrTransport})
	engine, store, _ := newTestEngine(t, backend, func(b *Builder) {
		b.WithRefreshThrottle(1, time.Hour)
	})
	seed(t, store, "s1", "r1", "")

	_ = engine.Authorize(context.Background(), "s1")
	if d := engine.Authorize(context.Background(), "s1"); d.Code != CodeRefreshThrottled {
		t.Fatalf("expected refresh-throttled, got %v", d)
	}

	if err := engine.Logout(context.Background(), "s1"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	seed(t, store, "s1", "r1", "")
	if d := engine.Authorize(context.Background(), "s1"); d.Code != CodeRefreshError {
		t.Fatalf("expected a new round after logout, got %v", d)
	}
	if got := backend.refresh.Load(); got != 2 {
		t.Fatalf("expected two backend refreshes, got %d", got)
	}
}
