package goGuard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/credential"
	"github.com/MrEthical07/goGuard/probe"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// fakeBackend is a scriptable probe. Unknown access credentials validate as
// Unauthorized.
type fakeBackend struct {
	mu       sync.Mutex
	valid    map[string]probe.ValidationResult
	outcome  probe.RefreshOutcome
	panicOn  bool
	validate atomic.Int64
	refresh  atomic.Int64

	// gate, when set, holds every refresh call until closed.
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		valid:   map[string]probe.ValidationResult{},
		started: make(chan struct{}),
	}
}

func (f *fakeBackend) approve(access string, approved bool) {
	f.mu.Lock()
	f.valid[access] = probe.ValidationResult{Status: probe.StatusOK, Approved: approved}
	f.mu.Unlock()
}

func (f *fakeBackend) setValidation(access string, vr probe.ValidationResult) {
	f.mu.Lock()
	f.valid[access] = vr
	f.mu.Unlock()
}

func (f *fakeBackend) refreshTo(out probe.RefreshOutcome) {
	f.mu.Lock()
	f.outcome = out
	f.mu.Unlock()
}

func (f *fakeBackend) Validate(_ context.Context, access string) probe.ValidationResult {
	f.validate.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if vr, ok := f.valid[access]; ok {
		return vr
	}
	return probe.ValidationResult{Status: probe.StatusUnauthorized}
}

func (f *fakeBackend) Refresh(ctx context.Context, _ string) probe.RefreshOutcome {
	f.refresh.Add(1)
	f.once.Do(func() { close(f.started) })

	f.mu.Lock()
	gate, out, boom := f.gate, f.outcome, f.panicOn
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return probe.RefreshOutcome{Status: probe.StatusOther, Err: probe.ErrTransport}
		}
	}
	if boom {
		panic("backend exploded")
	}
	if out.Status == probe.StatusOK && out.NewAccess != "" {
		// a real backend would now accept the fresh credential
		f.mu.Lock()
		if _, ok := f.valid[out.NewAccess]; !ok {
			f.valid[out.NewAccess] = probe.ValidationResult{Status: probe.StatusOK, Approved: true}
		}
		f.mu.Unlock()
	}
	return out
}

// failingStore fails every read and delegates writes.
type failingStore struct {
	credential.Store
}

func (failingStore) Get(context.Context, string, credential.Kind) (string, bool, error) {
	return "", false, credential.ErrStorage
}

// writeFailingStore reads through and fails every write.
type writeFailingStore struct {
	credential.Store
}

func (writeFailingStore) Set(context.Context, string, credential.Kind, string) error {
	return credential.ErrStorage
}

func (writeFailingStore) Clear(context.Context, string, credential.Kind) error {
	return credential.ErrStorage
}

func (writeFailingStore) ClearAll(context.Context, string) error {
	return credential.ErrStorage
}

// schemaStore records EnsureSchema calls.
type schemaStore struct {
	credential.Store
	calls int
	err   error
}

func (s *schemaStore) EnsureSchema(context.Context) error {
	s.calls++
	return s.err
}

type testEngineOpt func(*Builder)

func newTestEngine(t *testing.T, backend *fakeBackend, opts ...testEngineOpt) (*Engine, *credential.MemoryStore, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	store := credential.NewMemoryStore(nil)

	b := New().
		WithProbe(backend).
		WithStore(store).
		WithLogger(logger).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, store, hook
}

func seed(t *testing.T, store credential.Store, sessionID, refresh, access string) {
	t.Helper()
	if err := store.SetPair(context.Background(), sessionID, refresh, access); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func currentAccess(t *testing.T, store credential.Store, sessionID string) (string, bool) {
	t.Helper()
	v, ok, err := store.Get(context.Background(), sessionID, credential.KindAccess)
	if err != nil {
		t.Fatalf("store get failed: %v", err)
	}
	return v, ok
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
