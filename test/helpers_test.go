//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns miniredis, plus a real server when REDIS_ADDR is set
// (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{{
		name: "miniredis",
		setup: func(t *testing.T) redis.UniversalClient {
			t.Helper()
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis: %v", err)
			}
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close(); mr.Close() })
			return rdb
		},
	}}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				// Flush the test DB to avoid state leaking between runs.
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}
	return modes
}

// authBackend is an httptest service speaking the default validate/refresh
// contract with raw Authorization values.
type authBackend struct {
	srv *httptest.Server

	mu      sync.Mutex
	valid   map[string]bool // access -> approved
	refresh map[string]string
	down    bool
	hold    chan struct{}

	calls  atomic.Int64
	minted atomic.Int64
}

func newAuthBackend(t *testing.T) *authBackend {
	t.Helper()
	b := &authBackend{valid: map[string]bool{}, refresh: map[string]string{}}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *authBackend) serve(w http.ResponseWriter, r *http.Request) {
	cred := r.Header.Get("Authorization")

	b.mu.Lock()
	down, hold := b.down, b.hold
	b.mu.Unlock()
	if down {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	switch r.URL.Path {
	case "/whoami":
		b.mu.Lock()
		approved, ok := b.valid[cred]
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if approved {
			_, _ = w.Write([]byte(`{"isApproved":true}`))
		} else {
			_, _ = w.Write([]byte(`{"isApproved":false}`))
		}
	case "/auth/refresh":
		b.calls.Add(1)
		if hold != nil {
			<-hold
		}
		b.mu.Lock()
		user, ok := b.refresh[cred]
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		access := fmt.Sprintf("acc-%s-%d", user, b.minted.Add(1))
		b.mu.Lock()
		b.valid[access] = true
		b.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(access))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *authBackend) grant(refresh, user string) {
	b.mu.Lock()
	b.refresh[refresh] = user
	b.mu.Unlock()
}

func (b *authBackend) setValid(access string, approved bool) {
	b.mu.Lock()
	b.valid[access] = approved
	b.mu.Unlock()
}

func (b *authBackend) setDown(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
}
