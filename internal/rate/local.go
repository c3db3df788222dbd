package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// sweepEvery is how many CheckRefresh calls pass between idle sweeps.
const sweepEvery = 1024

// LocalLimiter keeps a token bucket per session: MaxRefreshAttempts burst,
// refilled evenly over RefreshCooldownDuration. A bucket idle for a whole
// window is full again, so CheckRefresh drops such buckets every sweepEvery
// calls without changing any outcome.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   rate.Limit
	burst   int
	window  time.Duration
	checks  int
	now     func() time.Time
}

// NewLocal creates a process-local [LocalLimiter].
func NewLocal(cfg Config) *LocalLimiter {
	burst := cfg.MaxRefreshAttempts
	if burst <= 0 {
		burst = 1
	}
	window := cfg.RefreshCooldownDuration
	if window <= 0 {
		window = time.Minute
	}
	return &LocalLimiter{
		buckets: make(map[string]*bucket),
		every:   rate.Every(window / time.Duration(burst)),
		burst:   burst,
		window:  window,
		now:     time.Now,
	}
}

// CheckRefresh consumes one token for the session.
func (l *LocalLimiter) CheckRefresh(_ context.Context, sessionID string) error {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[sessionID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[sessionID] = b
	}
	b.seen = now
	allowed := b.lim.AllowN(now, 1)

	l.checks++
	if l.checks >= sweepEvery {
		l.checks = 0
		l.sweepLocked(now.Add(-l.window))
	}
	l.mu.Unlock()

	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// Reset forgets the session's bucket.
func (l *LocalLimiter) Reset(_ context.Context, sessionID string) error {
	l.mu.Lock()
	delete(l.buckets, sessionID)
	l.mu.Unlock()
	return nil
}

// Sweep drops buckets not touched for longer than idle and returns how many remain.
func (l *LocalLimiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(cutoff)
	return len(l.buckets)
}

func (l *LocalLimiter) sweepLocked(cutoff time.Time) {
	for k, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// Len reports the number of tracked sessions.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
