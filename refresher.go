package goGuard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/probe"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// PublishFunc commits a round's outcome (store update or clear). It runs on
// the leader goroutine before any waiter of the round is released.
type PublishFunc func(ctx context.Context, sessionID string, out probe.RefreshOutcome)

// Refresher deduplicates concurrent refreshes of the same session: one backend
// call per round, and every caller of the round gets the same outcome.
//
// A round is keyed by session ID and a digest of the refresh credential. The
// leader runs detached from its caller's cancellation and bounded by the
// refresh timeout, so a caller that gives up never cancels the round for the
// others. Publishing gets its own deadline, started once the backend call
// returns. Refresher never retries.
type Refresher struct {
	group   singleflight.Group
	probe   probe.Probe
	publish PublishFunc
	timeout time.Duration
	// publishTimeout bounds the store write that commits a round.
	publishTimeout time.Duration

	throttle rate.Limiter
	metrics  *Metrics
	log      logrus.FieldLogger

	inflight atomic.Int64
}

// NewRefresher builds a Refresher around p. publish may be nil.
func NewRefresher(p probe.Probe, timeout time.Duration, publish PublishFunc) *Refresher {
	if timeout <= 0 {
		timeout = defaultConfig().Refresh.Timeout
	}
	return &Refresher{
		probe:          p,
		publish:        publish,
		timeout:        timeout,
		publishTimeout: defaultConfig().Refresh.PublishTimeout,
		log:            logrus.StandardLogger(),
	}
}

// Do joins or starts the refresh round for (sessionID, refresh). shared is true
// when the caller did not lead the round.
//
// When ctx ends before the round closes, Do returns StatusOther wrapping
// [ErrRefreshWaitCanceled]; the round keeps running and still publishes.
func (r *Refresher) Do(ctx context.Context, sessionID, refresh string) (probe.RefreshOutcome, bool) {
	if err := ctx.Err(); err != nil {
		return canceledOutcome(err), false
	}

	var led atomic.Bool
	ch := r.group.DoChan(internal.FlightKey(sessionID, refresh), func() (any, error) {
		led.Store(true)
		return r.lead(ctx, sessionID, refresh), nil
	})

	select {
	case res := <-ch:
		out, _ := res.Val.(probe.RefreshOutcome)
		shared := !led.Load()
		if shared && r.metrics != nil {
			r.metrics.Inc(MetricRefreshShared)
		}
		return out, shared
	case <-ctx.Done():
		if r.metrics != nil {
			r.metrics.Inc(MetricRefreshWaitCanceled)
		}
		return canceledOutcome(ctx.Err()), !led.Load()
	}
}

// InFlight reports the number of rounds currently running.
func (r *Refresher) InFlight() int64 {
	return r.inflight.Load()
}

func canceledOutcome(err error) probe.RefreshOutcome {
	return probe.RefreshOutcome{
		Status: probe.StatusOther,
		Err:    fmt.Errorf("%w: %v", ErrRefreshWaitCanceled, err),
	}
}

// lead runs exactly once per round. It must not panic: singleflight re-panics
// on another goroutine and would take the process down.
func (r *Refresher) lead(callerCtx context.Context, sessionID, refresh string) (out probe.RefreshOutcome) {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	detached := context.WithoutCancel(callerCtx)

	callCtx, cancelCall := context.WithTimeout(detached, r.timeout)
	out = r.call(callCtx, sessionID, refresh)
	cancelCall()

	if r.publish != nil {
		r.commit(detached, sessionID, out)
	}
	return out
}

// commit publishes on a fresh deadline: a backend that answers at the end of
// the refresh window must still get its credential stored.
func (r *Refresher) commit(detached context.Context, sessionID string, out probe.RefreshOutcome) {
	ctx, cancel := context.WithTimeout(detached, r.publishTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("session_id", sessionID).Errorf("goGuard: refresh publish panicked: %v", rec)
		}
	}()
	r.publish(ctx, sessionID, out)
}

func (r *Refresher) call(ctx context.Context, sessionID, refresh string) (out probe.RefreshOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("session_id", sessionID).Errorf("goGuard: refresh leader panicked: %v", rec)
			out = probe.RefreshOutcome{Status: probe.StatusOther, Err: ErrRefreshPanicked}
		}
	}()

	if r.throttle != nil {
		if err := r.throttle.CheckRefresh(ctx, sessionID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				if r.metrics != nil {
					r.metrics.Inc(MetricRefreshThrottled)
				}
				return probe.RefreshOutcome{
					Status: probe.StatusOther,
					Err:    fmt.Errorf("%w: %v", ErrRefreshThrottled, err),
				}
			}
			// Throttle backend outage: proceed unthrottled.
			r.log.WithField("session_id", sessionID).WithError(err).Warn("goGuard: refresh throttle unavailable")
		}
	}

	if r.metrics != nil {
		r.metrics.Inc(MetricRefreshCall)
	}
	start := time.Now()
	out = r.probe.Refresh(ctx, refresh)
	if r.metrics != nil {
		r.metrics.Observe(MetricRefreshLatency, time.Since(start))
		switch out.Status {
		case probe.StatusOK:
			r.metrics.Inc(MetricRefreshSuccess)
		case probe.StatusNotFound:
			r.metrics.Inc(MetricRefreshDead)
		default:
			r.metrics.Inc(MetricRefreshFailure)
		}
	}

	if out.Status == probe.StatusOther && out.Err == nil && ctx.Err() != nil {
		out.Err = fmt.Errorf("%w: %v", probe.ErrTransport, ctx.Err())
	}
	return out
}
