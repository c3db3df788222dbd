package goGuard

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/credential"
	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/probe"
	"github.com/sirupsen/logrus"
)

// Engine is the session guard. It owns the credential store and the refresh
// rounds of every session it guards; all methods are safe for concurrent use.
type Engine struct {
	config    Config
	store     credential.Store
	probe     probe.Probe
	refresher *Refresher
	inspector *jwt.Inspector
	throttle  rate.Limiter
	audit     *audit.Dispatcher
	metrics   *Metrics
	log       logrus.FieldLogger
	flows     flows.Deps
}

type throttleResetter interface {
	Reset(ctx context.Context, sessionID string) error
}

func (e *Engine) initFlows() {
	e.flows = flows.Deps{
		Authorize: flows.AuthorizeDeps{
			ReadCredential:         e.store.Get,
			Validate:               e.validate,
			Refresh:                e.refresher.Do,
			RevalidateAfterRefresh: e.config.Refresh.RevalidateAfterRefresh,
			DetectDivergence:       e.config.Refresh.DetectDivergence,
			CheckSessionID:         internal.CheckSessionID,
			OnStorageError:         e.storageWarn,
			ThrottledErr:           ErrRefreshThrottled,
			CanceledErr:            ErrRefreshWaitCanceled,
		},
		Logout: flows.LogoutDeps{
			ClearAll: e.store.ClearAll,
			Warn: func(msg, sessionID string, err error) {
				e.log.WithField("session_id", sessionID).WithError(err).Warn(msg)
			},
		},
	}
	if e.inspector != nil {
		e.flows.Authorize.AccessExpired = e.inspector.Expired
	}
	if r, ok := e.throttle.(throttleResetter); ok {
		e.flows.Logout.ResetThrottle = r.Reset
	}
}

// Authorize decides whether the caller holding sessionID may proceed.
//
// Absent refresh credential: DenyRedirectLogin with no backend call. Valid
// access: Allow or AllowPendingApproval after one validate. Rejected or absent
// access: one shared refresh round, then Allow with the fresh access
// credential, DenyRedirectLogin when the refresh credential is dead (the
// session is cleared), or DenyMaintenance on transient failure. Store read
// failures count as absent credentials.
func (e *Engine) Authorize(ctx context.Context, sessionID string) Decision {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	res := flows.RunAuthorize(ctx, sessionID, e.flows.Authorize)
	d := decisionFor(res)

	e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	switch d.Kind {
	case Allow:
		e.metricInc(MetricAuthorizeAllow)
	case AllowPendingApproval:
		e.metricInc(MetricAuthorizePendingApproval)
	case DenyMaintenance:
		e.metricInc(MetricAuthorizeMaintenance)
	default:
		e.metricInc(MetricAuthorizeRedirectLogin)
	}
	if res.EarlyExpiry {
		e.metricInc(MetricEarlyExpiry)
	}
	if res.Diverged {
		e.metricInc(MetricDivergence)
	}

	if d.Kind == DenyMaintenance {
		entry := e.log.WithFields(logrus.Fields{"session_id": sessionID, "code": string(d.Code)})
		if res.Err != nil {
			entry = entry.WithError(res.Err)
		}
		entry.Warn("goGuard: authorize denied for maintenance")
	}
	e.emitAuthorize(ctx, sessionID, d, res)
	return d
}

func decisionFor(res flows.AuthorizeResult) Decision {
	switch res.Verdict {
	case flows.VerdictAllow:
		return allowDecision(res.Access)
	case flows.VerdictPendingApproval:
		return Decision{Kind: AllowPendingApproval}
	case flows.VerdictMaintenance:
		switch res.Failure {
		case flows.AuthorizeFailureValidate:
			return maintenanceDecision(CodeValidateError)
		case flows.AuthorizeFailureThrottled:
			return maintenanceDecision(CodeRefreshThrottled)
		case flows.AuthorizeFailureCanceled:
			return maintenanceDecision(CodeCanceled)
		case flows.AuthorizeFailureRevalidate:
			return maintenanceDecision(CodeRevalidateError)
		default:
			return maintenanceDecision(CodeRefreshError)
		}
	default:
		return Decision{Kind: DenyRedirectLogin}
	}
}

// Establish stores a freshly issued credential pair under sessionID,
// superseding any previous values. access may be empty; the first Authorize
// then refreshes.
func (e *Engine) Establish(ctx context.Context, sessionID, refresh, access string) error {
	if err := internal.CheckSessionID(sessionID); err != nil {
		return ErrSessionID
	}
	if refresh == "" {
		return ErrMissingCredential
	}
	if err := e.store.SetPair(ctx, sessionID, refresh, access); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, audit.Event{Type: audit.TypeSessionCreated, SessionID: sessionID, Success: true})
	return nil
}

// NewSession mints a session ID and establishes the pair under it.
func (e *Engine) NewSession(ctx context.Context, refresh, access string) (string, error) {
	sessionID, err := internal.NewSessionID()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	if err := e.Establish(ctx, sessionID, refresh, access); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Logout destroys both credentials of the session. Rounds already in flight
// still publish; a later Authorize finds no refresh credential.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if err := internal.CheckSessionID(sessionID); err != nil {
		return ErrSessionID
	}
	if err := flows.RunLogout(ctx, sessionID, e.flows.Logout); err != nil {
		e.emitAudit(ctx, audit.Event{Type: audit.TypeLogout, SessionID: sessionID, Error: err.Error()})
		return fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, audit.Event{Type: audit.TypeLogout, SessionID: sessionID, Success: true})
	return nil
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// EnsureSchema creates the store's backing schema when the store has one
// (the Postgres store); for other stores it does nothing.
func (e *Engine) EnsureSchema(ctx context.Context) error {
	if s, ok := e.store.(schemaEnsurer); ok {
		return s.EnsureSchema(ctx)
	}
	return nil
}

// Close flushes pending audit events. The store and probe are owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports audit events dropped because of dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Refresher exposes the engine's refresh deduplicator.
func (e *Engine) Refresher() *Refresher { return e.refresher }

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) validate(ctx context.Context, access string) (vr probe.ValidationResult) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Probe.ValidateTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Errorf("goGuard: validate panicked: %v", rec)
			vr = probe.ValidationResult{Status: probe.StatusOther, Err: probe.ErrPanic}
		}
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
		switch vr.Status {
		case probe.StatusOK:
			e.metricInc(MetricValidateOK)
		case probe.StatusUnauthorized:
			e.metricInc(MetricValidateUnauthorized)
		default:
			e.metricInc(MetricValidateOther)
		}
	}()

	vr = e.probe.Validate(ctx, access)
	if vr.Status != probe.StatusOK {
		vr.Approved = false
	}
	return vr
}

// publishRefresh commits a round's outcome. A failed write after a successful
// refresh is logged and the round still reports Allow to its callers.
func (e *Engine) publishRefresh(ctx context.Context, sessionID string, out probe.RefreshOutcome) {
	ev := audit.Event{
		Type:      audit.TypeRefresh,
		SessionID: sessionID,
		Success:   out.Status == probe.StatusOK,
		Metadata:  map[string]string{"status": out.Status.String()},
	}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}

	switch out.Status {
	case probe.StatusOK:
		if out.NewAccess == "" {
			break
		}
		if err := e.store.Set(ctx, sessionID, credential.KindAccess, out.NewAccess); err != nil {
			e.metricInc(MetricStorageError)
			e.log.WithField("session_id", sessionID).WithError(err).Warn("goGuard: storing refreshed access credential failed")
		}
	case probe.StatusNotFound:
		if err := e.store.ClearAll(ctx, sessionID); err != nil {
			e.metricInc(MetricStorageError)
			e.log.WithField("session_id", sessionID).WithError(err).Warn("goGuard: clearing dead session failed")
		} else {
			e.metricInc(MetricSessionCleared)
			e.emitAudit(ctx, audit.Event{Type: audit.TypeSessionCleared, SessionID: sessionID, Success: true})
		}
	}
	e.emitAudit(ctx, ev)
}

func (e *Engine) storageWarn(sessionID string, kind credential.Kind, err error) {
	e.metricInc(MetricStorageError)
	e.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"credential": kind.String(),
	}).WithError(err).Warn("goGuard: credential read failed, treating as absent")
}
