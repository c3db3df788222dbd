package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goGuard.MetricAuthorizeAllow, Name: "goguard_authorize_allow_total", Help: "Authorize calls that allowed the request."},
	{ID: goGuard.MetricAuthorizePendingApproval, Name: "goguard_authorize_pending_approval_total", Help: "Authorize calls with a valid but unapproved session."},
	{ID: goGuard.MetricAuthorizeRedirectLogin, Name: "goguard_authorize_redirect_login_total", Help: "Authorize calls denied for missing or dead credentials."},
	{ID: goGuard.MetricAuthorizeMaintenance, Name: "goguard_authorize_maintenance_total", Help: "Authorize calls denied for transient backend failure."},
	{ID: goGuard.MetricValidateOK, Name: "goguard_validate_ok_total", Help: "Validate calls answered 2xx."},
	{ID: goGuard.MetricValidateUnauthorized, Name: "goguard_validate_unauthorized_total", Help: "Validate calls answered 401."},
	{ID: goGuard.MetricValidateOther, Name: "goguard_validate_other_total", Help: "Validate calls that failed otherwise."},
	{ID: goGuard.MetricRefreshCall, Name: "goguard_refresh_calls_total", Help: "Backend refresh calls made by round leaders."},
	{ID: goGuard.MetricRefreshShared, Name: "goguard_refresh_shared_total", Help: "Callers that joined a refresh round led by another caller."},
	{ID: goGuard.MetricRefreshSuccess, Name: "goguard_refresh_success_total", Help: "Refresh calls that returned a new access credential."},
	{ID: goGuard.MetricRefreshDead, Name: "goguard_refresh_dead_total", Help: "Refresh calls that reported a dead refresh credential."},
	{ID: goGuard.MetricRefreshFailure, Name: "goguard_refresh_failure_total", Help: "Refresh calls that failed transiently."},
	{ID: goGuard.MetricRefreshThrottled, Name: "goguard_refresh_throttled_total", Help: "Refresh rounds rejected by the throttle."},
	{ID: goGuard.MetricRefreshWaitCanceled, Name: "goguard_refresh_wait_canceled_total", Help: "Callers that stopped waiting for a refresh round."},
	{ID: goGuard.MetricEarlyExpiry, Name: "goguard_early_expiry_total", Help: "Access credentials treated as expired without a validate call."},
	{ID: goGuard.MetricDivergence, Name: "goguard_divergence_total", Help: "Rejected access credentials superseded by a newer stored one."},
	{ID: goGuard.MetricStorageError, Name: "goguard_storage_error_total", Help: "Credential store read or write failures."},
	{ID: goGuard.MetricSessionCreated, Name: "goguard_session_created_total", Help: "Sessions established."},
	{ID: goGuard.MetricSessionCleared, Name: "goguard_session_cleared_total", Help: "Sessions cleared after a dead refresh credential."},
	{ID: goGuard.MetricLogout, Name: "goguard_logout_total", Help: "Logout operations."},
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricAuthorizeLatency, Name: "goguard_authorize_latency_seconds", Help: "Authorize latency histogram."},
	{ID: goGuard.MetricValidateLatency, Name: "goguard_validate_latency_seconds", Help: "Backend validate latency histogram."},
	{ID: goGuard.MetricRefreshLatency, Name: "goguard_refresh_latency_seconds", Help: "Backend refresh latency histogram."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "goguard_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds; the eighth
// bucket is +Inf.
var HistogramUpperBounds = [7]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
