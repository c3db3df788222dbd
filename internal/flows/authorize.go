package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/credential"
	"github.com/MrEthical07/goGuard/probe"
)

// AuthorizeVerdict is the terminal state reached by [RunAuthorize].
type AuthorizeVerdict int

const (
	VerdictRedirectLogin AuthorizeVerdict = iota
	VerdictAllow
	VerdictPendingApproval
	VerdictMaintenance
)

// AuthorizeFailureKind classifies non-allow outcomes for root-level mapping.
type AuthorizeFailureKind int

const (
	AuthorizeFailureNone AuthorizeFailureKind = iota
	AuthorizeFailureNoSession
	AuthorizeFailureNoRefresh
	AuthorizeFailureValidate
	AuthorizeFailureRefresh
	AuthorizeFailureThrottled
	AuthorizeFailureCanceled
	AuthorizeFailureDeadRefresh
	AuthorizeFailureRevalidate
)

// AuthorizeResult carries the verdict plus the path taken to reach it.
type AuthorizeResult struct {
	Verdict AuthorizeVerdict
	Failure AuthorizeFailureKind
	Err     error
	Access  string

	Validations int
	Refreshed   bool
	Shared      bool
	EarlyExpiry bool
	Diverged    bool
}

// AuthorizeDeps captures authorize flow dependencies.
//
// Refresh is expected to commit its outcome (store update or clear) before it
// returns, for every caller sharing the round.
type AuthorizeDeps struct {
	ReadCredential func(ctx context.Context, sessionID string, kind credential.Kind) (string, bool, error)
	Validate       func(ctx context.Context, access string) probe.ValidationResult
	Refresh        func(ctx context.Context, sessionID, refresh string) (probe.RefreshOutcome, bool)

	// AccessExpired reports a locally detectable expiry; nil disables the check.
	AccessExpired func(access string) bool

	RevalidateAfterRefresh bool
	DetectDivergence       bool

	CheckSessionID func(string) error
	OnStorageError func(sessionID string, kind credential.Kind, err error)
	ThrottledErr   error
	CanceledErr    error
}

// RunAuthorize walks the session guard state machine once for sessionID.
func RunAuthorize(ctx context.Context, sessionID string, deps AuthorizeDeps) AuthorizeResult {
	if sessionID == "" {
		return AuthorizeResult{Verdict: VerdictRedirectLogin, Failure: AuthorizeFailureNoSession}
	}
	if deps.CheckSessionID != nil {
		if err := deps.CheckSessionID(sessionID); err != nil {
			return AuthorizeResult{Verdict: VerdictRedirectLogin, Failure: AuthorizeFailureNoSession, Err: err}
		}
	}

	refresh, ok := read(ctx, sessionID, credential.KindRefresh, deps)
	if !ok {
		return AuthorizeResult{Verdict: VerdictRedirectLogin, Failure: AuthorizeFailureNoRefresh}
	}

	var res AuthorizeResult
	access, ok := read(ctx, sessionID, credential.KindAccess, deps)
	if ok && deps.AccessExpired != nil && deps.AccessExpired(access) {
		res.EarlyExpiry = true
		ok = false
	}

	if ok {
		vr := deps.Validate(ctx, access)
		res.Validations++
		if done := applyValidation(&res, vr, access, AuthorizeFailureValidate); done {
			return res
		}

		if deps.DetectDivergence {
			// Another round may have published while this validate was in flight.
			current, present := read(ctx, sessionID, credential.KindAccess, deps)
			if present && current != access {
				res.Diverged = true
				vr = deps.Validate(ctx, current)
				res.Validations++
				if done := applyValidation(&res, vr, current, AuthorizeFailureValidate); done {
					return res
				}
			}
		}
	}

	out, shared := deps.Refresh(ctx, sessionID, refresh)
	res.Refreshed = true
	res.Shared = shared

	switch out.Status {
	case probe.StatusOK:
		if out.NewAccess == "" {
			res.Verdict = VerdictMaintenance
			res.Failure = AuthorizeFailureRefresh
			res.Err = probe.ErrMalformedBody
			return res
		}
		if !deps.RevalidateAfterRefresh {
			res.Verdict = VerdictAllow
			res.Access = out.NewAccess
			return res
		}
		vr := deps.Validate(ctx, out.NewAccess)
		res.Validations++
		if done := applyValidation(&res, vr, out.NewAccess, AuthorizeFailureRevalidate); done {
			return res
		}
		res.Verdict = VerdictMaintenance
		res.Failure = AuthorizeFailureRevalidate
		res.Err = vr.Err
		return res
	case probe.StatusNotFound:
		res.Verdict = VerdictRedirectLogin
		res.Failure = AuthorizeFailureDeadRefresh
		res.Err = out.Err
		return res
	default:
		res.Verdict = VerdictMaintenance
		res.Failure = AuthorizeFailureRefresh
		res.Err = out.Err
		switch {
		case deps.ThrottledErr != nil && errors.Is(out.Err, deps.ThrottledErr):
			res.Failure = AuthorizeFailureThrottled
		case deps.CanceledErr != nil && errors.Is(out.Err, deps.CanceledErr):
			res.Failure = AuthorizeFailureCanceled
		}
		return res
	}
}

// applyValidation settles res for OK and Other results. Unauthorized leaves
// res open so the caller can continue towards refresh.
func applyValidation(res *AuthorizeResult, vr probe.ValidationResult, access string, other AuthorizeFailureKind) bool {
	switch vr.Status {
	case probe.StatusOK:
		res.Access = access
		if vr.Approved {
			res.Verdict = VerdictAllow
		} else {
			res.Verdict = VerdictPendingApproval
		}
		return true
	case probe.StatusUnauthorized:
		return false
	default:
		res.Verdict = VerdictMaintenance
		res.Failure = other
		res.Err = vr.Err
		return true
	}
}

func read(ctx context.Context, sessionID string, kind credential.Kind, deps AuthorizeDeps) (string, bool) {
	v, ok, err := deps.ReadCredential(ctx, sessionID, kind)
	if err != nil {
		if deps.OnStorageError != nil {
			deps.OnStorageError(sessionID, kind, err)
		}
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
