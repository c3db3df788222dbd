package goGuard

import "strconv"

// DecisionKind is the verdict of one [Engine.Authorize] call.
type DecisionKind uint8

const (
	// DenyRedirectLogin asks the caller to re-authenticate. It is the zero value,
	// so an uninitialised Decision never lets a request through.
	DenyRedirectLogin DecisionKind = iota
	// Allow lets the request through with Decision.Access.
	Allow
	// AllowPendingApproval means the credentials are valid but the account is
	// not approved yet.
	AllowPendingApproval
	// DenyMaintenance reports a transient backend failure; see Decision.Code.
	DenyMaintenance
)

func (k DecisionKind) String() string {
	switch k {
	case DenyRedirectLogin:
		return "deny_redirect_login"
	case Allow:
		return "allow"
	case AllowPendingApproval:
		return "allow_pending_approval"
	case DenyMaintenance:
		return "deny_maintenance"
	default:
		return "decision(" + strconv.Itoa(int(k)) + ")"
	}
}

// MaintenanceCode explains a DenyMaintenance decision. Codes never carry
// credentials or backend response bodies.
type MaintenanceCode string

const (
	CodeNone             MaintenanceCode = ""
	CodeValidateError    MaintenanceCode = "validate-error"
	CodeRefreshError     MaintenanceCode = "refresh-error"
	CodeRefreshThrottled MaintenanceCode = "refresh-throttled"
	CodeCanceled         MaintenanceCode = "canceled"
	CodeRevalidateError  MaintenanceCode = "revalidate-error"
)

// Decision is the only value returned by [Engine.Authorize].
type Decision struct {
	Kind DecisionKind
	// Access is set only for Allow.
	Access string
	// Code is set only for DenyMaintenance.
	Code MaintenanceCode
}

// Allowed reports whether the request may proceed with Access.
func (d Decision) Allowed() bool { return d.Kind == Allow }

// String renders the decision without the access credential.
func (d Decision) String() string {
	switch d.Kind {
	case Allow:
		return "allow(access=<redacted>)"
	case DenyMaintenance:
		return "deny_maintenance(" + string(d.Code) + ")"
	default:
		return d.Kind.String()
	}
}

// GoString keeps %#v from printing the access credential.
func (d Decision) GoString() string { return "goGuard.Decision{" + d.String() + "}" }

func allowDecision(access string) Decision {
	return Decision{Kind: Allow, Access: access}
}

func maintenanceDecision(code MaintenanceCode) Decision {
	return Decision{Kind: DenyMaintenance, Code: code}
}
