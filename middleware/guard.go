package middleware

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
)

// DefaultCookieName is the session cookie read when Options.CookieName is empty.
const DefaultCookieName = "goguard_session"

// RequestIDHeader is copied into the engine context for audit correlation.
const RequestIDHeader = "X-Request-ID"

// Options configures HTTP mapping of guard decisions.
type Options struct {
	CookieName string
	// SessionIDFunc overrides cookie extraction.
	SessionIDFunc func(*http.Request) (string, bool)

	LoginURL           string
	PendingApprovalURL string
	MaintenanceURL     string

	// TrustForwardedFor takes the client IP from the first X-Forwarded-For hop.
	TrustForwardedFor bool
}

type decisionContextKey struct{}

// DecisionFromContext returns the Allow decision attached by a guard.
func DecisionFromContext(ctx context.Context) (goGuard.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(goGuard.Decision)
	return d, ok
}

// Guard returns net/http middleware enforcing engine decisions.
func Guard(engine *goGuard.Engine, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, ctx := authorize(engine, opts, r)
			if d.Kind != goGuard.Allow {
				deny(w, r, opts, d)
				return
			}

			fwd := r.Clone(ctx)
			fwd.Header.Set("Authorization", engine.AuthorizationValue(d.Access))
			next.ServeHTTP(w, fwd)
		})
	}
}

func authorize(engine *goGuard.Engine, opts Options, r *http.Request) (goGuard.Decision, context.Context) {
	ctx := r.Context()
	if ip := clientIP(r, opts.TrustForwardedFor); ip != "" {
		ctx = goGuard.WithClientIP(ctx, ip)
	}
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		ctx = goGuard.WithRequestID(ctx, id)
	}
	if engine == nil {
		return goGuard.Decision{Kind: goGuard.DenyRedirectLogin}, ctx
	}

	sessionID, ok := sessionIDFrom(r, opts)
	if !ok {
		return goGuard.Decision{Kind: goGuard.DenyRedirectLogin}, ctx
	}

	d := engine.Authorize(ctx, sessionID)
	if d.Kind == goGuard.Allow {
		ctx = context.WithValue(ctx, decisionContextKey{}, d)
	}
	return d, ctx
}

func sessionIDFrom(r *http.Request, opts Options) (string, bool) {
	if opts.SessionIDFunc != nil {
		return opts.SessionIDFunc(r)
	}
	name := opts.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func deny(w http.ResponseWriter, r *http.Request, opts Options, d goGuard.Decision) {
	switch d.Kind {
	case goGuard.AllowPendingApproval:
		if opts.PendingApprovalURL != "" {
			http.Redirect(w, r, opts.PendingApprovalURL, http.StatusFound)
			return
		}
		http.Error(w, "pending approval", http.StatusForbidden)
	case goGuard.DenyMaintenance:
		if opts.MaintenanceURL != "" {
			http.Redirect(w, r, withCode(opts.MaintenanceURL, string(d.Code)), http.StatusFound)
			return
		}
		http.Error(w, "maintenance: "+string(d.Code), http.StatusServiceUnavailable)
	default:
		if opts.LoginURL != "" && isNavigation(r) {
			http.Redirect(w, r, opts.LoginURL, http.StatusFound)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func withCode(target, code string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// isNavigation reports whether r looks like a top-level browser page load.
func isNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
