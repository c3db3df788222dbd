package goGuard

import (
	"net/http"
	"strings"
)

// DeniedError is returned by guard-backed transports and token sources when
// Authorize does not allow the call.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	return "goGuard: request denied: " + e.Decision.String()
}

// Transport returns an http.RoundTripper that authorizes sessionID before every
// request and attaches the allowed access credential as the Authorization
// header. Denials fail the request with *DeniedError without contacting the
// upstream. A nil base uses http.DefaultTransport.
func (e *Engine) Transport(base http.RoundTripper, sessionID string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &guardTransport{engine: e, base: base, sessionID: sessionID}
}

type guardTransport struct {
	engine    *Engine
	base      http.RoundTripper
	sessionID string
}

func (t *guardTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	d := t.engine.Authorize(req.Context(), t.sessionID)
	if !d.Allowed() {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, &DeniedError{Decision: d}
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", t.engine.AuthorizationValue(d.Access))
	return t.base.RoundTrip(out)
}

// AuthorizationValue formats access for the Authorization header using
// Probe.AuthScheme.
func (e *Engine) AuthorizationValue(access string) string {
	scheme := strings.TrimSpace(e.config.Probe.AuthScheme)
	if scheme == "" {
		return access
	}
	return scheme + " " + access
}
