package jwt

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Inspector reports whether a JWT-shaped credential is already past its exp claim.
type Inspector struct {
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewInspector returns an Inspector that treats a token as expired once
// exp + leeway is in the past.
func NewInspector(leeway time.Duration, now func() time.Time) *Inspector {
	if leeway < 0 {
		leeway = 0
	}
	if now == nil {
		now = time.Now
	}
	return &Inspector{leeway: leeway, now: now, parser: jwt.NewParser()}
}

// ExpiresAt returns the unverified exp claim. ok is false for opaque credentials
// and for JWTs without exp.
func (i *Inspector) ExpiresAt(token string) (time.Time, bool) {
	if i == nil || strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := i.parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the credential is a JWT whose exp (plus leeway) is past.
// Opaque credentials are never reported expired.
func (i *Inspector) Expired(token string) bool {
	exp, ok := i.ExpiresAt(token)
	if !ok {
		return false
	}
	return !i.now().Before(exp.Add(i.leeway))
}
