package goGuard

import (
	"context"
	"strings"

	"github.com/MrEthical07/goGuard/jwt"
	"golang.org/x/oauth2"
)

// TokenSource exposes Allow decisions for sessionID as an oauth2.TokenSource.
// Every Token call runs Authorize; wrap it with oauth2.ReuseTokenSource only
// when the access credentials are JWTs, since opaque tokens carry no expiry.
func (e *Engine) TokenSource(ctx context.Context, sessionID string) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return &guardTokenSource{
		ctx:       ctx,
		engine:    e,
		sessionID: sessionID,
		inspector: jwt.NewInspector(0, nil),
	}
}

type guardTokenSource struct {
	ctx       context.Context
	engine    *Engine
	sessionID string
	inspector *jwt.Inspector
}

func (s *guardTokenSource) Token() (*oauth2.Token, error) {
	d := s.engine.Authorize(s.ctx, s.sessionID)
	if !d.Allowed() {
		return nil, &DeniedError{Decision: d}
	}

	tokenType := strings.TrimSpace(s.engine.config.Probe.AuthScheme)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	tok := &oauth2.Token{AccessToken: d.Access, TokenType: tokenType}
	if exp, ok := s.inspector.ExpiresAt(d.Access); ok {
		tok.Expiry = exp
	}
	return tok, nil
}
