package goGuard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/probe"
)

func TestTransportAttachesAllowedAccess(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	backend := newFakeBackend()
	backend.approve("a1", true)
	engine, store, _ := newTestEngine(t, backend, func(b *Builder) {
		cfg := defaultConfig()
		cfg.Probe.AuthScheme = "Bearer"
		cfg.Metrics = MetricsConfig{Enabled: true}
		b.WithConfig(cfg)
	})
	seed(t, store, "s1", "r1", "a1")

	client := &http.Client{Transport: engine.Transport(nil, "s1")}
	resp, err := client.Get(upstream.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if gotAuth != "Bearer a1" {
		t.Fatalf("expected Bearer a1, got %q", gotAuth)
	}
}

func TestTransportDeniedDoesNotReachUpstream(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits++ }))
	defer upstream.Close()

	engine, _, _ := newTestEngine(t, newFakeBackend())
	client := &http.Client{Transport: engine.Transport(nil, "s1")}

	_, err := client.Get(upstream.URL)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *DeniedError, got %v", err)
	}
	if denied.Decision.Kind != DenyRedirectLogin {
		t.Fatalf("expected DenyRedirectLogin, got %v", denied.Decision)
	}
	if hits != 0 {
		t.Fatalf("expected no upstream hit, got %d", hits)
	}
}

func TestTokenSource(t *testing.T) {
	mgr, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	access, err := mgr.Issue("alice", "s1", 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	backend := newFakeBackend()
	backend.approve(access, true)
	engine, store, _ := newTestEngine(t, backend)
	seed(t, store, "s1", "r1", access)

	tok, err := engine.TokenSource(context.Background(), "s1").Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok.AccessToken != access || tok.TokenType != "Bearer" {
		t.Fatalf("unexpected token: type=%q", tok.TokenType)
	}
	if tok.Expiry.IsZero() || time.Until(tok.Expiry) > time.Minute+time.Second {
		t.Fatalf("expected expiry from exp claim, got %v", tok.Expiry)
	}

	backend.setValidation(access, probe.ValidationResult{Status: probe.StatusOther})
	_, err = engine.TokenSource(context.Background(), "s1").Token()
	var denied *DeniedError
	if !errors.As(err, &denied) || denied.Decision.Code != CodeValidateError {
		t.Fatalf("expected DeniedError(validate-error), got %v", err)
	}
}
