package test

import (
	"context"
	"net/http"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/credential"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/MrEthical07/goGuard/probe"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// This test guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goGuard.New
	_ = goGuard.DefaultConfig

	var _ *goGuard.Engine
	var _ goGuard.Config
	var _ goGuard.Decision
	var _ goGuard.AuditSink
	var _ credential.Store = (*credential.MemoryStore)(nil)
	var _ credential.Store = (*credential.RedisStore)(nil)
	var _ credential.Store = (*credential.PostgresStore)(nil)
	var _ probe.Probe = (*probe.HTTPProbe)(nil)
	var _ probe.Probe = probe.Funcs{}

	var _ error = goGuard.ErrSessionID
	var _ error = goGuard.ErrMissingCredential
	var _ error = goGuard.ErrRefreshWaitCanceled
	var _ error = goGuard.ErrRefreshThrottled
	var _ error = &goGuard.DeniedError{}

	var _ func(*goGuard.Engine, middleware.Options) func(http.Handler) http.Handler = middleware.Guard
	var _ func(*goGuard.Engine, middleware.Options) gin.HandlerFunc = middleware.GinGuard

	var _ func(*goGuard.Engine, context.Context, string) goGuard.Decision = (*goGuard.Engine).Authorize
	var _ func(*goGuard.Engine, context.Context, string, string, string) error = (*goGuard.Engine).Establish
	var _ func(*goGuard.Engine, context.Context, string, string) (string, error) = (*goGuard.Engine).NewSession
	var _ func(*goGuard.Engine, context.Context, string) error = (*goGuard.Engine).Logout
	var _ func(*goGuard.Engine, http.RoundTripper, string) http.RoundTripper = (*goGuard.Engine).Transport
	var _ func(*goGuard.Engine, context.Context, string) oauth2.TokenSource = (*goGuard.Engine).TokenSource
}
