package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/tidwall/gjson"
)

// Config describes the backend contract used by HTTPProbe. Paths, the refresh
// method and the body field locations are deployment details of the collaborating
// backend.
type Config struct {
	BaseURL         string        `yaml:"base_url"`
	ValidatePath    string        `yaml:"validate_path"`
	RefreshPath     string        `yaml:"refresh_path"`
	RefreshMethod   string        `yaml:"refresh_method"`
	AuthScheme      string        `yaml:"auth_scheme"`    // empty sends the raw credential as the Authorization value
	ApprovalField   string        `yaml:"approval_field"` // gjson path of the approval flag in the validate body
	AccessField     string        `yaml:"access_field"`   // gjson path of the new access credential; empty autodetects
	ValidateTimeout time.Duration `yaml:"validate_timeout"`
	RefreshTimeout  time.Duration `yaml:"refresh_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	UserAgent       string        `yaml:"user_agent"`
}

// DefaultConfig returns the contract defaults: GET /whoami and POST /auth/refresh.
func DefaultConfig() Config {
	return Config{
		ValidatePath:    "/whoami",
		RefreshPath:     "/auth/refresh",
		RefreshMethod:   http.MethodPost,
		ApprovalField:   "isApproved",
		ValidateTimeout: 5 * time.Second,
		RefreshTimeout:  10 * time.Second,
		MaxBodyBytes:    64 << 10,
		UserAgent:       "goGuard",
	}
}

var accessFieldFallbacks = []string{"accessToken", "access_token", "accessCredential", "token"}

// HTTPProbe calls the backend over HTTP.
type HTTPProbe struct {
	cfg         Config
	client      *http.Client
	validateURL string
	refreshURL  string
}

// NewHTTP describes the newhttp operation and its observable behavior.
//
// NewHTTP returns an error when BaseURL is not an absolute http(s) URL, the refresh
// method is neither GET nor POST, or a timeout is not positive. A nil client uses a
// fresh http.Client; per-call deadlines come from the configured timeouts.
func NewHTTP(cfg Config, client *http.Client) (*HTTPProbe, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, errors.New("probe BaseURL must be an absolute http(s) URL")
	}

	cfg.RefreshMethod = strings.ToUpper(strings.TrimSpace(cfg.RefreshMethod))
	if cfg.RefreshMethod == "" {
		cfg.RefreshMethod = http.MethodPost
	}
	if cfg.RefreshMethod != http.MethodGet && cfg.RefreshMethod != http.MethodPost {
		return nil, errors.New("probe RefreshMethod must be GET or POST")
	}
	if cfg.ValidateTimeout <= 0 || cfg.RefreshTimeout <= 0 {
		return nil, errors.New("probe timeouts must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.ApprovalField == "" {
		cfg.ApprovalField = "isApproved"
	}
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPProbe{
		cfg:         cfg,
		client:      client,
		validateURL: base.String() + ensureSlash(cfg.ValidatePath),
		refreshURL:  base.String() + ensureSlash(cfg.RefreshPath),
	}, nil
}

func ensureSlash(p string) string {
	if p == "" || p[0] != '/' {
		return "/" + p
	}
	return p
}

// Validate describes the validate operation and its observable behavior.
//
// 2xx with a boolean approval flag maps to StatusOK, 401 to StatusUnauthorized,
// anything else (including timeouts) to StatusOther.
func (p *HTTPProbe) Validate(ctx context.Context, access string) ValidationResult {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ValidateTimeout)
	defer cancel()

	status, body, err := p.do(ctx, http.MethodGet, p.validateURL, access)
	if err != nil {
		return ValidationResult{Status: StatusOther, Err: err}
	}

	switch {
	case status >= 200 && status < 300:
		if !gjson.ValidBytes(body) {
			return ValidationResult{Status: StatusOther, Err: fmt.Errorf("%w: validate body is not JSON", ErrMalformedBody)}
		}
		flag := gjson.GetBytes(body, p.cfg.ApprovalField)
		if flag.Type != gjson.True && flag.Type != gjson.False {
			return ValidationResult{Status: StatusOther, Err: fmt.Errorf("%w: approval flag missing", ErrMalformedBody)}
		}
		return ValidationResult{Status: StatusOK, Approved: flag.Bool()}
	case status == http.StatusUnauthorized:
		return ValidationResult{Status: StatusUnauthorized}
	default:
		return ValidationResult{Status: StatusOther, Err: fmt.Errorf("%w: validate status %d", ErrUnexpectedStatus, status)}
	}
}

// Refresh describes the refresh operation and its observable behavior.
//
// 2xx with a non-empty access credential maps to StatusOK, 404 to StatusNotFound,
// anything else (including timeouts) to StatusOther.
func (p *HTTPProbe) Refresh(ctx context.Context, refresh string) RefreshOutcome {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RefreshTimeout)
	defer cancel()

	status, body, err := p.do(ctx, p.cfg.RefreshMethod, p.refreshURL, refresh)
	if err != nil {
		return RefreshOutcome{Status: StatusOther, Err: err}
	}

	switch {
	case status >= 200 && status < 300:
		access, err := p.extractAccess(body)
		if err != nil {
			return RefreshOutcome{Status: StatusOther, Err: err}
		}
		return RefreshOutcome{Status: StatusOK, NewAccess: access}
	case status == http.StatusNotFound:
		return RefreshOutcome{Status: StatusNotFound}
	default:
		return RefreshOutcome{Status: StatusOther, Err: fmt.Errorf("%w: refresh status %d", ErrUnexpectedStatus, status)}
	}
}

func (p *HTTPProbe) do(ctx context.Context, method, target, credential string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", p.authorization(credential))
	req.Header.Set("Accept", "application/json, text/plain;q=0.9")
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
		}
		return 0, nil, fmt.Errorf("%w: %s %s", ErrTransport, method, redactURL(target))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, p.cfg.MaxBodyBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBodyBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if int64(len(body)) > p.cfg.MaxBodyBytes {
		return resp.StatusCode, nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedBody, p.cfg.MaxBodyBytes)
	}
	if isHTML(resp.Header.Get("Content-Type")) {
		return resp.StatusCode, nil, fmt.Errorf("%w: html body", ErrMalformedBody)
	}
	return resp.StatusCode, body, nil
}

func (p *HTTPProbe) authorization(credential string) string {
	if p.cfg.AuthScheme == "" {
		return credential
	}
	return p.cfg.AuthScheme + " " + credential
}

func (p *HTTPProbe) extractAccess(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty refresh body", ErrMalformedBody)
	}

	if p.cfg.AccessField != "" {
		if !gjson.Valid(trimmed) {
			return "", fmt.Errorf("%w: refresh body is not JSON", ErrMalformedBody)
		}
		v := gjson.Get(trimmed, p.cfg.AccessField)
		if v.Type != gjson.String || v.String() == "" {
			return "", fmt.Errorf("%w: access field missing", ErrMalformedBody)
		}
		return v.String(), nil
	}

	if gjson.Valid(trimmed) {
		parsed := gjson.Parse(trimmed)
		switch {
		case parsed.Type == gjson.String:
			if parsed.String() == "" {
				return "", fmt.Errorf("%w: empty access credential", ErrMalformedBody)
			}
			return parsed.String(), nil
		case parsed.IsObject():
			for _, field := range accessFieldFallbacks {
				if v := parsed.Get(field); v.Type == gjson.String && v.String() != "" {
					return v.String(), nil
				}
			}
			return "", fmt.Errorf("%w: access field missing", ErrMalformedBody)
		case parsed.IsArray(), parsed.Type == gjson.Null, parsed.Type == gjson.True, parsed.Type == gjson.False:
			return "", fmt.Errorf("%w: unexpected JSON value", ErrMalformedBody)
		}
	}

	if !plainToken(trimmed) {
		return "", fmt.Errorf("%w: refresh body is not a token", ErrMalformedBody)
	}
	return trimmed, nil
}

func plainToken(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || unicode.IsSpace(r) || unicode.IsControl(r) || r == '<' || r == '>' {
			return false
		}
	}
	return true
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func redactURL(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "backend"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
