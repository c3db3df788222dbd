package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type edgeConfig struct {
	Listen          string        `yaml:"listen"`
	Upstream        string        `yaml:"upstream"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Log      logConfig      `yaml:"log"`
	Redis    redisConfig    `yaml:"redis"`
	Postgres postgresConfig `yaml:"postgres"`
	HTTP     httpConfig     `yaml:"http"`
	Guard    goGuard.Config `yaml:"guard"`
}

type logConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type redisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`
}

type postgresConfig struct {
	DSN          string `yaml:"dsn"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

type httpConfig struct {
	CookieName         string `yaml:"cookie_name"`
	LoginURL           string `yaml:"login_url"`
	PendingApprovalURL string `yaml:"pending_approval_url"`
	MaintenanceURL     string `yaml:"maintenance_url"`
	LogoutPath         string `yaml:"logout_path"`
	TrustForwardedFor  bool   `yaml:"trust_forwarded_for"`
}

func defaultEdgeConfig() edgeConfig {
	guard := goGuard.DefaultConfig()
	guard.Metrics.Enabled = true
	guard.Metrics.EnableLatencyHistograms = true
	guard.Audit.Enabled = true

	return edgeConfig{
		Listen:          ":8081",
		ShutdownTimeout: 15 * time.Second,
		Log: logConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Postgres: postgresConfig{EnsureSchema: true},
		HTTP: httpConfig{
			LoginURL:   "/login",
			LogoutPath: "/goguard/logout",
		},
		Guard: guard,
	}
}

// loadConfig overlays the YAML file at path (optional) and the environment on
// the defaults. envFile, when present, is loaded into the environment first.
func loadConfig(path, envFile string) (edgeConfig, error) {
	cfg := defaultEdgeConfig()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func applyEnv(cfg *edgeConfig) error {
	if v := os.Getenv("GOGUARD_UPSTREAM"); v != "" {
		cfg.Upstream = v
	}
	if v := os.Getenv("GOGUARD_BACKEND_URL"); v != "" {
		cfg.Guard.Probe.BaseURL = v
	}
	if v := os.Getenv("GOGUARD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	cfg.Redis.Password = os.Getenv("GOGUARD_REDIS_PASSWORD")
	if v := os.Getenv("GOGUARD_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("GOGUARD_ENCRYPTION_KEY")); v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("GOGUARD_ENCRYPTION_KEY: %w", err)
		}
		cfg.Guard.Store.EncryptionKey = key
	}
	return nil
}

func (c *edgeConfig) validate() error {
	if c.Listen == "" {
		return errors.New("listen must not be empty")
	}
	u, err := url.Parse(c.Upstream)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("upstream must be an absolute URL")
	}
	if c.Guard.Probe.BaseURL == "" {
		return errors.New("guard.probe.base_url must be set")
	}
	switch c.Guard.Store.Backend {
	case goGuard.StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis store")
		}
	case goGuard.StorePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres store")
		}
	}
	if c.Guard.Refresh.ThrottleBackend == goGuard.ThrottleRedis && c.Redis.Addr == "" {
		return errors.New("redis.addr is required for the redis throttle")
	}
	return c.Guard.Validate()
}
