package goGuard

import (
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/probe"
)

// Config holds every tunable of the guard. Start from [DefaultConfig] and
// override fields; [Builder.Build] validates the result.
type Config struct {
	Probe   probe.Config  `yaml:"probe"`
	Refresh RefreshConfig `yaml:"refresh"`
	Expiry  ExpiryConfig  `yaml:"expiry"`
	Store   StoreConfig   `yaml:"store"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// ThrottleBackend selects where refresh throttle counters live.
type ThrottleBackend string

const (
	// ThrottleAuto uses Redis when the engine has a Redis client, else local buckets.
	ThrottleAuto ThrottleBackend = ""
	// ThrottleRedis shares counters across guard instances through Redis.
	ThrottleRedis ThrottleBackend = "redis"
	// ThrottleLocal keeps per-process token buckets.
	ThrottleLocal ThrottleBackend = "local"
)

// RefreshConfig controls refresh rounds.
type RefreshConfig struct {
	// Timeout bounds one leader's backend call, independent of any caller context.
	Timeout time.Duration `yaml:"timeout"`
	// PublishTimeout bounds the store update that commits a round. It starts
	// after the backend call returns.
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	// RevalidateAfterRefresh validates the fresh access credential once before allowing.
	RevalidateAfterRefresh bool `yaml:"revalidate_after_refresh"`
	// DetectDivergence re-reads the store after an Unauthorized validate and
	// validates a newer access credential instead of starting another round.
	DetectDivergence bool `yaml:"detect_divergence"`

	EnableThrottle   bool            `yaml:"enable_throttle"`
	ThrottleBackend  ThrottleBackend `yaml:"throttle_backend"`
	MaxAttempts      int             `yaml:"max_attempts"`
	CooldownDuration time.Duration   `yaml:"cooldown"`
}

// ExpiryConfig controls local inspection of JWT access credentials.
type ExpiryConfig struct {
	EarlyExpiryCheck bool          `yaml:"early_expiry_check"`
	Leeway           time.Duration `yaml:"leeway"`
}

// StoreBackend names a built-in credential store.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreRedis    StoreBackend = "redis"
	StorePostgres StoreBackend = "postgres"
)

// StoreConfig controls the built-in credential store. Ignored when the builder
// receives an explicit store through [Builder.WithStore].
type StoreConfig struct {
	Backend     StoreBackend  `yaml:"backend"`
	RedisPrefix string        `yaml:"redis_prefix"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	// EncryptionKey, when set, seals stored values (32 raw bytes).
	EncryptionKey []byte `yaml:"-"`
	PostgresTable string `yaml:"postgres_table"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters and histograms.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// DefaultConfig returns the default guard configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Probe: probe.DefaultConfig(),
		Refresh: RefreshConfig{
			Timeout:                10 * time.Second,
			PublishTimeout:         5 * time.Second,
			RevalidateAfterRefresh: false,
			DetectDivergence:       true,
			EnableThrottle:         false,
			ThrottleBackend:        ThrottleAuto,
			MaxAttempts:            20,
			CooldownDuration:       1 * time.Minute,
		},
		Expiry: ExpiryConfig{
			EarlyExpiryCheck: false,
			Leeway:           5 * time.Second,
		},
		Store: StoreConfig{
			Backend:       StoreMemory,
			RedisPrefix:   "gg",
			SessionTTL:    30 * 24 * time.Hour,
			PostgresTable: "goguard_credentials",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Probe.ValidateTimeout <= 0 {
		return errors.New("Probe.ValidateTimeout must be > 0")
	}
	if c.Probe.RefreshTimeout <= 0 {
		return errors.New("Probe.RefreshTimeout must be > 0")
	}
	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh.Timeout must be > 0")
	}
	if c.Refresh.PublishTimeout <= 0 {
		return errors.New("Refresh.PublishTimeout must be > 0")
	}
	if c.Refresh.Timeout < c.Probe.RefreshTimeout {
		return errors.New("Refresh.Timeout must be >= Probe.RefreshTimeout")
	}

	if c.Refresh.EnableThrottle {
		if c.Refresh.MaxAttempts <= 0 {
			return errors.New("Refresh.MaxAttempts must be > 0 when throttling")
		}
		if c.Refresh.CooldownDuration <= 0 {
			return errors.New("Refresh.CooldownDuration must be > 0 when throttling")
		}
		switch c.Refresh.ThrottleBackend {
		case ThrottleAuto, ThrottleRedis, ThrottleLocal:
		default:
			return errors.New("Refresh.ThrottleBackend must be redis or local")
		}
	}

	if c.Expiry.Leeway < 0 {
		return errors.New("Expiry.Leeway must be >= 0")
	}

	switch c.Store.Backend {
	case "", StoreMemory, StoreRedis, StorePostgres:
	default:
		return errors.New("Store.Backend must be memory, redis or postgres")
	}
	if c.Store.RedisPrefix == "" {
		return errors.New("Store.RedisPrefix must not be empty")
	}
	if c.Store.SessionTTL < 0 {
		return errors.New("Store.SessionTTL must be >= 0")
	}
	if len(c.Store.EncryptionKey) != 0 && len(c.Store.EncryptionKey) != 32 {
		return errors.New("Store.EncryptionKey must be 32 bytes")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics.EnableLatencyHistograms requires Metrics.Enabled")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	if c.Store.EncryptionKey != nil {
		out.Store.EncryptionKey = append([]byte(nil), c.Store.EncryptionKey...)
	}
	return out
}
