package goGuard

import (
	"net/http"
	"time"

	"github.com/MrEthical07/goGuard/credential"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/probe"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an [Engine]. A Builder is single-use and not safe for
// concurrent use.
type Builder struct {
	config Config

	store      credential.Store
	redis      redis.UniversalClient
	postgres   credential.PgQuerier
	probe      probe.Probe
	httpClient *http.Client
	log        logrus.FieldLogger
	auditSink  AuditSink
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets an explicit credential store; Store.Backend is then ignored.
func (b *Builder) WithStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithRedis provides the client used by the Redis store and Redis throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres provides the pool used when Store.Backend is postgres.
func (b *Builder) WithPostgres(db credential.PgQuerier) *Builder {
	b.postgres = db
	return b
}

// WithProbe sets a custom backend probe; Probe.BaseURL is then unused.
func (b *Builder) WithProbe(p probe.Probe) *Builder {
	b.probe = p
	return b
}

// WithHTTPClient sets the client used by the built-in HTTP probe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the engine logger. Defaults to logrus.StandardLogger().
func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.log = log
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithRefreshThrottle enables the per-session refresh throttle.
func (b *Builder) WithRefreshThrottle(maxAttempts int, cooldown time.Duration) *Builder {
	b.config.Refresh.EnableThrottle = true
	b.config.Refresh.MaxAttempts = maxAttempts
	b.config.Refresh.CooldownDuration = cooldown
	return b
}

func (b *Builder) WithRevalidateAfterRefresh(enabled bool) *Builder {
	b.config.Refresh.RevalidateAfterRefresh = enabled
	return b
}

// WithEarlyExpiryCheck skips the validate round trip for JWT access
// credentials already past exp+leeway.
func (b *Builder) WithEarlyExpiryCheck(leeway time.Duration) *Builder {
	b.config.Expiry.EarlyExpiryCheck = true
	b.config.Expiry.Leeway = leeway
	return b
}

// WithClock overrides the clock used for local expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = logrus.StandardLogger()
	}

	// -------- PROBE --------
	p := b.probe
	if p == nil {
		if cfg.Probe.BaseURL == "" {
			return nil, ErrProbeRequired
		}
		hp, err := probe.NewHTTP(cfg.Probe, b.httpClient)
		if err != nil {
			return nil, err
		}
		p = hp
	}

	// -------- CREDENTIAL STORE --------
	store, err := b.buildStore(cfg)
	if err != nil {
		return nil, err
	}

	// -------- REFRESH THROTTLE --------
	throttle, err := b.buildThrottle(cfg)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		store:    store,
		probe:    p,
		throttle: throttle,
		log:      log,
		metrics:  NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	if cfg.Expiry.EarlyExpiryCheck {
		engine.inspector = jwt.NewInspector(cfg.Expiry.Leeway, b.now)
	}

	engine.refresher = NewRefresher(p, cfg.Refresh.Timeout, engine.publishRefresh)
	engine.refresher.publishTimeout = cfg.Refresh.PublishTimeout
	engine.refresher.throttle = throttle
	engine.refresher.metrics = engine.metrics
	engine.refresher.log = log

	engine.initFlows()

	b.built = true
	return engine, nil
}

func (b *Builder) buildStore(cfg Config) (credential.Store, error) {
	if b.store != nil {
		return b.store, nil
	}

	var sealer *credential.Sealer
	if len(cfg.Store.EncryptionKey) > 0 {
		s, err := credential.NewSealer(cfg.Store.EncryptionKey)
		if err != nil {
			return nil, err
		}
		sealer = s
	}

	switch cfg.Store.Backend {
	case StoreRedis:
		if b.redis == nil {
			return nil, ErrRedisRequired
		}
		return credential.NewRedisStore(b.redis, cfg.Store.RedisPrefix, cfg.Store.SessionTTL, sealer), nil
	case StorePostgres:
		if b.postgres == nil {
			return nil, ErrPostgresRequired
		}
		return credential.NewPostgresStore(b.postgres, cfg.Store.PostgresTable, sealer)
	default:
		return credential.NewMemoryStore(sealer), nil
	}
}

func (b *Builder) buildThrottle(cfg Config) (rate.Limiter, error) {
	if !cfg.Refresh.EnableThrottle {
		return nil, nil
	}
	rc := rate.Config{
		MaxRefreshAttempts:      cfg.Refresh.MaxAttempts,
		RefreshCooldownDuration: cfg.Refresh.CooldownDuration,
	}

	switch cfg.Refresh.ThrottleBackend {
	case ThrottleRedis:
		if b.redis == nil {
			return nil, ErrRedisRequired
		}
		return rate.NewRedis(b.redis, cfg.Store.RedisPrefix, rc), nil
	case ThrottleLocal:
		return rate.NewLocal(rc), nil
	default:
		if b.redis != nil {
			return rate.NewRedis(b.redis, cfg.Store.RedisPrefix, rc), nil
		}
		return rate.NewLocal(rc), nil
	}
}
