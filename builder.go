package rolegate

import (
	"errors"
	"time"

	"github.com/MrEthical07/rolegate/internal/audit"
	"github.com/MrEthical07/rolegate/internal/flows"
	"github.com/MrEthical07/rolegate/internal/rate"
	"github.com/MrEthical07/rolegate/jwt"
	"github.com/MrEthical07/rolegate/password"
	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config  Config
	store   store.Store
	catalog *permission.Catalog
	redis   redis.UniversalClient

	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

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

// WithStore sets the identity and role store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithCatalog overrides the permission catalog. Defaults to [permission.Default].
func (b *Builder) WithCatalog(c *permission.Catalog) *Builder {
	b.catalog = c
	return b
}

// WithRedis moves sign-in throttling to shared Redis counters. Without it
// the engine throttles in process.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. A nil logger keeps zap.NewNop.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.logger = log
	return b
}

// WithAuditSink sets the audit destination. Events are only dispatched when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for token timestamps, throttling, and audit.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms records revalidation latency. It has no effect
// while metrics are disabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	catalog := b.catalog
	if catalog == nil {
		catalog = permission.Default()
	}
	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cfg,
		store:   b.store,
		catalog: catalog,
		log:     log.Named("rolegate"),
		now:     now,
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		RequireIAT:    true,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	// -------- PASSWORDS --------
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	verifier, err := password.NewVerifier(hasher)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher
	engine.verifier = verifier

	// -------- THROTTLE --------
	rateCfg := rate.Config{
		EnableIPThrottle: cfg.Security.EnableIPThrottle,
		MaxAttempts:      cfg.Security.MaxSignInAttempts,
		Cooldown:         cfg.Security.SignInCooldown,
		Prefix:           cfg.Security.RateLimitPrefix,
	}
	if b.redis != nil {
		limiter := rate.New(b.redis, rateCfg)
		engine.throttle = limiter
		engine.attempts = limiter
	} else {
		engine.throttle = rate.NewLocalWithClock(rateCfg, now)
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Critical:   criticalAuditEvent,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flows = flows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}
