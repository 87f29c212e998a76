package portfolioAuth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/portfolioAuth/internal/rate"
	"github.com/MrEthical07/portfolioAuth/jwt"
	"github.com/MrEthical07/portfolioAuth/password"
	"github.com/MrEthical07/portfolioAuth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	logger       *slog.Logger

	built bool
}

// New starts a Builder with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the session store and rate
// limiter. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the user lookup used by Login and by Guard renewal.
// Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the audit destination. It only takes effect when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort warnings. Defaults to
// slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, parses keys and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}
	if !jm.CanSign() {
		return nil, errors.New("jwt private key required to issue tokens")
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:       cfg,
		sessions:     session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.MaxSessionsPerSubject),
		jwtManager:   jm,
		hasher:       hasher,
		userProvider: b.userProvider,
		logger:       logger,
		now:          time.Now,
	}
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		Prefix:             cfg.Session.RedisPrefix,
		MaxLoginAttempts:   cfg.Security.MaxLoginAttempts,
		LoginCooldown:      cfg.Security.LoginCooldown,
		EnableDeviceLimit:  cfg.Security.EnableDeviceThrottle,
		MaxRenewalsPerHour: cfg.Security.MaxRenewalsPerHour,
	})
	engine.audit = newAuditQueue(cfg.Audit, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
