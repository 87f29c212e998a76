package portfolioAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/portfolioAuth/jwt"
	"github.com/MrEthical07/portfolioAuth/logging"
	"github.com/MrEthical07/portfolioAuth/password"
	"github.com/redis/go-redis/v9"
)

// Config is the complete engine configuration. Build a Config with
// DefaultConfig or LoadConfig and adjust fields before passing it to
// Builder.WithConfig; the builder keeps its own copy.
type Config struct {
	JWT         JWTConfig             `yaml:"jwt"`
	Session     SessionConfig         `yaml:"session"`
	Fingerprint FingerprintConfig     `yaml:"fingerprint"`
	Password    password.Argon2Params `yaml:"password"`
	Security    SecurityConfig        `yaml:"security"`
	Audit       AuditConfig           `yaml:"audit"`
	Metrics     MetricsConfig         `yaml:"metrics"`
	Cookie      CookieConfig          `yaml:"cookie"`
	Logging     logging.Config        `yaml:"logging"`
	Redis       RedisConfig           `yaml:"redis"`
}

// JWTConfig configures token signing. Keys come either inline (raw or PEM)
// or from PrivateKeyPath/PublicKeyPath, which LoadConfig reads.
type JWTConfig struct {
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`
	SigningMethod  string        `yaml:"signing_method"`
	Issuer         string        `yaml:"issuer"`
	Leeway         time.Duration `yaml:"leeway"`
	KeyID          string        `yaml:"key_id"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	PublicKeyPath  string        `yaml:"public_key_path"`
	PrivateKey     []byte        `yaml:"-"`
	PublicKey      []byte        `yaml:"-"`
}

// SessionConfig configures the Redis session registry.
type SessionConfig struct {
	RedisPrefix string `yaml:"redis_prefix"`
	// MaxSessionsPerSubject caps live sessions per user; 0 means unbounded.
	MaxSessionsPerSubject int `yaml:"max_sessions_per_subject"`
}

// FingerprintConfig controls whether renewal checks the client fingerprint
// recorded at login, and which components take part.
type FingerprintConfig struct {
	Enforce       bool `yaml:"enforce"`
	CheckIP       bool `yaml:"check_ip"`
	CheckPlatform bool `yaml:"check_platform"`
	CheckBrowser  bool `yaml:"check_browser"`
}

// SecurityConfig holds login and renewal throttling. Zero disables a limit.
type SecurityConfig struct {
	MaxLoginAttempts     int           `yaml:"max_login_attempts"`
	LoginCooldown        time.Duration `yaml:"login_cooldown"`
	EnableDeviceThrottle bool          `yaml:"enable_device_throttle"`
	MaxRenewalsPerHour   int           `yaml:"max_renewals_per_hour"`
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig enables in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// CookieConfig names the credential cookies written by the HTTP middleware.
type CookieConfig struct {
	AccessName  string `yaml:"access_name"`
	RefreshName string `yaml:"refresh_name"`
	Domain      string `yaml:"domain"`
	Path        string `yaml:"path"`
	// SecureAccess additionally marks the access cookie Secure. The refresh
	// cookie is always Secure.
	SecureAccess bool `yaml:"secure_access"`
}

// RedisConfig locates the Redis server for command-line tools and
// LoadConfig users. The engine itself takes a client via Builder.WithRedis.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Client opens a go-redis client for c.URL.
func (c RedisConfig) Client() (*redis.Client, error) {
	if c.URL == "" {
		return nil, errors.New("redis url not configured")
	}
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// DefaultConfig returns production defaults. Signing keys are not set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodEd25519),
			Issuer:        jwt.DefaultIssuer,
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			MaxSessionsPerSubject: 5,
		},
		Fingerprint: FingerprintConfig{
			CheckIP:       true,
			CheckPlatform: true,
			CheckBrowser:  true,
		},
		Password: password.DefaultArgon2Params(),
		Security: SecurityConfig{
			MaxLoginAttempts:     5,
			LoginCooldown:        15 * time.Minute,
			EnableDeviceThrottle: false,
			MaxRenewalsPerHour:   0,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Cookie: CookieConfig{
			AccessName:  "access_token",
			RefreshName: "refresh_token",
			Path:        "/",
		},
		Logging: logging.DefaultConfig(),
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks cross-field constraints and reports every violation.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessTTL <= 0 {
		errs = append(errs, errors.New("jwt.access_ttl must be > 0"))
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		errs = append(errs, errors.New("jwt.refresh_ttl must be >= jwt.access_ttl"))
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodEd25519, jwt.MethodRS256:
	default:
		errs = append(errs, fmt.Errorf("jwt.signing_method %q unsupported", c.JWT.SigningMethod))
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		errs = append(errs, errors.New("jwt.leeway must be within [0, 2m]"))
	}
	if len(c.JWT.PublicKey) == 0 {
		errs = append(errs, errors.New("jwt public key required"))
	}
	if c.Session.MaxSessionsPerSubject < 0 {
		errs = append(errs, errors.New("session.max_sessions_per_subject must be >= 0"))
	}
	if err := c.Password.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxRenewalsPerHour < 0 {
		errs = append(errs, errors.New("security limits must be >= 0"))
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown <= 0 {
		errs = append(errs, errors.New("security.login_cooldown must be > 0 when login throttling is enabled"))
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		errs = append(errs, errors.New("audit.buffer_size must be > 0"))
	}
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" {
		errs = append(errs, errors.New("cookie names must be set"))
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		errs = append(errs, errors.New("cookie names must differ"))
	}

	return errors.Join(errs...)
}
