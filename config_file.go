package portfolioAuth

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/MrEthical07/portfolioAuth/jwt"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PORTFOLIO_AUTH_"

// LoadConfig reads a YAML file over DefaultConfig, applies PORTFOLIO_AUTH_*
// environment overrides, loads the signing keys named by the key paths and
// validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.JWT.PublicKeyPath != "" {
		priv, pub, err := jwt.LoadKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
		if err != nil {
			return Config{}, fmt.Errorf("loading signing keys: %w", err)
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"REDIS_URL":            &cfg.Redis.URL,
		"REDIS_PREFIX":         &cfg.Session.RedisPrefix,
		"JWT_ISSUER":           &cfg.JWT.Issuer,
		"JWT_SIGNING_METHOD":   &cfg.JWT.SigningMethod,
		"JWT_KEY_ID":           &cfg.JWT.KeyID,
		"JWT_PRIVATE_KEY_PATH": &cfg.JWT.PrivateKeyPath,
		"JWT_PUBLIC_KEY_PATH":  &cfg.JWT.PublicKeyPath,
		"LOG_LEVEL":            &cfg.Logging.Level,
		"LOG_FORMAT":           &cfg.Logging.Format,
		"COOKIE_DOMAIN":        &cfg.Cookie.Domain,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"JWT_ACCESS_TTL":  &cfg.JWT.AccessTTL,
		"JWT_REFRESH_TTL": &cfg.JWT.RefreshTTL,
	}
	for name, dst := range durations {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"MAX_SESSIONS":       &cfg.Session.MaxSessionsPerSubject,
		"MAX_LOGIN_ATTEMPTS": &cfg.Security.MaxLoginAttempts,
	}
	for name, dst := range ints {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "FINGERPRINT_ENFORCE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sFINGERPRINT_ENFORCE: %w", envPrefix, err)
		}
		cfg.Fingerprint.Enforce = b
	}

	return nil
}
