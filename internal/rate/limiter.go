package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero max disables the
// corresponding limit.
type Config struct {
	Prefix             string
	MaxLoginAttempts   int
	LoginCooldown      time.Duration
	EnableDeviceLimit  bool
	MaxRenewalsPerHour int
}

// Limiter enforces authentication and renewal budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

const incrementScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var incrementLua = redis.NewScript(incrementScript)

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin reports ErrRateLimited when the email or the device has used
// up its failed-attempt budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, deviceID string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, deviceID) {
		if err := l.checkCounter(ctx, key, l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}
	return nil
}

// IncrementLogin records a failed authentication.
func (l *Limiter) IncrementLogin(ctx context.Context, email, deviceID string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, deviceID) {
		count, err := l.incrementWithTTL(ctx, key, l.config.LoginCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// ResetLogin clears the failed-attempt counters after a successful
// authentication.
func (l *Limiter) ResetLogin(ctx context.Context, email, deviceID string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, l.loginKeys(email, deviceID)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRenew counts one renewal for subject and reports ErrRateLimited when
// the hourly budget is exceeded.
func (l *Limiter) CheckRenew(ctx context.Context, subject string) error {
	if l == nil || l.config.MaxRenewalsPerHour <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.key("renew", subject), time.Hour)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRenewalsPerHour) {
		return ErrRateLimited
	}
	return nil
}

// LoginAttempts returns the failed-attempt counter for email. Missing keys
// return zero.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, l.key("login", normalizeEmail(email))).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) loginKeys(email, deviceID string) []string {
	keys := []string{l.key("login", normalizeEmail(email))}
	if l.config.EnableDeviceLimit && deviceID != "" {
		keys = append(keys, l.key("device", deviceID))
	}
	return keys
}

func (l *Limiter) key(scope, id string) string {
	return l.config.Prefix + "rl:" + scope + ":" + id
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	count, err := incrementLua.Run(ctx, l.redis, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}
