package portfolioAuth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/portfolioAuth/logging"
	"github.com/MrEthical07/portfolioAuth/password"
	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/MrEthical07/portfolioAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct horse battery"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.Leeway = 0
	cfg.Session.RedisPrefix = "test:"
	cfg.Password = password.Argon2Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Security.MaxLoginAttempts = 0
	return cfg
}

// memoryUsers is an in-memory UserProvider that counts lookups.
type memoryUsers struct {
	mu      sync.Mutex
	byID    map[int64]*User
	lookups atomic.Int64
	err     error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[int64]*User{}}
}

func (m *memoryUsers) add(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[u.ID] = u
}

func (m *memoryUsers) remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

func (m *memoryUsers) GetUser(_ context.Context, filter UserFilter) (*User, error) {
	m.lookups.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if filter.ID != 0 {
		if u, ok := m.byID[filter.ID]; ok {
			cp := *u
			return &cp, nil
		}
		return nil, ErrUserNotFound
	}
	for _, u := range m.byID {
		if u.Email == filter.Email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	users  *memoryUsers
	cfg    Config
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvWithSink(t, mutate, nil)
}

func newTestEnvWithSink(t *testing.T, mutate func(*Config), sink AuditSink) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	mr, rdb := newTestRedis(t)
	users := newMemoryUsers()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithAuditSink(sink).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, mr: mr, users: users, cfg: cfg}
}

func (env *testEnv) addUser(t *testing.T, id int64, role permission.Role) *User {
	t.Helper()
	hash, err := env.engine.Hasher().Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &User{ID: id, Email: emailFor(id), PasswordHash: hash, Role: role}
	env.users.add(u)
	return u
}

// backdate makes the engine mint tokens as if issued d ago. Token
// validation still runs on the wall clock, so an access token backdated past
// its TTL is already expired while the refresh token stays valid.
func (env *testEnv) backdate(d time.Duration) {
	env.engine.now = func() time.Time { return time.Now().Add(-d) }
}

func emailFor(id int64) string {
	return fmt.Sprintf("user%d@example.com", id)
}

// countingStore wraps a session store and counts every call.
type countingStore struct {
	sessionStore
	calls atomic.Int64
}

func (c *countingStore) Register(ctx context.Context, rec *session.Record) ([]string, error) {
	c.calls.Add(1)
	return c.sessionStore.Register(ctx, rec)
}

func (c *countingStore) Rotate(ctx context.Context, oldTokenID, oldDeviceID string, next *session.Record) error {
	c.calls.Add(1)
	return c.sessionStore.Rotate(ctx, oldTokenID, oldDeviceID, next)
}

func (c *countingStore) GetActiveOne(ctx context.Context, subject, tokenID, deviceID string) (*session.Record, error) {
	c.calls.Add(1)
	return c.sessionStore.GetActiveOne(ctx, subject, tokenID, deviceID)
}

func (c *countingStore) GetActiveAll(ctx context.Context, subject, tokenID, deviceID string) ([]*session.Record, error) {
	c.calls.Add(1)
	return c.sessionStore.GetActiveAll(ctx, subject, tokenID, deviceID)
}

func (c *countingStore) GetBanned(ctx context.Context, subject, tokenID, deviceID string) ([]*session.Record, error) {
	c.calls.Add(1)
	return c.sessionStore.GetBanned(ctx, subject, tokenID, deviceID)
}

func (c *countingStore) Delete(ctx context.Context, subject, deviceID string) (int, error) {
	c.calls.Add(1)
	return c.sessionStore.Delete(ctx, subject, deviceID)
}

func (c *countingStore) Revoke(ctx context.Context, subject, tokenID, deviceID string) (bool, error) {
	c.calls.Add(1)
	return c.sessionStore.Revoke(ctx, subject, tokenID, deviceID)
}

func (c *countingStore) DeleteAll(ctx context.Context, subject string) (int, error) {
	c.calls.Add(1)
	return c.sessionStore.DeleteAll(ctx, subject)
}

func (c *countingStore) Ban(ctx context.Context, subject, tokenID, reason string) (int, error) {
	c.calls.Add(1)
	return c.sessionStore.Ban(ctx, subject, tokenID, reason)
}

func (c *countingStore) Ping(ctx context.Context) error {
	c.calls.Add(1)
	return c.sessionStore.Ping(ctx)
}

func (env *testEnv) countStoreCalls() *countingStore {
	c := &countingStore{sessionStore: env.engine.sessions}
	env.engine.sessions = c
	return c
}
