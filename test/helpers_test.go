//go:build integration
// +build integration

package test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
	"github.com/MrEthical07/portfolioAuth/logging"
	"github.com/MrEthical07/portfolioAuth/password"
	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "integration-password"

// cmdCounter is a go-redis hook counting commands and pipeline round-trips.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

// users is a shared in-memory provider; several engines may read it.
type users struct {
	mu   sync.RWMutex
	byID map[int64]*portfolioAuth.User
}

func (u *users) GetUser(_ context.Context, f portfolioAuth.UserFilter) (*portfolioAuth.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if user, ok := u.byID[f.ID]; ok {
		return user, nil
	}
	for _, user := range u.byID {
		if f.Email != "" && user.Email == f.Email {
			return user, nil
		}
	}
	return nil, portfolioAuth.ErrUserNotFound
}

type cluster struct {
	mr    *miniredis.Miniredis
	cfg   portfolioAuth.Config
	users *users
	hash  string
}

// newCluster starts one miniredis and a config whose signing keys every
// engine built from it shares, the way several API replicas would.
func newCluster(t *testing.T) *cluster {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cfg := portfolioAuth.DefaultConfig()
	cfg.JWT.PublicKey = pub
	cfg.JWT.PrivateKey = priv
	cfg.Session.RedisPrefix = "it:"
	cfg.Security.MaxLoginAttempts = 0
	cfg.Password = password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	return &cluster{
		mr:    miniredis.RunT(t),
		cfg:   cfg,
		users: &users{byID: map[int64]*portfolioAuth.User{}},
		hash:  hash,
	}
}

// engine builds a new replica. The returned counter sees every command the
// replica sends after the warm-up ping.
func (c *cluster) engine(t *testing.T) (*portfolioAuth.Engine, *cmdCounter) {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: c.mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	counter := &cmdCounter{}
	rdb.AddHook(counter)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}

	engine, err := portfolioAuth.New().
		WithConfig(c.cfg).
		WithRedis(rdb).
		WithUserProvider(c.users).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	counter.Reset()
	return engine, counter
}

func (c *cluster) addUser(id int64, role permission.Role) *portfolioAuth.User {
	user := &portfolioAuth.User{
		ID:           id,
		Email:        fmt.Sprintf("user%d@example.com", id),
		PasswordHash: c.hash,
		Role:         role,
	}
	c.users.mu.Lock()
	c.users.byID[id] = user
	c.users.mu.Unlock()
	return user
}
