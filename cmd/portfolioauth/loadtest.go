package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
	"github.com/MrEthical07/portfolioAuth/logging"
	"github.com/MrEthical07/portfolioAuth/password"
	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const loadtestPassword = "loadtest-password"

type loadtestFlags struct {
	users       int
	racers      int
	authorizeOp int
	concurrency int
	redisURL    string
}

func runLoadtest(args []string, stdout io.Writer) error {
	var f loadtestFlags
	fs := pflag.NewFlagSet("loadtest", pflag.ContinueOnError)
	fs.IntVar(&f.users, "users", 100, "users to log in")
	fs.IntVar(&f.racers, "racers", 8, "concurrent renewals per refresh token")
	fs.IntVar(&f.authorizeOp, "authorize-ops", 50000, "Authorize calls in the validation phase")
	fs.IntVar(&f.concurrency, "concurrency", 64, "workers in the validation phase")
	fs.StringVar(&f.redisURL, "redis-url", "", "redis URL; empty starts an in-process miniredis")
	if ok, err := parseFlags(fs, args, stdout); !ok {
		return err
	}
	if f.users <= 0 || f.racers <= 0 || f.authorizeOp <= 0 || f.concurrency <= 0 {
		return errors.New("users, racers, authorize-ops and concurrency must be > 0")
	}

	client, cleanup, err := loadtestRedis(f.redisURL, stdout)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, users, err := loadtestEngine(client)
	if err != nil {
		return err
	}
	defer engine.Close()

	report, err := loadtest(context.Background(), engine, users, f)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "---- results ----")
	printStats(stdout, "authorize", report.authorize)
	printStats(stdout, "renew", report.renew)
	fmt.Fprintf(stdout, "renewal races: users=%d winners=%d losers=%d violations=%d\n",
		f.users, report.winners, report.losers, report.violations)
	if report.violations > 0 {
		return fmt.Errorf("%d refresh tokens were accepted more than once", report.violations)
	}
	return nil
}

func loadtestRedis(url string, stdout io.Writer) (redis.UniversalClient, func(), error) {
	if url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		fmt.Fprintf(stdout, "using redis at %s\n", opts.Addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fmt.Fprintf(stdout, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func loadtestEngine(client redis.UniversalClient) (*portfolioAuth.Engine, map[int64]*portfolioAuth.User, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	cfg := portfolioAuth.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Session.RedisPrefix = "loadtest:"
	cfg.Security.MaxLoginAttempts = 0
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Password = password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	users := map[int64]*portfolioAuth.User{}
	provider := portfolioAuth.UserProviderFunc(func(_ context.Context, f portfolioAuth.UserFilter) (*portfolioAuth.User, error) {
		if u, ok := users[f.ID]; ok {
			return u, nil
		}
		return nil, portfolioAuth.ErrUserNotFound
	})

	engine, err := portfolioAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(provider).
		WithLogger(logging.New(logging.Config{Level: "warn", Format: "text"}, "loadtest")).
		Build()
	if err != nil {
		return nil, nil, err
	}
	return engine, users, nil
}

type loadtestReport struct {
	authorize  phaseStats
	renew      phaseStats
	winners    int64
	losers     int64
	violations int64
}

func loadtest(ctx context.Context, engine *portfolioAuth.Engine, users map[int64]*portfolioAuth.User, f loadtestFlags) (loadtestReport, error) {
	var report loadtestReport

	hash, err := engine.Hasher().Hash(loadtestPassword)
	if err != nil {
		return report, err
	}
	creds := make([]*portfolioAuth.Credentials, f.users)
	for i := 0; i < f.users; i++ {
		id := int64(i + 1)
		users[id] = &portfolioAuth.User{
			ID:           id,
			Email:        fmt.Sprintf("load%d@example.com", id),
			PasswordHash: hash,
			Role:         permission.User,
		}
		creds[i], err = engine.Authenticate(ctx, users[id].Email, loadtestPassword, users[id], "loadtest")
		if err != nil {
			return report, fmt.Errorf("login user %d: %w", id, err)
		}
	}

	report.authorize = authorizePhase(ctx, engine, creds, f.authorizeOp, f.concurrency)
	report.renew, report.winners, report.losers, report.violations = renewPhase(ctx, engine, users, creds, f.racers)
	return report, nil
}

func authorizePhase(ctx context.Context, engine *portfolioAuth.Engine, creds []*portfolioAuth.Credentials, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := engine.Authorize(ctx, creds[i%len(creds)], "loadtest")
				d := time.Since(t0)
				if err != nil {
					failures.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

// renewPhase races racers renewals of every refresh token. Exactly one per
// token may win.
func renewPhase(ctx context.Context, engine *portfolioAuth.Engine, users map[int64]*portfolioAuth.User, creds []*portfolioAuth.Credentials, racers int) (phaseStats, int64, int64, int64) {
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		winners    atomic.Int64
		losers     atomic.Int64
		failures   atomic.Int64
		violations atomic.Int64
		latencies  = make([]time.Duration, 0, len(creds)*racers)
	)

	start := time.Now()
	for i, c := range creds {
		user := users[int64(i+1)]
		var wins atomic.Int32
		gate := make(chan struct{})
		var tokenWG sync.WaitGroup
		for r := 0; r < racers; r++ {
			tokenWG.Add(1)
			go func() {
				defer tokenWG.Done()
				<-gate
				t0 := time.Now()
				_, err := engine.RenewCredentials(ctx, c, user, "loadtest")
				d := time.Since(t0)
				switch {
				case err == nil:
					wins.Add(1)
					winners.Add(1)
				case errors.Is(err, portfolioAuth.ErrInvalidToken):
					losers.Add(1)
				default:
					failures.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			close(gate)
			tokenWG.Wait()
			if wins.Load() > 1 {
				violations.Add(1)
			}
		}()
	}
	wg.Wait()

	return computeStats(time.Since(start), latencies, failures.Load()), winners.Load(), losers.Load(), violations.Load()
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
