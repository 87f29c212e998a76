package middleware

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
	"github.com/MrEthical07/portfolioAuth/logging"
	"github.com/MrEthical07/portfolioAuth/password"
	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct horse battery"

type fixture struct {
	engine *portfolioAuth.Engine
	mr     *miniredis.Miniredis
	opts   Options
	user   *portfolioAuth.User
	// lookupErr, when set, is returned by every user lookup.
	lookupErr error
}

func newFixture(t *testing.T, role permission.Role) *fixture {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := portfolioAuth.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Password = password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Security.MaxLoginAttempts = 0

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	user := &portfolioAuth.User{ID: 5, Email: "owner@example.com", PasswordHash: hash, Role: role}
	fx := &fixture{user: user, opts: OptionsFromConfig(cfg)}
	users := portfolioAuth.UserProviderFunc(func(_ context.Context, f portfolioAuth.UserFilter) (*portfolioAuth.User, error) {
		if fx.lookupErr != nil {
			return nil, fx.lookupErr
		}
		if f.ID == user.ID || f.Email == user.Email {
			cp := *user
			return &cp, nil
		}
		return nil, portfolioAuth.ErrUserNotFound
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	engine, err := portfolioAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	fx.engine, fx.mr = engine, mr
	return fx
}

func (f *fixture) login(t *testing.T, device string) *portfolioAuth.Credentials {
	t.Helper()
	creds, err := f.engine.Login(context.Background(), f.user.Email, testPassword, device)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return creds
}

func okHandler(t *testing.T, wantRole permission.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := portfolioAuth.AuthorizationFromContext(r.Context())
		if auth.Role() != wantRole {
			t.Errorf("expected role %s in context, got %s", wantRole, auth.Role())
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestGuardAcceptsBearerToken(t *testing.T) {
	f := newFixture(t, permission.User)
	creds := f.login(t, "laptop")

	h := Guard(portfolioAuth.NewGuard(f.engine, permission.User), f.opts)(okHandler(t, permission.User))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+creds.GetAuthorize())
	req.Header.Set(headerDeviceID, "laptop")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("no cookies expected without rotation")
	}
}

func TestGuardRotatesCookiesOnRefreshOnly(t *testing.T) {
	f := newFixture(t, permission.User)
	creds := f.login(t, "laptop")

	h := Guard(portfolioAuth.NewGuard(f.engine, permission.User), f.opts)(okHandler(t, permission.User))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: f.opts.Cookies.RefreshName, Value: creds.GetAuthenticate()})
	req.Header.Set(headerDeviceID, "laptop")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	access := findCookie(cookies, f.opts.Cookies.AccessName)
	refresh := findCookie(cookies, f.opts.Cookies.RefreshName)
	if access == nil || refresh == nil {
		t.Fatalf("expected both cookies, got %v", cookies)
	}
	if refresh.Value == creds.GetAuthenticate() {
		t.Fatal("expected a rotated refresh token")
	}
	if !refresh.Secure || !refresh.HttpOnly || !access.HttpOnly {
		t.Fatalf("unexpected cookie flags access=%+v refresh=%+v", access, refresh)
	}
	if refresh.MaxAge != int(f.opts.RefreshTTL/time.Second) {
		t.Fatalf("unexpected refresh MaxAge %d", refresh.MaxAge)
	}
}

func TestGuardStatusMapping(t *testing.T) {
	f := newFixture(t, permission.User)
	creds := f.login(t, "laptop")

	// User below ADMIN.
	h := Guard(portfolioAuth.NewGuard(f.engine, permission.Admin), f.opts)(okHandler(t, permission.Admin))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: f.opts.Cookies.AccessName, Value: creds.GetAuthorize()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// Store outage during renewal.
	f.mr.Close()
	h = Guard(portfolioAuth.NewGuard(f.engine, permission.Guest), f.opts)(okHandler(t, permission.Guest))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: f.opts.Cookies.RefreshName, Value: creds.GetAuthenticate()})
	req.Header.Set(headerDeviceID, "laptop")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestGuardUserLookupTimeoutIsUnavailable(t *testing.T) {
	f := newFixture(t, permission.User)
	creds := f.login(t, "laptop")
	f.lookupErr = context.DeadlineExceeded

	h := Guard(portfolioAuth.NewGuard(f.engine, permission.User), f.opts)(okHandler(t, permission.User))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: f.opts.Cookies.RefreshName, Value: creds.GetAuthenticate()})
	req.Header.Set(headerDeviceID, "laptop")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the user lookup times out, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("cookies must be left alone during an outage")
	}

	// The refresh token was not consumed and works once lookups recover.
	f.lookupErr = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 after recovery, got %d", rec.Code)
	}
}

func TestGuardNilGuard(t *testing.T) {
	rec := httptest.NewRecorder()
	Guard(nil, Options{})(okHandler(t, permission.Guest)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{&portfolioAuth.AccessDeniedError{Required: permission.Admin}, http.StatusForbidden},
		{portfolioAuth.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{portfolioAuth.ErrSubjectNotFound, http.StatusNotFound},
		{portfolioAuth.ErrRenewRateLimited, http.StatusTooManyRequests},
		{portfolioAuth.ErrInvalidToken, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRequestMapping(t *testing.T) {
	opts := OptionsFromConfig(portfolioAuth.DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5123"
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set(headerPlatform, `"Linux"`)

	if CredentialsFromRequest(req, opts) != nil {
		t.Fatal("expected nil credentials without tokens")
	}
	if got := DeviceID(req); got != "198.51.100.4" {
		t.Fatalf("expected client host as device, got %q", got)
	}
	fp := FingerprintFromRequest(req)
	if fp.IP != "198.51.100.4" || fp.Platform != "Linux" || fp.Browser != "test-agent" {
		t.Fatalf("unexpected fingerprint %+v", fp)
	}

	req.Header.Set(headerDeviceID, "tablet")
	req.Header.Set("Authorization", "Bearer abc")
	req.AddCookie(&http.Cookie{Name: opts.Cookies.RefreshName, Value: "ref"})
	creds := CredentialsFromRequest(req, opts)
	if creds.GetAuthorize() != "abc" || creds.GetAuthenticate() != "ref" || DeviceID(req) != "tablet" {
		t.Fatalf("unexpected mapping %q %q %q", creds.GetAuthorize(), creds.GetAuthenticate(), DeviceID(req))
	}
}

func TestClearCredentialCookies(t *testing.T) {
	opts := OptionsFromConfig(portfolioAuth.DefaultConfig())
	rec := httptest.NewRecorder()
	ClearCredentialCookies(rec, opts)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			t.Fatalf("cookie %s not expired: MaxAge=%d", c.Name, c.MaxAge)
		}
	}
}
