package portfolioAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/portfolioAuth/internal"
	"github.com/MrEthical07/portfolioAuth/internal/rate"
	"github.com/MrEthical07/portfolioAuth/jwt"
	"github.com/MrEthical07/portfolioAuth/password"
	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/MrEthical07/portfolioAuth/session"
)

// sessionStore is the subset of *session.Store the engine drives.
type sessionStore interface {
	Register(ctx context.Context, rec *session.Record) ([]string, error)
	Rotate(ctx context.Context, oldTokenID, oldDeviceID string, next *session.Record) error
	GetActiveOne(ctx context.Context, subject, tokenID, deviceID string) (*session.Record, error)
	GetActiveAll(ctx context.Context, subject, tokenID, deviceID string) ([]*session.Record, error)
	GetBanned(ctx context.Context, subject, tokenID, deviceID string) ([]*session.Record, error)
	Delete(ctx context.Context, subject, deviceID string) (int, error)
	Revoke(ctx context.Context, subject, tokenID, deviceID string) (bool, error)
	DeleteAll(ctx context.Context, subject string) (int, error)
	Ban(ctx context.Context, subject, tokenID, reason string) (int, error)
	Ping(ctx context.Context) error
}

// defaultDeviceID keys sessions whose transport supplied no device.
const defaultDeviceID = "unknown"

// Engine issues, validates, renews and revokes credentials. It is built once
// with New()...Build() and is safe for concurrent use.
type Engine struct {
	config       Config
	sessions     sessionStore
	rateLimiter  *rate.Limiter
	audit        *auditQueue
	metrics      *Metrics
	hasher       *password.Hasher
	jwtManager   *jwt.Manager
	userProvider UserProvider
	logger       *slog.Logger
	now          func() time.Time
}

// Close drains the audit queue. The Redis client is owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events that never reached the
// sink, either because the queue was full or because the caller gave up.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

// Hasher exposes the password hasher so applications hash new passwords
// with the same parameters the engine verifies with.
func (e *Engine) Hasher() *password.Hasher {
	if e == nil {
		return nil
	}
	return e.hasher
}

// Health pings the session store.
func (e *Engine) Health(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.sessions.Ping(ctx)
}

func (e *Engine) ready() bool {
	return e != nil && e.sessions != nil && e.jwtManager != nil && e.hasher != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// Login looks the user up by email and authenticates them. An unknown email
// is indistinguishable from a wrong password.
func (e *Engine) Login(ctx context.Context, email, password, deviceID string) (*Credentials, error) {
	if !e.ready() || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.userProvider.GetUser(ctx, ByEmail(email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, lookupFailed(err)
		}
		user = nil
	}
	return e.Authenticate(ctx, email, password, user, deviceID)
}

// Authenticate verifies password against user and opens a new session on
// deviceID, replacing any session the user already had there. A nil user is
// verified against a dummy hash so the timing does not reveal whether the
// account exists.
//
//	Flow: throttle check → verify → delete (subject, device) → mint → register.
//	Performance: 1 password hash, SCAN + 1 Lua script.
func (e *Engine) Authenticate(ctx context.Context, email, password string, user *User, deviceID string) (*Credentials, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	deviceID = normalizeDeviceID(deviceID)

	if err := mapRateError(e.rateLimiter.CheckLogin(ctx, email, deviceID), ErrLoginRateLimited); err != nil {
		if errors.Is(err, ErrLoginRateLimited) {
			e.metricInc(MetricAuthenticateRateLimited)
			e.emitAudit(ctx, auditEventAuthenticateRateLimited, false, auditRecord{deviceID: deviceID, err: err})
		}
		return nil, err
	}

	if !e.verifyPassword(password, user) {
		if err := e.rateLimiter.IncrementLogin(ctx, email, deviceID); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.Warn("login attempt counter update failed", "error", err)
		}
		e.metricInc(MetricAuthenticateFailure)
		e.emitAudit(ctx, auditEventAuthenticateFailure, false, auditRecord{deviceID: deviceID, err: ErrAuthFailed})
		return nil, ErrAuthFailed
	}

	if err := e.rateLimiter.ResetLogin(ctx, email, deviceID); err != nil {
		e.logger.Warn("login attempt counter reset failed", "error", err)
	}

	subject := user.Subject()
	if _, err := e.sessions.Delete(ctx, subject, deviceID); err != nil {
		return nil, err
	}

	fp, _ := FingerprintFromContext(ctx)
	creds, rec, err := e.mint(user, deviceID, fp.hashes())
	if err != nil {
		return nil, err
	}

	evicted, err := e.sessions.Register(ctx, rec)
	if err != nil {
		return nil, err
	}
	e.noteEvicted(ctx, subject, evicted)

	e.metricInc(MetricAuthenticateSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventAuthenticateSuccess, true, auditRecord{
		subject:  subject,
		tokenID:  rec.TokenID,
		deviceID: deviceID,
	})

	return creds, nil
}

func (e *Engine) verifyPassword(plain string, user *User) bool {
	if user == nil || user.PasswordHash == "" {
		e.hasher.VerifyDummy(plain)
		return false
	}
	ok, err := e.hasher.Verify(plain, user.PasswordHash)
	if err != nil {
		e.hasher.VerifyDummy(plain)
		return false
	}
	return ok
}

// Authorize turns the access token of creds into an authorization context.
// It never touches the session store: access tokens are trusted until they
// expire.
func (e *Engine) Authorize(ctx context.Context, creds *Credentials, deviceID string) (permission.Context, error) {
	if creds == nil || creds.GetAuthorize() == "" {
		e.metricInc(MetricAuthorizeGuest)
		return permission.GuestContext(), nil
	}
	if e == nil || e.jwtManager == nil {
		return permission.GuestContext(), ErrEngineNotReady
	}

	claims, ok := e.jwtManager.DecodeAccess(creds.GetAuthorize())
	if !ok {
		e.metricInc(MetricAuthorizeInvalid)
		return permission.GuestContext(), newTokenError("invalid or expired access token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		e.metricInc(MetricAuthorizeInvalid)
		return permission.GuestContext(), newTokenError("invalid subject")
	}

	e.metricInc(MetricAuthorizeSuccess)
	return permission.NewContext(userID, claims.Role), nil
}

// ResolveSubject returns the user id named by the refresh token of creds.
// It only verifies the token; the session may already be gone.
func (e *Engine) ResolveSubject(creds *Credentials) (int64, error) {
	if e == nil || e.jwtManager == nil {
		return 0, ErrEngineNotReady
	}
	claims, ok := e.jwtManager.DecodeRefresh(creds.GetAuthenticate())
	if !ok {
		return 0, newTokenError("invalid or expired refresh token")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, newTokenError("invalid subject")
	}
	return id, nil
}

// mint signs a fresh token pair for user with a new token id and builds the
// matching session record.
func (e *Engine) mint(user *User, deviceID string, fp fingerprintHashes) (*Credentials, *session.Record, error) {
	tokenID, err := internal.NewTokenID()
	if err != nil {
		return nil, nil, err
	}

	now := e.now()
	subject := user.Subject()

	access, err := e.jwtManager.EncodeAccess(e.jwtManager.NewAccessClaims(subject, user.Role, now))
	if err != nil {
		return nil, nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshClaims := e.jwtManager.NewRefreshClaims(subject, tokenID, now)
	refresh, err := e.jwtManager.EncodeRefresh(refreshClaims)
	if err != nil {
		return nil, nil, fmt.Errorf("sign refresh token: %w", err)
	}

	rec := &session.Record{
		Subject:      subject,
		TokenID:      tokenID,
		DeviceID:     deviceID,
		IssuedAt:     refreshClaims.IssuedAt.Unix(),
		ExpiresAt:    refreshClaims.ExpiresAt.Unix(),
		CreatedAt:    now.UnixMicro(),
		IPHash:       fp.ip,
		PlatformHash: fp.platform,
		BrowserHash:  fp.browser,
	}
	return NewCredentials(access, refresh), rec, nil
}

func (e *Engine) noteEvicted(ctx context.Context, subject string, evicted []string) {
	for _, tokenID := range evicted {
		e.metricInc(MetricSessionEvicted)
		e.logger.Info("session evicted by per-subject cap", "subject", subject, "token_id", tokenID)
		e.emitAudit(ctx, auditEventSessionEvicted, true, auditRecord{subject: subject, tokenID: tokenID})
	}
}

func normalizeDeviceID(deviceID string) string {
	if deviceID == "" {
		return defaultDeviceID
	}
	return deviceID
}

// lookupFailed reports a user provider failure as a store outage. The
// provider's error stays matchable.
func lookupFailed(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: user lookup: %w", ErrStoreUnavailable, err)
}

func mapRateError(err error, limited error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	case errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
