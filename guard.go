package portfolioAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/portfolioAuth/permission"
)

// Call carries the per-request inputs of a guarded operation.
type Call struct {
	Credentials *Credentials
	// Sink receives credentials rotated during the call. May be nil, in
	// which case a renewal still happens but the new pair is lost.
	Sink     *CredentialSink
	DeviceID string
}

// Guard gates operations on a minimum role, renewing expired access tokens
// transparently when the refresh token is still good.
type Guard struct {
	engine   *Engine
	required permission.Role
	fallback permission.Context
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithFallback sets the context used when credentials are present but
// cannot be renewed. Defaults to the guest context.
func WithFallback(ctx permission.Context) GuardOption {
	return func(g *Guard) {
		g.fallback = ctx
	}
}

// NewGuard returns a Guard requiring at least role required.
func NewGuard(engine *Engine, required permission.Role, opts ...GuardOption) *Guard {
	g := &Guard{
		engine:   engine,
		required: required,
		fallback: permission.GuestContext(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Required returns the minimum role.
func (g *Guard) Required() permission.Role {
	return g.required
}

// Authorize resolves the caller and checks the role requirement.
//
// An invalid access token triggers one renewal attempt: resolve the subject
// from the refresh token, load the user, rotate the pair and authorize the
// new access token. The new pair goes to call.Sink. If the renewal fails for
// token or subject reasons the caller continues as the fallback context;
// store outages and user lookup failures are returned as errors matching
// ErrStoreUnavailable.
func (g *Guard) Authorize(ctx context.Context, call Call) (permission.Context, error) {
	start := time.Now()
	defer func() {
		g.engine.metricObserve(MetricGuardLatency, time.Since(start))
	}()

	auth, err := g.resolve(ctx, call)
	if err != nil {
		return permission.GuestContext(), err
	}

	if !auth.Satisfies(g.required) {
		denied := &AccessDeniedError{Required: g.required, Actual: auth.Role()}
		g.engine.metricInc(MetricAccessDenied)
		g.engine.emitAudit(ctx, auditEventAccessDenied, false, auditRecord{
			subject:  subjectOf(auth),
			deviceID: call.DeviceID,
			err:      denied,
			metadata: func() map[string]string {
				return map[string]string{
					"required": g.required.String(),
					"actual":   auth.Role().String(),
				}
			},
		})
		return auth, denied
	}
	return auth, nil
}

func (g *Guard) resolve(ctx context.Context, call Call) (permission.Context, error) {
	auth, err := g.engine.Authorize(ctx, call.Credentials, call.DeviceID)
	switch {
	case err == nil && !needsRenewal(call.Credentials):
		return auth, nil
	case err != nil && !errors.Is(err, ErrInvalidToken):
		return permission.GuestContext(), err
	}

	renewed, err := g.renew(ctx, call)
	if err != nil {
		if downgradable(err) {
			g.engine.metricInc(MetricGuardFallback)
			return g.fallback, nil
		}
		return permission.GuestContext(), err
	}
	call.Sink.Set(renewed)

	return g.engine.Authorize(ctx, renewed, call.DeviceID)
}

func (g *Guard) renew(ctx context.Context, call Call) (*Credentials, error) {
	id, err := g.engine.ResolveSubject(call.Credentials)
	if err != nil {
		return nil, err
	}
	if g.engine.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	user, err := g.engine.userProvider.GetUser(ctx, ByID(id))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, lookupFailed(err)
	}
	if user == nil {
		return nil, ErrSubjectNotFound
	}

	return g.engine.RenewCredentials(ctx, call.Credentials, user, call.DeviceID)
}

// Run authorizes call and, on success, runs op with the authorization
// context attached to ctx.
func (g *Guard) Run(ctx context.Context, call Call, op func(context.Context, permission.Context) error) error {
	auth, err := g.Authorize(ctx, call)
	if err != nil {
		return err
	}
	return op(WithAuthorization(ctx, auth), auth)
}

// Protect wraps op so that every invocation goes through g.
func Protect[T any](g *Guard, op func(context.Context, permission.Context) (T, error)) func(context.Context, Call) (T, error) {
	return func(ctx context.Context, call Call) (T, error) {
		auth, err := g.Authorize(ctx, call)
		if err != nil {
			var zero T
			return zero, err
		}
		return op(WithAuthorization(ctx, auth), auth)
	}
}

// needsRenewal is true when the access token is gone but a refresh token
// remains, which is what a browser sends once the access cookie expires.
func needsRenewal(creds *Credentials) bool {
	return creds != nil && creds.GetAuthorize() == "" && creds.GetAuthenticate() != ""
}

func downgradable(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrSubjectNotFound) ||
		errors.Is(err, ErrRenewRateLimited)
}

func subjectOf(auth permission.Context) string {
	id, ok := auth.UserID()
	if !ok {
		return ""
	}
	return (&User{ID: id}).Subject()
}
