package portfolioAuth

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/MrEthical07/portfolioAuth/session"
)

var (
	// ErrAuthFailed is returned by Authenticate and Login for any credential
	// failure. It never says whether the email or the password was wrong.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrInvalidToken is matched by every *TokenError.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAccessDenied is matched by every *AccessDeniedError.
	ErrAccessDenied = errors.New("access denied")
	// ErrSubjectNotFound is returned when a refresh token names a subject the
	// user provider does not know, or a different user than the one supplied.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrUserNotFound is returned by UserProvider implementations.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginRateLimited is returned when the login budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRenewRateLimited is returned when the renewal budget is exhausted.
	ErrRenewRateLimited = errors.New("renewal rate limited")
	// ErrEngineNotReady is returned when an Engine method runs on a nil or
	// partially built engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrStoreUnavailable is the session store outage error.
	ErrStoreUnavailable = session.ErrStoreUnavailable
)

// TokenError reports an invalid, expired, unknown or banned token. Reason is
// safe to show to clients.
type TokenError struct {
	Reason string
}

func newTokenError(reason string) *TokenError {
	return &TokenError{Reason: reason}
}

func (e *TokenError) Error() string {
	if e.Reason == "" {
		return ErrInvalidToken.Error()
	}
	return "invalid token: " + e.Reason
}

// Is makes errors.Is(err, ErrInvalidToken) hold for every TokenError.
func (e *TokenError) Is(target error) bool {
	return target == ErrInvalidToken
}

// AccessDeniedError is returned by a Guard when the caller's role is below
// the required one.
type AccessDeniedError struct {
	Required permission.Role
	Actual   permission.Role
}

func (e *AccessDeniedError) Error() string {
	msg := fmt.Sprintf("access denied: requires %s, have %s", e.Required, e.Actual)
	if e.Actual == permission.Guest {
		msg += " (token may be invalid or expired)"
	}
	return msg
}

// Is makes errors.Is(err, ErrAccessDenied) hold.
func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}
