package portfolioAuth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/portfolioAuth/permission"
)

func TestCredentialsNilSafe(t *testing.T) {
	var c *Credentials
	if c.GetAuthorize() != "" || c.GetAuthenticate() != "" {
		t.Fatal("nil credentials must read as empty")
	}
}

func TestCredentialSink(t *testing.T) {
	sink := AcquireSink()
	if sink.Rotated() {
		t.Fatal("fresh sink must be empty")
	}

	creds := NewCredentials("a", "r")
	sink.Set(creds)
	if !sink.Rotated() {
		t.Fatal("expected rotated after Set")
	}
	if got := sink.Take(); got != creds {
		t.Fatalf("Take returned %v", got)
	}
	if sink.Rotated() || sink.Take() != nil {
		t.Fatal("Take must clear the sink")
	}

	sink.Set(creds)
	sink.Release()
	if again := AcquireSink(); again.Rotated() {
		t.Fatal("pooled sink must come back empty")
	}

	var nilSink *CredentialSink
	nilSink.Set(creds)
	nilSink.Release()
	if nilSink.Rotated() || nilSink.Take() != nil {
		t.Fatal("nil sink must be inert")
	}
}

func TestErrorMatching(t *testing.T) {
	tokenErr := newTokenError("unknown token")
	if !errors.Is(tokenErr, ErrInvalidToken) {
		t.Fatal("TokenError must match ErrInvalidToken")
	}
	if tokenErr.Error() != "invalid token: unknown token" {
		t.Fatalf("unexpected message %q", tokenErr.Error())
	}

	denied := &AccessDeniedError{Required: permission.Admin, Actual: permission.User}
	if !errors.Is(denied, ErrAccessDenied) {
		t.Fatal("AccessDeniedError must match ErrAccessDenied")
	}
	if strings.Contains(denied.Error(), "token may be") {
		t.Fatalf("identified callers get no token hint: %q", denied.Error())
	}
	guest := &AccessDeniedError{Required: permission.User, Actual: permission.Guest}
	if !strings.Contains(guest.Error(), "token may be invalid or expired") {
		t.Fatalf("guest denial must hint at the token: %q", guest.Error())
	}
}

func TestUserProviderFunc(t *testing.T) {
	up := UserProviderFunc(func(_ context.Context, f UserFilter) (*User, error) {
		if f.ID == 1 {
			return &User{ID: 1, Role: permission.User}, nil
		}
		return nil, ErrUserNotFound
	})
	if u, err := up.GetUser(context.Background(), ByID(1)); err != nil || u.Subject() != "1" {
		t.Fatalf("unexpected user %v err=%v", u, err)
	}
	if _, err := up.GetUser(context.Background(), ByEmail("x@example.com")); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
