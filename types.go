package portfolioAuth

import (
	"context"
	"strconv"

	"github.com/MrEthical07/portfolioAuth/permission"
)

// User is the slice of a user account the auth engine needs.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         permission.Role
}

// Subject returns the token subject for u.
func (u *User) Subject() string {
	return strconv.FormatInt(u.ID, 10)
}

// UserFilter selects a single user. Exactly one field should be set; ID
// takes precedence when both are.
type UserFilter struct {
	ID    int64
	Email string
}

// ByID returns a filter matching the user with id.
func ByID(id int64) UserFilter {
	return UserFilter{ID: id}
}

// ByEmail returns a filter matching the user with email.
func ByEmail(email string) UserFilter {
	return UserFilter{Email: email}
}

// UserProvider loads users from the application's persistence layer.
//
// GetUser returns ErrUserNotFound (possibly wrapped) when no user matches.
// Any other error is reported to callers wrapped in ErrStoreUnavailable.
type UserProvider interface {
	GetUser(ctx context.Context, filter UserFilter) (*User, error)
}

// UserProviderFunc adapts a function to UserProvider.
type UserProviderFunc func(ctx context.Context, filter UserFilter) (*User, error)

// GetUser calls f.
func (f UserProviderFunc) GetUser(ctx context.Context, filter UserFilter) (*User, error) {
	return f(ctx, filter)
}
