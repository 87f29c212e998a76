package permission

import "strconv"

// Context is the result of an authorization decision. The zero value is the
// guest context.
//
// Context is a value type without setters and is safe to share between
// goroutines.
type Context struct {
	userID  int64
	hasUser bool
	role    Role
}

// NewContext returns the context of an identified subject. A Guest role
// never carries a subject.
func NewContext(userID int64, role Role) Context {
	if role == Guest {
		return GuestContext()
	}
	return Context{userID: userID, hasUser: true, role: role}
}

// GuestContext returns the context of an anonymous caller.
func GuestContext() Context {
	return Context{role: Guest}
}

// UserID returns the subject id and whether one is set. It is unset for
// guests and for subjects that could not be resolved.
func (c Context) UserID() (int64, bool) {
	return c.userID, c.hasUser
}

// Role returns the role the context was granted.
func (c Context) Role() Role {
	return c.role
}

// IsGuest reports whether the context carries the Guest role.
func (c Context) IsGuest() bool {
	return c.role == Guest
}

// Satisfies reports whether the context ranks at or above required.
func (c Context) Satisfies(required Role) bool {
	return c.role.AtLeast(required)
}

func (c Context) String() string {
	if !c.hasUser {
		return "anonymous(" + c.role.String() + ")"
	}
	return strconv.FormatInt(c.userID, 10) + "(" + c.role.String() + ")"
}
