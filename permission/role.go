package permission

import (
	"fmt"
	"strings"
)

// Role is a position in the total privilege order. Higher values carry more
// privilege.
type Role uint8

const (
	// Guest is the role of an unauthenticated caller.
	Guest Role = iota
	// Ban is held by subjects that authenticated but were banned. It ranks
	// above Guest so that banned subjects remain identifiable.
	Ban
	// User is the default role of a registered account.
	User
	// Moderator may curate other users' content.
	Moderator
	// Admin is the highest role.
	Admin
)

var roleNames = [...]string{
	Guest:     "GUEST",
	Ban:       "BAN",
	User:      "USER",
	Moderator: "MODERATOR",
	Admin:     "ADMIN",
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return int(r) < len(roleNames)
}

// AtLeast reports whether r ranks equal to or above required.
func (r Role) AtLeast(required Role) bool {
	return r >= required
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("ROLE(%d)", uint8(r))
	}
	return roleNames[r]
}

// MarshalText encodes the role as its upper-case name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(roleNames[r]), nil
}

// UnmarshalText accepts a role name (case-insensitive) or its numeric value.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole resolves a role by name, case-insensitively. The numeric forms
// "0".."4" are accepted as well since that is how roles are persisted.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for i, name := range roleNames {
		if strings.EqualFold(s, name) {
			return Role(i), nil
		}
	}
	if len(s) == 1 && s[0] >= '0' && int(s[0]-'0') < len(roleNames) {
		return Role(s[0] - '0'), nil
	}
	return Guest, fmt.Errorf("unknown role %q", s)
}

// Roles returns every defined role in ascending order.
func Roles() []Role {
	out := make([]Role, len(roleNames))
	for i := range roleNames {
		out[i] = Role(i)
	}
	return out
}
