package session

import (
	"strings"
	"time"
)

// Record is one refresh session as persisted in the store.
type Record struct {
	Subject  string
	TokenID  string
	DeviceID string

	// IssuedAt and ExpiresAt mirror the refresh token's iat/exp (unix seconds).
	IssuedAt  int64
	ExpiresAt int64
	// CreatedAt orders sessions for eviction (unix microseconds).
	CreatedAt int64

	IPHash       [32]byte
	PlatformHash [32]byte
	BrowserHash  [32]byte

	// BanReason is set only on records read from the banned namespace.
	BanReason string
}

// TTL returns the remaining lifetime of r at now.
func (r *Record) TTL(now time.Time) time.Duration {
	return time.Unix(r.ExpiresAt, 0).Sub(now)
}

// Banned reports whether r was read from the banned namespace.
func (r *Record) Banned() bool {
	return r.BanReason != ""
}

func (r *Record) member() string {
	return r.TokenID + ":" + r.DeviceID
}

// splitMember parses an index member. Token ids never contain ':' while
// device ids may (IPv6 addresses), so the first separator wins.
func splitMember(member string) (tokenID, deviceID string, ok bool) {
	i := strings.IndexByte(member, ':')
	if i <= 0 || i == len(member)-1 {
		return "", "", false
	}
	return member[:i], member[i+1:], true
}
