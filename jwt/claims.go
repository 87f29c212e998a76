package jwt

import (
	"time"

	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the value of the "type" claim.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Payload is a decoded token of either kind.
type Payload interface {
	TokenType() TokenType
	SubjectID() string
}

// AccessClaims is the payload of an access token: {iss, sub, role, exp, type}.
type AccessClaims struct {
	Issuer    string
	Subject   string
	Role      permission.Role
	ExpiresAt time.Time
}

func (c *AccessClaims) TokenType() TokenType { return TypeAccess }
func (c *AccessClaims) SubjectID() string    { return c.Subject }

// RefreshClaims is the payload of a refresh token: {iss, sub, iat, exp, jti, type}.
type RefreshClaims struct {
	Issuer    string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}

func (c *RefreshClaims) TokenType() TokenType { return TypeRefresh }
func (c *RefreshClaims) SubjectID() string    { return c.Subject }

// wireClaims is the single JSON shape both token kinds are serialized with.
// Role is a pointer so that a missing claim can be told apart from Guest.
type wireClaims struct {
	Role *uint8    `json:"role,omitempty"`
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) wire() wireClaims {
	role := uint8(c.Role)
	return wireClaims{
		Role: &role,
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   c.Subject,
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
}

func (c *RefreshClaims) wire() wireClaims {
	return wireClaims{
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			ID:        c.TokenID,
		},
	}
}

// payload converts verified wire claims into a typed payload. It returns nil
// when a field the type requires is missing or out of range.
func (w *wireClaims) payload() Payload {
	if w.Subject == "" || w.ExpiresAt == nil {
		return nil
	}

	switch w.Type {
	case TypeAccess:
		if w.Role == nil {
			return nil
		}
		role := permission.Role(*w.Role)
		if !role.Valid() {
			return nil
		}
		return &AccessClaims{
			Issuer:    w.Issuer,
			Subject:   w.Subject,
			Role:      role,
			ExpiresAt: w.ExpiresAt.UTC(),
		}
	case TypeRefresh:
		if w.ID == "" || w.IssuedAt == nil {
			return nil
		}
		return &RefreshClaims{
			Issuer:    w.Issuer,
			Subject:   w.Subject,
			IssuedAt:  w.IssuedAt.UTC(),
			ExpiresAt: w.ExpiresAt.UTC(),
			TokenID:   w.ID,
		}
	default:
		return nil
	}
}
