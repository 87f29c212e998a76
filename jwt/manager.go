package jwt

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names an asymmetric signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodRS256   SigningMethod = "rs256"
)

// DefaultIssuer is the "iss" claim written when Config.Issuer is empty.
const DefaultIssuer = "portfolio_backend"

var (
	// ErrNoSigningKey is returned by the Encode methods of a verify-only Manager.
	ErrNoSigningKey = errors.New("jwt: manager has no private key")
	// ErrInvalidClaims is returned when a payload cannot be encoded.
	ErrInvalidClaims = errors.New("jwt: invalid claims")
)

// Config describes token lifetimes and key material.
//
// PrivateKey may be empty for verify-only managers. Keys are accepted either
// as raw ed25519 bytes or PEM (PKCS#8 / PKIX / PKCS#1).
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	KeyID         string
}

// Manager encodes and decodes tokens. It is immutable after construction and
// safe for concurrent use.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   crypto.PrivateKey
	verifyKey crypto.PublicKey
	parser    *jwt.Parser
}

// NewManager validates cfg and parses the key pair once.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if len(cfg.PublicKey) == 0 {
		return nil, errors.New("public key required")
	}

	m := &Manager{config: cfg}

	var err error
	switch cfg.SigningMethod {
	case MethodEd25519, "":
		m.config.SigningMethod = MethodEd25519
		m.method = jwt.SigningMethodEdDSA
		if m.verifyKey, err = parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			if !priv.Public().(ed25519.PublicKey).Equal(m.verifyKey) {
				return nil, errors.New("ed25519 private key does not match public key")
			}
			m.signKey = priv
		}
	case MethodRS256:
		m.method = jwt.SigningMethodRS256
		pub, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid rsa public key: %w", err)
		}
		m.verifyKey = pub
		if len(cfg.PrivateKey) > 0 {
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
			if err != nil {
				return nil, fmt.Errorf("invalid rsa private key: %w", err)
			}
			if !priv.PublicKey.Equal(pub) {
				return nil, errors.New("rsa private key does not match public key")
			}
			m.signKey = priv
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	m.parser = jwt.NewParser(options...)

	return m, nil
}

// CanSign reports whether the manager holds a private key.
func (m *Manager) CanSign() bool {
	return m != nil && m.signKey != nil
}

// Issuer returns the "iss" claim written into and required from every token.
func (m *Manager) Issuer() string {
	return m.config.Issuer
}

// AccessTTL returns the lifetime of access tokens.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// RefreshTTL returns the lifetime of refresh tokens and their sessions.
func (m *Manager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

// NewAccessClaims builds an access payload for subject expiring AccessTTL
// after now. Times are truncated to whole seconds, the precision of the wire
// format.
func (m *Manager) NewAccessClaims(subject string, role permission.Role, now time.Time) *AccessClaims {
	now = now.UTC().Truncate(time.Second)
	return &AccessClaims{
		Issuer:    m.config.Issuer,
		Subject:   subject,
		Role:      role,
		ExpiresAt: now.Add(m.config.AccessTTL),
	}
}

// NewRefreshClaims builds a refresh payload for subject with the given token id.
func (m *Manager) NewRefreshClaims(subject, tokenID string, now time.Time) *RefreshClaims {
	now = now.UTC().Truncate(time.Second)
	return &RefreshClaims{
		Issuer:    m.config.Issuer,
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.config.RefreshTTL),
		TokenID:   tokenID,
	}
}

// EncodeAccess signs an access payload.
func (m *Manager) EncodeAccess(c *AccessClaims) (string, error) {
	if c == nil || c.Subject == "" || !c.Role.Valid() {
		return "", ErrInvalidClaims
	}
	return m.sign(c.wire())
}

// EncodeRefresh signs a refresh payload.
func (m *Manager) EncodeRefresh(c *RefreshClaims) (string, error) {
	if c == nil || c.Subject == "" || c.TokenID == "" {
		return "", ErrInvalidClaims
	}
	return m.sign(c.wire())
}

func (m *Manager) sign(claims wireClaims) (string, error) {
	if !m.CanSign() {
		return "", ErrNoSigningKey
	}
	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.signKey)
}

// Decode verifies tokenStr and returns its payload, or nil if the token is
// not a valid token of either kind.
func (m *Manager) Decode(tokenStr string) Payload {
	if m == nil || tokenStr == "" {
		return nil
	}

	claims := &wireClaims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, m.keyFunc)
	if err != nil || !token.Valid {
		return nil
	}

	return claims.payload()
}

// DecodeAccess decodes tokenStr and requires it to be an access token.
func (m *Manager) DecodeAccess(tokenStr string) (*AccessClaims, bool) {
	c, ok := m.Decode(tokenStr).(*AccessClaims)
	return c, ok
}

// DecodeRefresh decodes tokenStr and requires it to be a refresh token.
func (m *Manager) DecodeRefresh(tokenStr string) (*RefreshClaims, bool) {
	c, ok := m.Decode(tokenStr).(*RefreshClaims)
	return c, ok
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return m.verifyKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
