package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/portfolioAuth/permission"
	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t testing.TB) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestManager(t testing.TB) (*Manager, ed25519.PrivateKey) {
	t.Helper()
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, priv
}

func TestManagerReportsTTLs(t *testing.T) {
	m, _ := newTestManager(t)
	if m.AccessTTL() != 5*time.Minute || m.RefreshTTL() != 24*time.Hour {
		t.Fatalf("unexpected TTLs %v / %v", m.AccessTTL(), m.RefreshTTL())
	}
}

func TestAccessRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	claims := m.NewAccessClaims("42", permission.Moderator, time.Now())

	token, err := m.EncodeAccess(claims)
	if err != nil {
		t.Fatalf("encode access: %v", err)
	}

	got, ok := m.DecodeAccess(token)
	if !ok {
		t.Fatal("expected access token to decode")
	}
	if got.Issuer != DefaultIssuer || got.Subject != "42" || got.Role != permission.Moderator {
		t.Fatalf("unexpected claims %+v", got)
	}
	if !got.ExpiresAt.Equal(claims.ExpiresAt) {
		t.Fatalf("expiry mismatch: got %v want %v", got.ExpiresAt, claims.ExpiresAt)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	claims := m.NewRefreshClaims("7", "0f4c1c4d2b3a4e5f8a9b0c1d2e3f4a5b", time.Now())

	token, err := m.EncodeRefresh(claims)
	if err != nil {
		t.Fatalf("encode refresh: %v", err)
	}

	got, ok := m.DecodeRefresh(token)
	if !ok {
		t.Fatal("expected refresh token to decode")
	}
	if got.Subject != claims.Subject || got.TokenID != claims.TokenID || got.Issuer != claims.Issuer {
		t.Fatalf("unexpected claims %+v", got)
	}
	if !got.IssuedAt.Equal(claims.IssuedAt) || !got.ExpiresAt.Equal(claims.ExpiresAt) {
		t.Fatalf("time mismatch: got %+v want %+v", got, claims)
	}
	if got.ExpiresAt.Sub(got.IssuedAt) != 24*time.Hour {
		t.Fatalf("refresh lifetime = %v", got.ExpiresAt.Sub(got.IssuedAt))
	}
}

func TestDecodeDiscriminatesType(t *testing.T) {
	m, _ := newTestManager(t)

	access, err := m.EncodeAccess(m.NewAccessClaims("1", permission.User, time.Now()))
	if err != nil {
		t.Fatalf("encode access: %v", err)
	}
	refresh, err := m.EncodeRefresh(m.NewRefreshClaims("1", "jti-1", time.Now()))
	if err != nil {
		t.Fatalf("encode refresh: %v", err)
	}

	if _, ok := m.DecodeRefresh(access); ok {
		t.Fatal("access token must not decode as refresh")
	}
	if _, ok := m.DecodeAccess(refresh); ok {
		t.Fatal("refresh token must not decode as access")
	}
	if p := m.Decode(access); p == nil || p.TokenType() != TypeAccess {
		t.Fatalf("expected access payload, got %v", p)
	}
	if p := m.Decode(refresh); p == nil || p.TokenType() != TypeRefresh {
		t.Fatalf("expected refresh payload, got %v", p)
	}
}

func flipBit(token string, segment, byteIdx int, bit uint) string {
	parts := strings.Split(token, ".")
	raw, _ := base64.RawURLEncoding.DecodeString(parts[segment])
	raw[byteIdx] ^= 1 << bit
	parts[segment] = base64.RawURLEncoding.EncodeToString(raw)
	return strings.Join(parts, ".")
}

func TestDecodeRejectsEverySingleBitFlip(t *testing.T) {
	m, _ := newTestManager(t)
	token, err := m.EncodeRefresh(m.NewRefreshClaims("99", "jti-flip", time.Now()))
	if err != nil {
		t.Fatalf("encode refresh: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact JWS, got %d segments", len(parts))
	}
	for segment, part := range parts {
		raw, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			t.Fatalf("decode segment %d: %v", segment, err)
		}
		for i := range raw {
			for bit := uint(0); bit < 8; bit++ {
				mutated := flipBit(token, segment, i, bit)
				if p := m.Decode(mutated); p != nil {
					t.Fatalf("segment %d byte %d bit %d: flipped token decoded to %+v", segment, i, bit, p)
				}
			}
		}
	}
}

func TestDecodeRejectsEveryBitFlipInTokenString(t *testing.T) {
	m, _ := newTestManager(t)
	token, err := m.EncodeRefresh(m.NewRefreshClaims("99", "jti-flip-text", time.Now()))
	if err != nil {
		t.Fatalf("encode refresh: %v", err)
	}
	if m.Decode(token) == nil {
		t.Fatal("untouched token must decode")
	}

	// Text flips also hit the unused low bits of each segment's last
	// character, which byte-level flips never reach.
	for i := 0; i < len(token); i++ {
		for bit := uint(0); bit < 8; bit++ {
			b := []byte(token)
			b[i] ^= 1 << bit
			if p := m.Decode(string(b)); p != nil {
				t.Fatalf("char %d bit %d: %q decoded to %+v", i, bit, b[i], p)
			}
		}
	}
}

func TestDecodeRejectsExpired(t *testing.T) {
	m, _ := newTestManager(t)
	claims := m.NewAccessClaims("1", permission.Admin, time.Now().Add(-10*time.Minute))
	token, err := m.EncodeAccess(claims)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, ok := m.DecodeAccess(token); ok {
		t.Fatal("expired token must decode to invalid")
	}
}

func TestDecodeRejectsWrongIssuer(t *testing.T) {
	m, priv := newTestManager(t)
	role := uint8(permission.Admin)
	claims := wireClaims{
		Role: &role,
		Type: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    "someone_else",
			Subject:   "1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if p := m.Decode(token); p != nil {
		t.Fatalf("foreign issuer decoded to %+v", p)
	}
}

func TestDecodeRejectsSymmetricAlgorithm(t *testing.T) {
	m, _ := newTestManager(t)
	role := uint8(permission.Admin)
	claims := wireClaims{
		Role: &role,
		Type: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			Subject:   "1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if p := m.Decode(token); p != nil {
		t.Fatal("hs256 token must be rejected")
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	m, priv := newTestManager(t)
	exp := gjwt.NewNumericDate(time.Now().Add(time.Minute))
	badRole := uint8(200)

	cases := map[string]wireClaims{
		"access without role": {Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{Issuer: DefaultIssuer, Subject: "1", ExpiresAt: exp}},
		"access unknown role": {Role: &badRole, Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{Issuer: DefaultIssuer, Subject: "1", ExpiresAt: exp}},
		"refresh without jti": {Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{Issuer: DefaultIssuer, Subject: "1", ExpiresAt: exp, IssuedAt: gjwt.NewNumericDate(time.Now())}},
		"refresh without iat": {Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{Issuer: DefaultIssuer, Subject: "1", ExpiresAt: exp, ID: "x"}},
		"unknown type":        {Type: "session", RegisteredClaims: gjwt.RegisteredClaims{Issuer: DefaultIssuer, Subject: "1", ExpiresAt: exp}},
		"no subject":          {Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{Issuer: DefaultIssuer, ExpiresAt: exp, ID: "x", IssuedAt: gjwt.NewNumericDate(time.Now())}},
		"no expiry":           {Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{Issuer: DefaultIssuer, Subject: "1", ID: "x", IssuedAt: gjwt.NewNumericDate(time.Now())}},
	}
	for name, claims := range cases {
		token, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
		if err != nil {
			t.Fatalf("%s: sign: %v", name, err)
		}
		if p := m.Decode(token); p != nil {
			t.Fatalf("%s: expected nil payload, got %+v", name, p)
		}
	}
}

func TestVerifyOnlyManagerCannotSign(t *testing.T) {
	signer, _ := newTestManager(t)
	token, err := signer.EncodeAccess(signer.NewAccessClaims("5", permission.User, time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	verifier, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PublicKey:     signer.verifyKey.(ed25519.PublicKey),
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if verifier.CanSign() {
		t.Fatal("verifier must not be able to sign")
	}
	if _, ok := verifier.DecodeAccess(token); !ok {
		t.Fatal("verifier must accept tokens signed by the issuer")
	}
	if _, err := verifier.EncodeAccess(verifier.NewAccessClaims("5", permission.User, time.Now())); err != ErrNoSigningKey {
		t.Fatalf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestRS256KeyPair(t *testing.T) {
	privPEM, pubPEM, err := GenerateKeyPairPEM(MethodRS256)
	if err != nil {
		t.Fatalf("generate rsa: %v", err)
	}
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodRS256,
		PrivateKey:    privPEM,
		PublicKey:     pubPEM,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := m.EncodeAccess(m.NewAccessClaims("3", permission.Admin, time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if c, ok := m.DecodeAccess(token); !ok || c.Role != permission.Admin {
		t.Fatalf("rs256 round trip failed: %+v %v", c, ok)
	}
}

func TestNewManagerRejectsMismatchedKeys(t *testing.T) {
	pub, _ := newEdKeys(t)
	_, otherPriv := newEdKeys(t)
	_, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    otherPriv,
		PublicKey:     pub,
	})
	if err == nil {
		t.Fatal("expected mismatched key pair to be rejected")
	}
}

func TestNewManagerValidatesTTL(t *testing.T) {
	pub, priv := newEdKeys(t)
	cases := []Config{
		{AccessTTL: 0, RefreshTTL: time.Hour},
		{AccessTTL: time.Hour, RefreshTTL: time.Minute},
		{AccessTTL: time.Minute, RefreshTTL: time.Hour, Leeway: time.Hour},
		{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: "hs256"},
	}
	for i, cfg := range cases {
		cfg.PrivateKey = priv
		cfg.PublicKey = pub
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestKeyIDEnforced(t *testing.T) {
	pub, priv := newEdKeys(t)
	base := Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, PrivateKey: priv, PublicKey: pub}

	unkeyed, err := NewManager(base)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := unkeyed.EncodeAccess(unkeyed.NewAccessClaims("1", permission.User, time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	keyed := base
	keyed.KeyID = "k1"
	m, err := NewManager(keyed)
	if err != nil {
		t.Fatalf("new keyed manager: %v", err)
	}
	if _, ok := m.DecodeAccess(token); ok {
		t.Fatal("token without kid must be rejected when KeyID is configured")
	}
	signed, err := m.EncodeAccess(m.NewAccessClaims("1", permission.User, time.Now()))
	if err != nil {
		t.Fatalf("encode keyed: %v", err)
	}
	if _, ok := m.DecodeAccess(signed); !ok {
		t.Fatal("keyed token must decode")
	}
}
