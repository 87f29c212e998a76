package password

import (
	"fmt"
	"strings"
)

// MinLength is the shortest password Hash accepts, in bytes.
const MinLength = 8

// ErrTooShort is returned by [Hasher.Hash] for passwords under MinLength bytes.
var ErrTooShort = fmt.Errorf("password: must be at least %d bytes", MinLength)

// Hasher produces Argon2id hashes and verifies Argon2id or legacy bcrypt
// hashes. It is immutable after construction and safe for concurrent use.
type Hasher struct {
	params Argon2Params
	dummy  string
}

// NewHasher validates params and precomputes the dummy hash used to equalise
// timing when no user record exists.
func NewHasher(params Argon2Params) (*Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	dummy, err := hashArgon2(params, "portfolio-auth-dummy-password")
	if err != nil {
		return nil, err
	}
	return &Hasher{params: params, dummy: dummy}, nil
}

// Params returns the configured Argon2id parameters.
func (h *Hasher) Params() Argon2Params {
	return h.params
}

// Hash returns a new Argon2id PHC string for plain.
func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) < MinLength {
		return "", ErrTooShort
	}
	return hashArgon2(h.params, plain)
}

// Verify reports whether plain matches encoded. A malformed or unknown hash
// returns an error, never a match.
func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		return verifyArgon2(plain, encoded)
	case isBcrypt(encoded):
		return verifyBcrypt(plain, encoded)
	default:
		return false, ErrUnsupportedHash
	}
}

// DummyHash returns a valid hash with the configured cost that matches no
// real password.
func (h *Hasher) DummyHash() string {
	return h.dummy
}

// VerifyDummy burns the same work as a real verification and always fails.
func (h *Hasher) VerifyDummy(plain string) {
	_, _ = verifyArgon2(plain+"\x00", h.dummy)
}

// NeedsUpgrade reports whether encoded should be replaced with a fresh hash:
// bcrypt hashes always, Argon2id hashes when weaker than the configured cost.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return true, nil
	}
	parsed, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	p := parsed.params
	return p.Memory < h.params.Memory ||
		p.Time < h.params.Time ||
		p.Parallelism < h.params.Parallelism ||
		p.KeyLength != h.params.KeyLength, nil
}
