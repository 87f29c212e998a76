package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// Argon2 parameter floors. Hashes below them are rejected on verify.
const (
	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
)

var b64 = base64.RawStdEncoding

// ErrMalformedHash is returned when an encoded hash cannot be parsed.
var ErrMalformedHash = errors.New("password: malformed hash")

// ErrUnsupportedHash is returned for hash formats this package cannot verify.
var ErrUnsupportedHash = errors.New("password: unsupported hash format")

// Argon2Params are the Argon2id cost parameters.
type Argon2Params struct {
	Memory      uint32 `yaml:"memory_kb"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
}

// DefaultArgon2Params returns the production cost parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate checks p against the parameter floors.
func (p Argon2Params) Validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("password: argon2 memory must be >= %d KB", minMemoryKB)
	case p.Time < 1:
		return errors.New("password: argon2 time must be >= 1")
	case p.Parallelism < 1:
		return errors.New("password: argon2 parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("password: argon2 salt length must be >= %d", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("password: argon2 key length must be >= %d", minKeyLength)
	}
	return nil
}

type argon2Hash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func hashArgon2(p Argon2Params, plain string) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)
	return encodeArgon2(argon2Hash{params: p, salt: salt, key: key}), nil
}

func encodeArgon2(h argon2Hash) string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func decodeArgon2(encoded string) (argon2Hash, error) {
	var h argon2Hash

	fields := strings.Split(strings.TrimPrefix(encoded, argon2Prefix), "$")
	if !strings.HasPrefix(encoded, argon2Prefix) || len(fields) != 4 {
		return h, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return h, ErrMalformedHash
	}
	if version != argon2.Version {
		return h, ErrUnsupportedHash
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return h, ErrMalformedHash
	}

	salt, err := decodeB64(fields[2])
	if err != nil {
		return h, ErrMalformedHash
	}
	key, err := decodeB64(fields[3])
	if err != nil {
		return h, ErrMalformedHash
	}

	h = argon2Hash{
		params: Argon2Params{
			Memory:      memory,
			Time:        time,
			Parallelism: threads,
			SaltLength:  uint32(len(salt)),
			KeyLength:   uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}
	if err := h.params.Validate(); err != nil {
		return argon2Hash{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return h, nil
}

// decodeB64 accepts padded and unpadded base64.
func decodeB64(s string) ([]byte, error) {
	return b64.DecodeString(strings.TrimRight(s, "="))
}

func verifyArgon2(plain, encoded string) (bool, error) {
	h, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	p := h.params
	computed := argon2.IDKey([]byte(plain), h.salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}
