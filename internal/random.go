package internal

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// TokenIDLength is the length of a token id in hex characters.
const TokenIDLength = 32

// NewTokenID returns a random (v4) token id as 32 lower-case hex characters.
func NewTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id[:]), nil
}

// ValidTokenID reports whether s has the shape produced by NewTokenID. Only
// ids of that shape are ever interpolated into store keys.
func ValidTokenID(s string) bool {
	if len(s) != TokenIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
