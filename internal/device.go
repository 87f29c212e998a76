package internal

import "crypto/sha256"

// HashBindingValue hashes one fingerprint component for storage. Empty
// values hash to the zero array so that "not captured" is distinguishable
// from any captured value.
func HashBindingValue(v string) [32]byte {
	if v == "" {
		return [32]byte{}
	}
	return sha256.Sum256([]byte(v))
}

// BindingMismatch compares a stored component hash against the current raw
// value. A zero stored hash was never captured and cannot mismatch.
func BindingMismatch(stored [32]byte, current string) bool {
	if stored == ([32]byte{}) {
		return false
	}
	return HashBindingValue(current) != stored
}
